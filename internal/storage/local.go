package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/starford/verbo/internal/models"
)

// Blob keys of the persisted guest state.
const (
	KeyTheme     = "theme"
	KeyBookmarks = "bookmarks"
	KeyNotes     = "notes"
	KeyProgress  = "progress"
)

// Local is the typed view of the guest-mode state. Every save overwrites the
// whole blob; there is no patching.
type Local struct {
	p Provider
}

// NewLocal wraps a provider.
func NewLocal(p Provider) *Local {
	return &Local{p: p}
}

func (l *Local) load(key string, v any) (bool, error) {
	data, err := l.p.Read(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return true, nil
}

func (l *Local) save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	return l.p.Write(key, data)
}

// Notes returns the guest notes, empty when none were saved.
func (l *Local) Notes() (models.NoteMap, error) {
	notes := models.NoteMap{}
	if _, err := l.load(KeyNotes, &notes); err != nil {
		return models.NoteMap{}, err
	}
	if notes == nil {
		notes = models.NoteMap{}
	}
	return notes, nil
}

// SaveNotes overwrites the guest notes.
func (l *Local) SaveNotes(notes models.NoteMap) error {
	return l.save(KeyNotes, notes)
}

// Bookmarks returns the guest bookmarks.
func (l *Local) Bookmarks() ([]models.Bookmark, error) {
	var out []models.Bookmark
	if _, err := l.load(KeyBookmarks, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveBookmarks overwrites the guest bookmarks.
func (l *Local) SaveBookmarks(b []models.Bookmark) error {
	if b == nil {
		b = []models.Bookmark{}
	}
	return l.save(KeyBookmarks, b)
}

// Progress returns the per-book read progress.
func (l *Local) Progress() (models.ReadProgressMap, error) {
	progress := models.ReadProgressMap{}
	if _, err := l.load(KeyProgress, &progress); err != nil {
		return models.ReadProgressMap{}, err
	}
	if progress == nil {
		progress = models.ReadProgressMap{}
	}
	return progress, nil
}

// SaveProgress overwrites the read progress.
func (l *Local) SaveProgress(p models.ReadProgressMap) error {
	return l.save(KeyProgress, p)
}

// Theme returns the saved theme, or def when none is saved.
func (l *Local) Theme(def models.Theme) (models.Theme, error) {
	var t models.Theme
	ok, err := l.load(KeyTheme, &t)
	if err != nil || !ok || !t.Valid() {
		return def, err
	}
	return t, nil
}

// SaveTheme persists the theme preference.
func (l *Local) SaveTheme(t models.Theme) error {
	return l.save(KeyTheme, t)
}
