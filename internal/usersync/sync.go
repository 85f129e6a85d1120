// Package usersync switches notes and bookmarks between the guest tier and the
// authenticated remote tier. A login replaces the in-memory collections with
// the remote copies wholesale; a logout clears them and returns to guest state.
package usersync

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/starford/verbo/internal/apperr"
	"github.com/starford/verbo/internal/models"
)

// Minimum length of a note that counts towards the notes statistic.
const countedNoteLen = 5

const (
	msgSyncing    = "Sincronizando datos..."
	msgSaveFailed = "No se pudo guardar en la nube. Tus cambios siguen en esta sesión."
)

// ChatSync is the chat history side of a session transition.
type ChatSync interface {
	SyncHistory(ctx context.Context, user models.User) error
	Reset()
}

// Viewer resets the top-level screen.
type Viewer interface {
	SetView(v models.View) error
}

// NoteCounter records written notes on the user profile.
type NoteCounter interface {
	IncrementNotes(ctx context.Context)
}

// Notifier shows a transient message to the user.
type Notifier interface {
	Toast(msg string)
}

// Deps are the collaborators of a Synchronizer.
type Deps struct {
	Local  *LocalTier
	Remote func(models.User) Tier
	Chat   ChatSync
	View   Viewer
	Stats  NoteCounter
	Notify Notifier
	Logger *slog.Logger
}

// Synchronizer owns the in-memory notes and bookmarks and the active tier.
type Synchronizer struct {
	d Deps

	mu        sync.Mutex
	user      *models.User
	synced    bool // set before the remote pull starts, reset on logout
	epoch     uint64
	tier      Tier
	notes     models.NoteMap
	bookmarks []models.Bookmark
}

// New creates a Synchronizer in guest mode and loads the guest state.
func New(d Deps) *Synchronizer {
	s := &Synchronizer{d: d, tier: d.Local, notes: models.NoteMap{}}
	s.ReloadGuest(context.Background())
	return s
}

// Login pulls the remote notes and bookmarks of user and makes the remote tier
// active. It runs once per authenticated session; repeated calls for the same
// user are no-ops. A failed fetch leaves the previous collection in place.
func (s *Synchronizer) Login(ctx context.Context, user models.User) error {
	if user.ID == "" {
		return apperr.ErrInvalidInput
	}
	s.mu.Lock()
	if s.synced && s.user != nil && s.user.ID == user.ID {
		s.mu.Unlock()
		return nil
	}
	if s.user != nil {
		// Switching accounts passes through guest mode, so a failed pull
		// below leaves the guest state rather than the previous account's.
		s.mu.Unlock()
		s.Logout(ctx)
		s.mu.Lock()
		if s.synced && s.user != nil && s.user.ID == user.ID {
			s.mu.Unlock()
			return nil
		}
	}
	s.synced = true
	s.epoch++
	epoch := s.epoch
	u := user
	s.user = &u
	s.tier = s.d.Remote(user)
	tier := s.tier
	s.mu.Unlock()

	s.d.Logger.Info("sync: pulling remote state", slog.String("user", user.ID))
	s.d.Notify.Toast(msgSyncing)

	var errs []error
	if notes, err := tier.Notes(ctx); err != nil {
		s.d.Logger.Error("sync: fetch notes failed", slog.String("user", user.ID), slog.String("error", err.Error()))
		errs = append(errs, err)
	} else {
		s.mu.Lock()
		if s.epoch == epoch {
			s.notes = notes
		}
		s.mu.Unlock()
	}

	if bms, err := tier.Bookmarks(ctx); err != nil {
		s.d.Logger.Error("sync: fetch bookmarks failed", slog.String("user", user.ID), slog.String("error", err.Error()))
		errs = append(errs, err)
	} else {
		s.mu.Lock()
		if s.epoch == epoch {
			s.bookmarks = bms
		}
		s.mu.Unlock()
	}

	if err := s.d.Chat.SyncHistory(ctx, user); err != nil {
		s.d.Logger.Error("sync: chat history failed", slog.String("user", user.ID), slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Logout clears notes, bookmarks and chat, returns to the reading view, and
// reloads the guest state. The next Login pulls again.
func (s *Synchronizer) Logout(ctx context.Context) {
	s.mu.Lock()
	s.user = nil
	s.synced = false
	s.epoch++
	s.tier = s.d.Local
	s.notes = models.NoteMap{}
	s.bookmarks = nil
	s.mu.Unlock()

	s.d.Chat.Reset()
	if err := s.d.View.SetView(models.ViewReader); err != nil {
		s.d.Logger.Warn("sync: reset view failed", slog.String("error", err.Error()))
	}
	s.ReloadGuest(ctx)
}

// ReloadGuest re-reads the guest tier into memory. It does nothing while a
// user is logged in.
func (s *Synchronizer) ReloadGuest(ctx context.Context) {
	s.mu.Lock()
	if s.user != nil {
		s.mu.Unlock()
		return
	}
	epoch := s.epoch
	s.mu.Unlock()

	notes, err := s.d.Local.Notes(ctx)
	if err != nil {
		s.d.Logger.Warn("sync: load guest notes failed", slog.String("error", err.Error()))
	}
	bms, err := s.d.Local.Bookmarks(ctx)
	if err != nil {
		s.d.Logger.Warn("sync: load guest bookmarks failed", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.user != nil {
		return
	}
	if notes != nil {
		s.notes = notes
	}
	if bms != nil {
		s.bookmarks = bms
	}
}

// SaveNote stores content under key in memory and in the active tier. The
// in-memory change is kept even when the tier write fails.
func (s *Synchronizer) SaveNote(ctx context.Context, key, content string) error {
	if key == "" {
		return apperr.ErrInvalidInput
	}
	s.mu.Lock()
	next := make(models.NoteMap, len(s.notes)+1)
	for k, v := range s.notes {
		next[k] = v
	}
	next[key] = content
	s.notes = next
	tier := s.tier
	authed := s.user != nil
	s.mu.Unlock()

	if err := tier.PutNote(ctx, key, content, next); err != nil {
		return s.writeFailed(tier, "note", err)
	}
	if authed && len(content) > countedNoteLen {
		s.d.Stats.IncrementNotes(ctx)
	}
	return nil
}

// ToggleBookmark adds b when it is not bookmarked and removes it otherwise.
// It reports whether the bookmark now exists.
func (s *Synchronizer) ToggleBookmark(ctx context.Context, b models.Bookmark) (bool, error) {
	if b.ID == "" {
		return false, apperr.ErrInvalidInput
	}
	s.mu.Lock()
	idx := slices.IndexFunc(s.bookmarks, func(x models.Bookmark) bool { return x.ID == b.ID })
	added := idx < 0
	var next []models.Bookmark
	if added {
		next = append(slices.Clone(s.bookmarks), b)
	} else {
		b = s.bookmarks[idx]
		next = slices.Delete(slices.Clone(s.bookmarks), idx, idx+1)
	}
	s.bookmarks = next
	tier := s.tier
	s.mu.Unlock()

	if err := tier.PutBookmark(ctx, b, added, next); err != nil {
		return added, s.writeFailed(tier, "bookmark", err)
	}
	return added, nil
}

func (s *Synchronizer) writeFailed(tier Tier, what string, err error) error {
	s.d.Logger.Error("sync: save failed",
		slog.String("tier", tier.Name()), slog.String("kind", what), slog.String("error", err.Error()))
	if tier.Name() == "remote" {
		s.d.Notify.Toast(msgSaveFailed)
	}
	return err
}

// Notes returns a copy of the in-memory notes.
func (s *Synchronizer) Notes() models.NoteMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(models.NoteMap, len(s.notes))
	for k, v := range s.notes {
		out[k] = v
	}
	return out
}

// Bookmarks returns a copy of the in-memory bookmarks.
func (s *Synchronizer) Bookmarks() []models.Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.bookmarks)
}

// User returns the identity of the current authenticated session.
func (s *Synchronizer) User() (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}
