// Package progress tracks which chapters of each book have been read.
package progress

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/starford/verbo/internal/models"
	"github.com/starford/verbo/internal/storage"
)

const msgChapterCompleted = "¡Capítulo completado!"

// Stats receives the side effects of completing a chapter. Implementations
// ignore the calls when nobody is logged in.
type Stats interface {
	IncrementChaptersRead(ctx context.Context)
	CheckInDaily(ctx context.Context)
}

// Notifier shows a transient message to the user.
type Notifier interface {
	Toast(msg string)
}

// Tracker holds the read-progress map and persists it to the local tier on
// every mutation.
type Tracker struct {
	local  *storage.Local
	stats  Stats
	notify Notifier
	logger *slog.Logger

	mu       sync.Mutex
	progress models.ReadProgressMap
}

// NewTracker loads the saved progress. A corrupt blob is logged and replaced
// by an empty map.
func NewTracker(local *storage.Local, stats Stats, notify Notifier, logger *slog.Logger) *Tracker {
	t := &Tracker{local: local, stats: stats, notify: notify, logger: logger}
	t.Reload()
	return t
}

// Reload re-reads the progress blob, e.g. after an external change.
func (t *Tracker) Reload() {
	p, err := t.local.Progress()
	if err != nil {
		t.logger.Warn("progress: load failed", slog.String("error", err.Error()))
	}
	t.mu.Lock()
	t.progress = p
	t.mu.Unlock()
}

// Toggle flips chapter in the completed set of bookID and reports the new
// state. Completing a chapter fires one chaptersRead increment and one daily
// check-in; un-marking it fires nothing.
func (t *Tracker) Toggle(ctx context.Context, bookID, chapter string) (bool, error) {
	t.mu.Lock()
	read := t.progress[bookID]
	completed := !slices.Contains(read, chapter)
	if completed {
		read = append(slices.Clone(read), chapter)
	} else {
		read = slices.DeleteFunc(slices.Clone(read), func(c string) bool { return c == chapter })
	}
	t.progress[bookID] = read
	saveErr := t.local.SaveProgress(t.progress)
	t.mu.Unlock()

	if saveErr != nil {
		t.logger.Error("progress: save failed", slog.String("error", saveErr.Error()))
	}
	if completed {
		t.notify.Toast(msgChapterCompleted)
		t.stats.IncrementChaptersRead(ctx)
		t.stats.CheckInDaily(ctx)
	}
	return completed, saveErr
}

// IsRead reports whether chapter of bookID is marked as read.
func (t *Tracker) IsRead(bookID, chapter string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Contains(t.progress[bookID], chapter)
}

// Progress returns a copy of the whole map.
func (t *Tracker) Progress() models.ReadProgressMap {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(models.ReadProgressMap, len(t.progress))
	for k, v := range t.progress {
		out[k] = slices.Clone(v)
	}
	return out
}
