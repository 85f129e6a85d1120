package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called after an external change to a guest blob.
// kind is "updated" or "deleted".
type ChangeCallback func(kind, key string)

const settleDelay = 150 * time.Millisecond

// Watch watches the data directory and reports blob changes made by other
// processes until ctx is cancelled. Writes made through fs itself are
// recognised by checksum and skipped. Bursts of events for the same key are
// coalesced into one callback.
func Watch(ctx context.Context, fs *FS, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(fs.Root()); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", fs.Root()))

	pending := make(map[string]struct{})
	var settle *time.Timer
	var settleCh <-chan time.Time

	schedule := func() {
		if settle == nil {
			settle = time.NewTimer(settleDelay)
			settleCh = settle.C
		} else {
			settle.Reset(settleDelay)
		}
	}

	flush := func() {
		for key := range pending {
			delete(pending, key)
			data, readErr := fs.Read(key)
			if readErr != nil {
				logger.Debug("watcher: blob gone", slog.String("key", key))
				if cb != nil {
					cb("deleted", key)
				}
				continue
			}
			if fs.OwnWrite(key, data) {
				continue
			}
			logger.Debug("watcher: external change", slog.String("key", key))
			if cb != nil {
				cb("updated", key)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settle != nil {
				settle.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			flush()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			key, isBlob := fs.KeyOf(ev.Name)
			if !isBlob {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[key] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
