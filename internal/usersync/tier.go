package usersync

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/verbo/internal/apperr"
	"github.com/starford/verbo/internal/cipher"
	"github.com/starford/verbo/internal/models"
	"github.com/starford/verbo/internal/remote"
	"github.com/starford/verbo/internal/storage"
)

// NoteStore is one backing tier for notes. all is the full in-memory map after
// the change; tiers that overwrite whole blobs write it, others write key only.
type NoteStore interface {
	Notes(ctx context.Context) (models.NoteMap, error)
	PutNote(ctx context.Context, key, content string, all models.NoteMap) error
}

// BookmarkStore is one backing tier for bookmarks.
type BookmarkStore interface {
	Bookmarks(ctx context.Context) ([]models.Bookmark, error)
	PutBookmark(ctx context.Context, b models.Bookmark, added bool, all []models.Bookmark) error
}

// Tier bundles the stores of one storage tier.
type Tier interface {
	NoteStore
	BookmarkStore
	Name() string
}

// LocalTier keeps guest state as plaintext JSON blobs.
type LocalTier struct {
	local *storage.Local
}

// NewLocalTier wraps the guest blob store.
func NewLocalTier(local *storage.Local) *LocalTier {
	return &LocalTier{local: local}
}

func (t *LocalTier) Name() string { return "local" }

func (t *LocalTier) Notes(context.Context) (models.NoteMap, error) {
	return t.local.Notes()
}

func (t *LocalTier) PutNote(_ context.Context, _, _ string, all models.NoteMap) error {
	return t.local.SaveNotes(all)
}

func (t *LocalTier) Bookmarks(context.Context) ([]models.Bookmark, error) {
	return t.local.Bookmarks()
}

func (t *LocalTier) PutBookmark(_ context.Context, _ models.Bookmark, _ bool, all []models.Bookmark) error {
	return t.local.SaveBookmarks(all)
}

// RemoteTier keeps one user's state in the remote store, content encrypted.
type RemoteTier struct {
	store  *remote.Store
	cipher cipher.Cipher
	userID string
	logger *slog.Logger
}

// RemoteTierFactory returns the constructor the synchronizer calls on login.
func RemoteTierFactory(store *remote.Store, c cipher.Cipher, logger *slog.Logger) func(models.User) Tier {
	return func(u models.User) Tier {
		return &RemoteTier{store: store, cipher: c, userID: u.ID, logger: logger}
	}
}

func (t *RemoteTier) Name() string { return "remote" }

// Notes fetches and decrypts every note. A field that fails to decrypt
// becomes "" without aborting the batch.
func (t *RemoteTier) Notes(ctx context.Context) (models.NoteMap, error) {
	rows, err := t.store.Notes(ctx, t.userID)
	if err != nil {
		return nil, err
	}
	out := make(models.NoteMap, len(rows))
	for key, ct := range rows {
		if ct == "" {
			continue
		}
		out[key] = cipher.DecryptOrEmpty(t.cipher, ct, t.logger)
	}
	return out, nil
}

func (t *RemoteTier) PutNote(ctx context.Context, key, content string, _ models.NoteMap) error {
	ct, err := t.cipher.Encrypt(content)
	if err != nil {
		return err
	}
	return t.store.SaveNote(ctx, t.userID, key, ct)
}

func (t *RemoteTier) Bookmarks(ctx context.Context) ([]models.Bookmark, error) {
	return t.store.Bookmarks(ctx, t.userID)
}

func (t *RemoteTier) PutBookmark(ctx context.Context, b models.Bookmark, added bool, _ []models.Bookmark) error {
	if !added {
		return t.store.RemoveBookmark(ctx, t.userID, b.ID)
	}
	err := t.store.AddBookmark(ctx, t.userID, b)
	if errors.Is(err, apperr.ErrAlreadyExists) {
		return nil
	}
	return err
}
