package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/verbo/internal/apperr"
	"github.com/starford/verbo/internal/models"
)

// ChatRecord is a stored chat message; Content is ciphertext.
type ChatRecord struct {
	ID        string
	Role      models.Role
	Content   string
	Image     string
	CreatedAt time.Time
}

// ── profiles ───────────────────────────────────────────────────────────

// Profile returns the profile of userID, or apperr.ErrNotFound.
func (s *Store) Profile(ctx context.Context, userID string) (models.Profile, error) {
	p := models.Profile{UserID: userID}
	err := s.conn.QueryRowContext(ctx, `
		SELECT name, chapters_read, notes_count, streak_days, last_activity_date
		FROM profiles WHERE user_id = ?`, userID).
		Scan(&p.Name, &p.Stats.ChaptersRead, &p.Stats.NotesCount, &p.Stats.StreakDays, &p.Stats.LastActivityDate)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("remote: profile: %w", err)
	}
	return p, nil
}

// SaveProfile inserts or replaces a profile.
func (s *Store) SaveProfile(ctx context.Context, p models.Profile) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO profiles (user_id, name, chapters_read, notes_count, streak_days, last_activity_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name               = excluded.name,
			chapters_read      = excluded.chapters_read,
			notes_count        = excluded.notes_count,
			streak_days        = excluded.streak_days,
			last_activity_date = excluded.last_activity_date,
			updated_at         = excluded.updated_at
	`, p.UserID, p.Name, p.Stats.ChaptersRead, p.Stats.NotesCount, p.Stats.StreakDays, p.Stats.LastActivityDate, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("remote: save profile: %w", err)
	}
	s.notify(Change{Collection: CollectionProfiles, Kind: "upsert", UserID: p.UserID})
	return nil
}

// ── notes ──────────────────────────────────────────────────────────────

// Notes returns every note of userID as key → ciphertext.
func (s *Store) Notes(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT note_key, encrypted_content FROM notes WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("remote: notes: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SaveNote upserts one note.
func (s *Store) SaveNote(ctx context.Context, userID, key, ciphertext string) error {
	if key == "" {
		return fmt.Errorf("remote: save note: %w", apperr.ErrInvalidInput)
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO notes (user_id, note_key, encrypted_content, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, note_key) DO UPDATE SET
			encrypted_content = excluded.encrypted_content,
			updated_at        = excluded.updated_at
	`, userID, key, ciphertext, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("remote: save note: %w", err)
	}
	s.notify(Change{Collection: CollectionNotes, Kind: "upsert", UserID: userID, Key: key})
	return nil
}

// ── bookmarks ──────────────────────────────────────────────────────────

// Bookmarks returns the bookmarks of userID in creation order.
func (s *Store) Bookmarks(ctx context.Context, userID string) ([]models.Bookmark, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT verse_id, number, text, book_name, chapter_num
		FROM bookmarks WHERE user_id = ? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("remote: bookmarks: %w", err)
	}
	defer rows.Close()
	var out []models.Bookmark
	for rows.Next() {
		var b models.Bookmark
		if err := rows.Scan(&b.ID, &b.Number, &b.Text, &b.BookName, &b.ChapterNum); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AddBookmark stores a bookmark; adding an existing verse returns apperr.ErrAlreadyExists.
func (s *Store) AddBookmark(ctx context.Context, userID string, b models.Bookmark) error {
	res, err := s.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO bookmarks (user_id, verse_id, number, text, book_name, chapter_num, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, userID, b.ID, b.Number, b.Text, b.BookName, b.ChapterNum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("remote: add bookmark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrAlreadyExists
	}
	s.notify(Change{Collection: CollectionBookmarks, Kind: "upsert", UserID: userID, Key: b.ID})
	return nil
}

// RemoveBookmark deletes the bookmark for verseID. Removing a missing bookmark is not an error.
func (s *Store) RemoveBookmark(ctx context.Context, userID, verseID string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM bookmarks WHERE user_id = ? AND verse_id = ?`, userID, verseID)
	if err != nil {
		return fmt.Errorf("remote: remove bookmark: %w", err)
	}
	s.notify(Change{Collection: CollectionBookmarks, Kind: "delete", UserID: userID, Key: verseID})
	return nil
}

// ── chat ───────────────────────────────────────────────────────────────

// ChatMessages returns the chat history of userID in insertion order.
func (s *Store) ChatMessages(ctx context.Context, userID string) ([]ChatRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, role, encrypted_content, image_url, created_at
		FROM chat_messages WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("remote: chat messages: %w", err)
	}
	defer rows.Close()
	var out []ChatRecord
	for rows.Next() {
		var r ChatRecord
		var role string
		if err := rows.Scan(&r.ID, &role, &r.Content, &r.Image, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Role = models.Role(role)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AppendChat appends a message. An empty ID is filled with a fresh UUID.
func (s *Store) AppendChat(ctx context.Context, userID string, r ChatRecord) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO chat_messages (id, user_id, role, encrypted_content, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, userID, string(r.Role), r.Content, r.Image, r.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("remote: append chat: %w", err)
	}
	s.notify(Change{Collection: CollectionChat, Kind: "upsert", UserID: userID, Key: r.ID})
	return r.ID, nil
}

// ClearChat deletes the whole chat history of userID.
func (s *Store) ClearChat(ctx context.Context, userID string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM chat_messages WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("remote: clear chat: %w", err)
	}
	s.notify(Change{Collection: CollectionChat, Kind: "delete", UserID: userID})
	return nil
}
