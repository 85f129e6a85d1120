// Package remote provides the SQLite-backed per-user store for notes, bookmarks,
// chat history and profile statistics. Content fields arrive already encrypted.
package remote

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS profiles (
	user_id            TEXT PRIMARY KEY,
	name               TEXT NOT NULL DEFAULT '',
	chapters_read      INTEGER NOT NULL DEFAULT 0,
	notes_count        INTEGER NOT NULL DEFAULT 0,
	streak_days        INTEGER NOT NULL DEFAULT 0,
	last_activity_date TEXT NOT NULL DEFAULT '',
	updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS notes (
	user_id           TEXT NOT NULL,
	note_key          TEXT NOT NULL,
	encrypted_content TEXT NOT NULL DEFAULT '',
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(user_id, note_key)
);

CREATE TABLE IF NOT EXISTS bookmarks (
	user_id     TEXT NOT NULL,
	verse_id    TEXT NOT NULL,
	number      TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL DEFAULT '',
	book_name   TEXT NOT NULL DEFAULT '',
	chapter_num TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(user_id, verse_id)
);

CREATE TABLE IF NOT EXISTS chat_messages (
	seq               INTEGER PRIMARY KEY AUTOINCREMENT,
	id                TEXT NOT NULL UNIQUE,
	user_id           TEXT NOT NULL,
	role              TEXT NOT NULL,
	encrypted_content TEXT NOT NULL DEFAULT '',
	image_url         TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notes_user ON notes(user_id);
CREATE INDEX IF NOT EXISTS idx_bookmarks_user ON bookmarks(user_id);
CREATE INDEX IF NOT EXISTS idx_chat_user ON chat_messages(user_id, seq);
`

// Collections reported through ChangeFunc.
const (
	CollectionProfiles  = "profiles"
	CollectionNotes     = "notes"
	CollectionBookmarks = "bookmarks"
	CollectionChat      = "chat_messages"
)

// Change describes one committed mutation.
type Change struct {
	Collection string `json:"collection"`
	Kind       string `json:"kind"` // "upsert" or "delete"
	UserID     string `json:"userId"`
	Key        string `json:"key,omitempty"`
}

// ChangeFunc is called after every committed mutation.
type ChangeFunc func(Change)

// Store wraps a sql.DB with the per-user collections.
type Store struct {
	conn *sql.DB

	mu       sync.RWMutex
	onChange ChangeFunc
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("remote: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("remote: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("remote: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// OnChange registers the change feed subscriber, replacing any previous one.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) notify(c Change) {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn(c)
	}
}
