// Package readingservice composes the reader session, the account, the
// synchronizer, the progress tracker and the chat into the single surface used
// by the HTTP API and the MCP server.
package readingservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/verbo/internal/account"
	"github.com/starford/verbo/internal/apperr"
	"github.com/starford/verbo/internal/bible"
	"github.com/starford/verbo/internal/chat"
	"github.com/starford/verbo/internal/models"
	"github.com/starford/verbo/internal/progress"
	"github.com/starford/verbo/internal/reader"
	"github.com/starford/verbo/internal/storage"
	"github.com/starford/verbo/internal/usersync"
)

// Deps are the components behind a Service.
type Deps struct {
	Reader   *reader.Session
	Account  *account.Account
	Sync     *usersync.Synchronizer
	Progress *progress.Tracker
	Chat     *chat.Service
	Local    *storage.Local
	Logger   *slog.Logger
}

// Service coordinates the reading session.
type Service struct {
	d Deps
}

// NewService creates a new reading service.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{d: d}
}

// SessionInfo describes who is logged in.
type SessionInfo struct {
	Authenticated bool            `json:"authenticated"`
	Profile       *models.Profile `json:"profile,omitempty"`
}

// Login authenticates user, loading or creating the profile, and pulls the
// remote notes, bookmarks and chat history. Pull failures are logged and leave
// the previous collections in place; the login itself still succeeds.
func (s *Service) Login(ctx context.Context, user models.User) (SessionInfo, error) {
	profile, err := s.d.Account.Login(ctx, user)
	if err != nil {
		return SessionInfo{}, err
	}
	if err := s.d.Sync.Login(ctx, user); err != nil {
		s.d.Logger.Warn("session: remote pull incomplete", slog.String("user", user.ID), slog.String("error", err.Error()))
	}
	return SessionInfo{Authenticated: true, Profile: &profile}, nil
}

// Logout returns to guest mode.
func (s *Service) Logout(ctx context.Context) {
	s.d.Account.Logout()
	s.d.Sync.Logout(ctx)
}

// Session reports the current identity and stats.
func (s *Service) Session() SessionInfo {
	p, ok := s.d.Account.Current()
	if !ok {
		return SessionInfo{}
	}
	return SessionInfo{Authenticated: true, Profile: &p}
}

// ── reader ─────────────────────────────────────────────────────────────

// Reader returns a snapshot of the reader state.
func (s *Service) Reader() reader.State {
	return s.d.Reader.Snapshot()
}

// Editions lists the selectable editions.
func (s *Service) Editions() []models.Edition {
	return bible.Editions()
}

// SetEdition switches the edition. Unknown editions are rejected.
func (s *Service) SetEdition(id string) error {
	if !bible.KnownEdition(id) {
		return fmt.Errorf("edition %q: %w", id, apperr.ErrNotFound)
	}
	return s.d.Reader.SetEdition(id)
}

// SelectBook makes a book current.
func (s *Service) SelectBook(id string) error { return s.d.Reader.SelectBook(id) }

// SelectChapter makes a chapter current and (re)loads its verses.
func (s *Service) SelectChapter(id string) error { return s.d.Reader.SelectChapter(id) }

// SelectVerse selects a loaded verse.
func (s *Service) SelectVerse(number string) error { return s.d.Reader.SelectVerse(number) }

// NextChapter advances one chapter.
func (s *Service) NextChapter() error { return s.d.Reader.NextChapter() }

// PrevChapter steps back one chapter.
func (s *Service) PrevChapter() error { return s.d.Reader.PrevChapter() }

// ClearHighlight drops the highlight.
func (s *Service) ClearHighlight() error { return s.d.Reader.ClearHighlight() }

// SetView switches the top-level screen.
func (s *Service) SetView(v models.View) error { return s.d.Reader.SetView(v) }

// Navigate moves the reader to the first reference found in text. It reports
// false when text names no book.
func (s *Service) Navigate(text string) (bool, error) {
	return s.d.Reader.Navigate(text)
}

// ScrollTarget waits for the highlighted verse to be loaded.
func (s *Service) ScrollTarget(ctx context.Context) (models.Verse, bool) {
	return s.d.Reader.ScrollTarget(ctx)
}

// Passage describes the current reading position.
func (s *Service) Passage() (chat.Passage, error) {
	st := s.d.Reader.Snapshot()
	if st.CurrentBook == nil || st.CurrentChapter == nil {
		return chat.Passage{}, apperr.ErrNotReady
	}
	p := chat.Passage{BookName: st.CurrentBook.Name, ChapterNumber: st.CurrentChapter.Number}
	if st.SelectedVerse != "" {
		if v, ok := st.Verse(st.SelectedVerse); ok {
			p.Verse = &v
		}
	}
	return p, nil
}

// ── progress ───────────────────────────────────────────────────────────

// ToggleRead flips the read flag of a chapter. Empty arguments default to the
// current book and chapter.
func (s *Service) ToggleRead(ctx context.Context, bookID, chapter string) (bool, error) {
	if bookID == "" || chapter == "" {
		st := s.d.Reader.Snapshot()
		if st.CurrentBook == nil || st.CurrentChapter == nil {
			return false, apperr.ErrNotReady
		}
		if bookID == "" {
			bookID = st.CurrentBook.ID
		}
		if chapter == "" {
			chapter = st.CurrentChapter.Number
		}
	}
	return s.d.Progress.Toggle(ctx, bookID, chapter)
}

// Progress returns the read chapters per book.
func (s *Service) Progress() models.ReadProgressMap {
	return s.d.Progress.Progress()
}

// ── notes & bookmarks ──────────────────────────────────────────────────

// SaveNote stores a note. With general set the note is attached to the
// current chapter; an empty key targets the selected verse.
func (s *Service) SaveNote(ctx context.Context, key, content string, general bool) (string, error) {
	if general || key == "" {
		st := s.d.Reader.Snapshot()
		switch {
		case general:
			if st.CurrentBook == nil || st.CurrentChapter == nil {
				return "", apperr.ErrNotReady
			}
			key = models.GeneralNoteKey(st.CurrentBook.ID, st.CurrentChapter.Number)
		default:
			v, ok := st.Verse(st.SelectedVerse)
			if !ok {
				return "", fmt.Errorf("no verse selected: %w", apperr.ErrInvalidInput)
			}
			key = v.ID
		}
	}
	if err := s.d.Sync.SaveNote(ctx, key, content); err != nil {
		return key, err
	}
	return key, nil
}

// Notes returns the active notes.
func (s *Service) Notes() models.NoteMap {
	return s.d.Sync.Notes()
}

// ToggleBookmark saves or removes the bookmark of a loaded verse of the
// current chapter. It reports whether the verse is bookmarked afterwards.
func (s *Service) ToggleBookmark(ctx context.Context, verseNumber string) (bool, error) {
	st := s.d.Reader.Snapshot()
	if st.CurrentBook == nil || st.CurrentChapter == nil {
		return false, apperr.ErrNotReady
	}
	v, ok := st.Verse(verseNumber)
	if !ok {
		return false, fmt.Errorf("verse %q: %w", verseNumber, apperr.ErrNotFound)
	}
	return s.d.Sync.ToggleBookmark(ctx, models.Bookmark{
		ID:         v.ID,
		Number:     v.Number,
		Text:       v.Text,
		BookName:   st.CurrentBook.Name,
		ChapterNum: st.CurrentChapter.Number,
	})
}

// Bookmarks returns the active bookmarks.
func (s *Service) Bookmarks() []models.Bookmark {
	return s.d.Sync.Bookmarks()
}

// ── chat ───────────────────────────────────────────────────────────────

// SendChat sends a message about the current passage.
func (s *Service) SendChat(ctx context.Context, text string, study bool, loc *chat.Location) (models.ChatMessage, error) {
	p, err := s.Passage()
	if err != nil && !errors.Is(err, apperr.ErrNotReady) {
		return models.ChatMessage{}, err
	}
	return s.d.Chat.Send(ctx, text, p, study, loc)
}

// GenerateImage illustrates the selected verse in the conversation.
func (s *Service) GenerateImage(ctx context.Context) (models.ChatMessage, error) {
	p, err := s.Passage()
	if err != nil {
		return models.ChatMessage{}, err
	}
	return s.d.Chat.GenerateImage(ctx, p.Verse)
}

// Messages returns the conversation.
func (s *Service) Messages() []models.ChatMessage {
	return s.d.Chat.Messages()
}

// ClearChat restarts the conversation.
func (s *Service) ClearChat(ctx context.Context) error {
	return s.d.Chat.Clear(ctx)
}

// ── theme ──────────────────────────────────────────────────────────────

// Theme returns the stored theme, dark by default.
func (s *Service) Theme() models.Theme {
	t, err := s.d.Local.Theme(models.ThemeDark)
	if err != nil {
		s.d.Logger.Warn("theme: load failed", slog.String("error", err.Error()))
		return models.ThemeDark
	}
	return t
}

// SetTheme stores the theme.
func (s *Service) SetTheme(t models.Theme) error {
	if !t.Valid() {
		return fmt.Errorf("theme %q: %w", t, apperr.ErrInvalidInput)
	}
	return s.d.Local.SaveTheme(t)
}
