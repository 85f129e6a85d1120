package reader

import (
	"fmt"
	"time"

	"github.com/starford/verbo/internal/models"
)

// Phase is the position of the chapter loader in its load cycle.
type Phase int

// Loader phases. LoadingChapters and LoadingVerses are re-entered on every
// book and chapter change.
const (
	Idle Phase = iota
	LoadingBooks
	BooksReady
	LoadingChapters
	ChaptersReady
	LoadingVerses
	VersesReady
)

var phaseNames = [...]string{
	Idle:            "idle",
	LoadingBooks:    "loading_books",
	BooksReady:      "books_ready",
	LoadingChapters: "loading_chapters",
	ChaptersReady:   "chapters_ready",
	LoadingVerses:   "loading_verses",
	VersesReady:     "verses_ready",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText renders the phase name in JSON snapshots.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// retreatSentinel is the pending chapter requested when stepping back into the
// previous book. No chapter carries this number, so the loader falls back to
// the first chapter of that book.
const retreatSentinel = 999

// Config tunes highlight and scroll timing.
type Config struct {
	HighlightTimeout time.Duration
	ScrollRetries    int
	ScrollInterval   time.Duration
}

// DefaultConfig returns the standard timings: 5s highlight, 15 × 200ms scroll wait.
func DefaultConfig() Config {
	return Config{
		HighlightTimeout: 5 * time.Second,
		ScrollRetries:    15,
		ScrollInterval:   200 * time.Millisecond,
	}
}

// State is an immutable snapshot of the session.
type State struct {
	Edition        string           `json:"edition"`
	Phase          Phase            `json:"phase"`
	View           models.View      `json:"view"`
	Books          []models.Book    `json:"books"`
	CurrentBook    *models.Book     `json:"currentBook,omitempty"`
	Chapters       []models.Chapter `json:"chapters"`
	CurrentChapter *models.Chapter  `json:"currentChapter,omitempty"`
	Verses         []models.Verse   `json:"verses"`
	SelectedVerse  string           `json:"selectedVerse,omitempty"`
	Highlight      string           `json:"highlight,omitempty"`
	PendingChapter *int             `json:"pendingChapter,omitempty"`
	PendingVerse   *int             `json:"pendingVerse,omitempty"`
}

// Verse returns the loaded verse with the given number.
func (s State) Verse(number string) (models.Verse, bool) {
	for _, v := range s.Verses {
		if v.Number == number {
			return v, true
		}
	}
	return models.Verse{}, false
}

func (s State) clone() State {
	out := s
	out.Books = append([]models.Book(nil), s.Books...)
	out.Chapters = append([]models.Chapter(nil), s.Chapters...)
	out.Verses = append([]models.Verse(nil), s.Verses...)
	if s.CurrentBook != nil {
		b := *s.CurrentBook
		out.CurrentBook = &b
	}
	if s.CurrentChapter != nil {
		c := *s.CurrentChapter
		out.CurrentChapter = &c
	}
	if s.PendingChapter != nil {
		n := *s.PendingChapter
		out.PendingChapter = &n
	}
	if s.PendingVerse != nil {
		n := *s.PendingVerse
		out.PendingVerse = &n
	}
	return out
}

func intPtr(n int) *int { return &n }
