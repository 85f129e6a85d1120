// Package testutil provides shared test helpers for setting up stores and a
// fully wired reading session.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/verbo/internal/chat"
	"github.com/starford/verbo/internal/cipher"
	"github.com/starford/verbo/internal/models"
	"github.com/starford/verbo/internal/reader"
	"github.com/starford/verbo/internal/readingservice"
	"github.com/starford/verbo/internal/remote"
	"github.com/starford/verbo/internal/storage"
)

// Edition is the edition served by Bible.
const Edition = "test-edition"

// Logger returns a logger that drops everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestStore opens a temporary SQLite remote store that is closed on cleanup.
func TestStore(t *testing.T) *remote.Store {
	t.Helper()
	store, err := remote.Open(filepath.Join(t.TempDir(), "remote.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestLocal creates guest-state storage in a temporary directory.
func TestLocal(t *testing.T) (*storage.FS, *storage.Local) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return fs, storage.NewLocal(fs)
}

// TestCipher returns a cipher with a fixed secret.
func TestCipher(t *testing.T) *cipher.XChaCha {
	t.Helper()
	c, err := cipher.New("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// Bible serves Génesis, Éxodo and Juan with three chapters of five verses each.
type Bible struct{}

var bibleBooks = []models.Book{
	{ID: "GEN", Name: "Génesis", BibleID: Edition},
	{ID: "EXO", Name: "Éxodo", BibleID: Edition},
	{ID: "JHN", Name: "Juan", BibleID: Edition},
}

func (Bible) Books(context.Context, string) ([]models.Book, error) {
	return append([]models.Book(nil), bibleBooks...), nil
}

func (Bible) Chapters(_ context.Context, _, bookID string) ([]models.Chapter, error) {
	var out []models.Chapter
	for n := 1; n <= 3; n++ {
		out = append(out, models.Chapter{ID: fmt.Sprintf("%s.%d", bookID, n), BookID: bookID, Number: fmt.Sprint(n)})
	}
	return out, nil
}

func (Bible) Verses(_ context.Context, _, chapterID string) ([]models.Verse, error) {
	var out []models.Verse
	for n := 1; n <= 5; n++ {
		out = append(out, models.Verse{
			ID:     fmt.Sprintf("%s.%d", chapterID, n),
			Number: fmt.Sprint(n),
			Text:   fmt.Sprintf("texto %s:%d", chapterID, n),
		})
	}
	return out, nil
}

// Generator replies with a fixed text and illustrates with a fixed image URL.
type Generator struct {
	Reply string
	Image string
	Err   error
}

func (g Generator) Generate(context.Context, chat.Request) (string, error) {
	return g.Reply, g.Err
}

func (g Generator) GenerateImage(context.Context, string) (string, error) {
	return g.Image, g.Err
}

// Toasts records notifications.
type Toasts struct {
	mu   sync.Mutex
	msgs []string
}

func (t *Toasts) Toast(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, msg)
}

// All returns the recorded notifications.
func (t *Toasts) All() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.msgs...)
}

// Reading is a wired reading session over temporary stores.
type Reading struct {
	Service *readingservice.Service
	Store   *remote.Store
	Local   *storage.Local
	FS      *storage.FS
	Toasts  *Toasts
}

// NewReading assembles a reading session served by Bible and waits until the
// first chapter of Génesis is loaded.
func NewReading(t *testing.T, gen chat.Generator, observer reader.Observer) *Reading {
	t.Helper()
	if gen == nil {
		gen = Generator{Reply: "Amén."}
	}
	fs, local := TestLocal(t)
	r := &Reading{Store: TestStore(t), Local: local, FS: fs, Toasts: &Toasts{}}
	svc, err := readingservice.Assemble(readingservice.Options{
		Provider:  Bible{},
		Local:     local,
		Store:     r.Store,
		Cipher:    TestCipher(t),
		Generator: gen,
		Notify:    r.Toasts,
		Observer:  observer,
		Reader:    reader.Config{HighlightTimeout: time.Minute, ScrollRetries: 20, ScrollInterval: 10 * time.Millisecond},
		Edition:   Edition,
		Logger:    Logger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Close)
	r.Service = svc
	WaitChapter(t, svc, "GEN.1")
	return r
}

// WaitChapter waits until chapterID is current with its verses loaded.
func WaitChapter(t *testing.T, svc *readingservice.Service, chapterID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := svc.Reader()
		if st.Phase == reader.VersesReady && st.CurrentChapter != nil && st.CurrentChapter.ID == chapterID {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("chapter %s not loaded: %+v", chapterID, svc.Reader())
}
