package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/verbo/internal/apperr"
	"github.com/starford/verbo/internal/cipher"
	"github.com/starford/verbo/internal/models"
	"github.com/starford/verbo/internal/remote"
)

type scriptedGen struct {
	reply string
	err   error
	last  Request
	hold  chan struct{}
}

func (g *scriptedGen) Generate(ctx context.Context, req Request) (string, error) {
	g.last = req
	if g.hold != nil {
		<-g.hold
	}
	return g.reply, g.err
}

type recordingNav struct {
	mu    sync.Mutex
	texts []string
	views []models.View
}

func (n *recordingNav) Navigate(text string) (bool, error) {
	n.mu.Lock()
	n.texts = append(n.texts, text)
	n.mu.Unlock()
	return true, nil
}

func (n *recordingNav) SetView(v models.View) error {
	n.mu.Lock()
	n.views = append(n.views, v)
	n.mu.Unlock()
	return nil
}

type memStore struct {
	mu      sync.Mutex
	records map[string][]remote.ChatRecord
	fail    bool
}

func (m *memStore) ChatMessages(_ context.Context, userID string) ([]remote.ChatRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errors.New("offline")
	}
	return append([]remote.ChatRecord(nil), m.records[userID]...), nil
}

func (m *memStore) AppendChat(_ context.Context, userID string, r remote.ChatRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = append(m.records[userID], r)
	return r.ID, nil
}

func (m *memStore) ClearChat(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, userID)
	return nil
}

type scriptedImages struct {
	url    string
	err    error
	prompt string
}

func (g *scriptedImages) GenerateImage(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.url, g.err
}

func newService(t *testing.T, gen Generator, opts ...Option) (*Service, *recordingNav, *memStore, cipher.Cipher) {
	t.Helper()
	c, err := cipher.New("clave de prueba")
	if err != nil {
		t.Fatal(err)
	}
	nav := &recordingNav{}
	store := &memStore{records: map[string][]remote.ChatRecord{}}
	return NewService(gen, nav, store, c, slog.New(slog.NewJSONHandler(io.Discard, nil)), opts...), nav, store, c
}

var passage = Passage{BookName: "Juan", ChapterNumber: "3"}

func TestGuestSeed(t *testing.T) {
	s, _, _, _ := newService(t, &scriptedGen{})
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Text != greetingGuest {
		t.Fatalf("messages = %+v", msgs)
	}
}

func TestSendFollowsDirective(t *testing.T) {
	gen := &scriptedGen{reply: "Como dice Juan 3:16 [NAV:Juan 3:16] Dios amó al mundo."}
	s, nav, store, _ := newService(t, gen)

	msg, err := s.Send(context.Background(), "¿Qué dice sobre el amor?", passage, false, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if strings.Contains(msg.Text, "[NAV:") {
		t.Errorf("directive not stripped: %q", msg.Text)
	}
	if len(nav.texts) != 2 || nav.texts[0] != "¿Qué dice sobre el amor?" || nav.texts[1] != "Juan 3:16" {
		t.Errorf("navigations = %q", nav.texts)
	}
	if gen.last.Context != "Capítulo 3 de Juan" {
		t.Errorf("context = %q", gen.last.Context)
	}
	if len(s.Messages()) != 3 {
		t.Errorf("messages = %d, want 3", len(s.Messages()))
	}
	if len(store.records) != 0 {
		t.Error("guest chat must not be persisted")
	}
}

func TestSendFallsBackToReplyText(t *testing.T) {
	gen := &scriptedGen{reply: "Lee Romanos 8:28 hoy."}
	s, nav, _, _ := newService(t, gen)
	_, _ = s.Send(context.Background(), "hola", passage, false, nil)
	if nav.texts[len(nav.texts)-1] != "Lee Romanos 8:28 hoy." {
		t.Errorf("navigations = %q", nav.texts)
	}
}

func TestSendGeneratorFailure(t *testing.T) {
	s, _, _, _ := newService(t, &scriptedGen{err: errors.New("timeout")})
	msg, err := s.Send(context.Background(), "hola", passage, false, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Text != replyFailed || msg.Role != models.RoleAssistant {
		t.Errorf("fallback = %+v", msg)
	}
	if s.Typing() {
		t.Error("typing flag left set")
	}
}

func TestSendRejectsEmptyAndConcurrent(t *testing.T) {
	gen := &scriptedGen{reply: "ok", hold: make(chan struct{})}
	s, _, _, _ := newService(t, gen)

	if _, err := s.Send(context.Background(), "   ", passage, false, nil); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("empty err = %v", err)
	}

	done := make(chan struct{})
	go func() {
		_, _ = s.Send(context.Background(), "primero", passage, false, nil)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for !s.Typing() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := s.Send(context.Background(), "segundo", passage, false, nil); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("concurrent err = %v", err)
	}
	close(gen.hold)
	<-done
	if n := len(s.Messages()); n != 3 {
		t.Errorf("messages = %d, want 3", n)
	}
}

func TestHistoryWindowAndMapData(t *testing.T) {
	gen := &scriptedGen{reply: "Iglesias cercanas <<<MAP_DATA_START>>>[]<<<MAP_DATA_END>>>"}
	s, nav, _, _ := newService(t, gen)
	for i := 0; i < 6; i++ {
		_, _ = s.Send(context.Background(), "hola", passage, false, nil)
	}
	if len(gen.last.History) != historyWindow {
		t.Errorf("history = %d, want %d", len(gen.last.History), historyWindow)
	}
	for _, m := range gen.last.History {
		if strings.Contains(m.Text, "MAP_DATA") {
			t.Errorf("map block sent to generator: %q", m.Text)
		}
	}
	if len(nav.views) == 0 || nav.views[0] != models.ViewMap {
		t.Errorf("views = %v", nav.views)
	}
}

func TestSyncHistory(t *testing.T) {
	s, _, store, c := newService(t, &scriptedGen{reply: "hola"})
	ctx := context.Background()
	ana := models.User{ID: "u1", Name: "Ana"}

	if err := s.SyncHistory(ctx, ana); err != nil {
		t.Fatal(err)
	}
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Text != "¡Hola Ana! Soy Verbo. Tus conversaciones ahora son privadas y seguras." {
		t.Fatalf("seed = %+v", msgs)
	}

	// Messages sent while logged in are stored encrypted.
	_, _ = s.Send(ctx, "pregunta", passage, false, nil)
	recs := store.records["u1"]
	if len(recs) != 2 || recs[0].Content == "pregunta" {
		t.Fatalf("records = %+v", recs)
	}
	if plain, _ := c.Decrypt(recs[0].Content); plain != "pregunta" {
		t.Errorf("decrypted = %q", plain)
	}

	s.Reset()
	if s.Messages()[0].Text != greetingGuest {
		t.Error("reset did not restore the guest seed")
	}
	if err := s.SyncHistory(ctx, ana); err != nil {
		t.Fatal(err)
	}
	msgs = s.Messages()
	if len(msgs) != 2 || msgs[0].Text != "pregunta" || msgs[1].Text != "hola" {
		t.Errorf("restored = %+v", msgs)
	}
}

func TestGenerateImage(t *testing.T) {
	images := &scriptedImages{url: "data:image/png;base64,AAAA"}
	s, _, store, c := newService(t, &scriptedGen{}, WithImages(images))
	ctx := context.Background()
	if err := s.SyncHistory(ctx, models.User{ID: "u1", Name: "Ana"}); err != nil {
		t.Fatal(err)
	}

	verse := &models.Verse{ID: "JHN.3.16", Number: "16", Text: "Porque de tal manera amó Dios al mundo"}
	msg, err := s.GenerateImage(ctx, verse)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != imageReady || msg.Image != images.url || msg.Role != models.RoleAssistant {
		t.Errorf("message = %+v", msg)
	}
	if !strings.Contains(images.prompt, verse.Text) {
		t.Errorf("prompt = %q", images.prompt)
	}
	if s.Typing() {
		t.Error("typing flag left set")
	}

	recs := store.records["u1"]
	if len(recs) != 1 || recs[0].Image != images.url {
		t.Fatalf("records = %+v", recs)
	}
	if plain, _ := c.Decrypt(recs[0].Content); plain != imageReady {
		t.Errorf("stored text = %q", plain)
	}
}

func TestGenerateImageFailures(t *testing.T) {
	verse := &models.Verse{ID: "GEN.1.1", Number: "1", Text: "En el principio"}
	ctx := context.Background()

	cases := []struct {
		name string
		opts []Option
	}{
		{"gateway error", []Option{WithImages(&scriptedImages{err: errors.New("quota")})}},
		{"no image returned", []Option{WithImages(&scriptedImages{})}},
		{"not configured", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _, store, _ := newService(t, &scriptedGen{}, tc.opts...)
			msg, err := s.GenerateImage(ctx, verse)
			if err != nil {
				t.Fatal(err)
			}
			if msg.Text != imageFailed || msg.Image != "" {
				t.Errorf("message = %+v", msg)
			}
			if n := len(s.Messages()); n != 2 {
				t.Errorf("messages = %d, want 2", n)
			}
			if len(store.records) != 0 {
				t.Error("guest message persisted")
			}
		})
	}
}

func TestGenerateImageRejected(t *testing.T) {
	gen := &scriptedGen{reply: "ok", hold: make(chan struct{})}
	s, _, _, _ := newService(t, gen, WithImages(&scriptedImages{url: "https://img/1.png"}))

	if _, err := s.GenerateImage(context.Background(), nil); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("nil verse err = %v", err)
	}

	done := make(chan struct{})
	go func() {
		_, _ = s.Send(context.Background(), "pregunta", passage, false, nil)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for !s.Typing() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := s.GenerateImage(context.Background(), &models.Verse{ID: "GEN.1.1", Text: "x"}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("while typing err = %v", err)
	}
	close(gen.hold)
	<-done
}

func TestSyncHistoryFailureKeepsConversation(t *testing.T) {
	s, _, store, _ := newService(t, &scriptedGen{})
	store.fail = true
	if err := s.SyncHistory(context.Background(), models.User{ID: "u1"}); err == nil {
		t.Fatal("expected error")
	}
	if s.Messages()[0].Text != greetingGuest {
		t.Error("conversation changed on failure")
	}
}

func TestClear(t *testing.T) {
	s, _, store, _ := newService(t, &scriptedGen{reply: "ok"})
	ctx := context.Background()
	_ = s.SyncHistory(ctx, models.User{ID: "u1", Name: "Ana"})
	_, _ = s.Send(ctx, "hola", passage, false, nil)

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Text != greetingClear {
		t.Errorf("messages = %+v", msgs)
	}
	if len(store.records["u1"]) != 0 {
		t.Error("remote history not cleared")
	}
}

func TestPassageContextWithVerse(t *testing.T) {
	p := Passage{BookName: "Juan", ChapterNumber: "3", Verse: &models.Verse{Number: "16", Text: "Porque de tal manera"}}
	if got := p.context(); got != `"Porque de tal manera" (Juan 3:16)` {
		t.Errorf("context = %q", got)
	}
}

func TestHTTPGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(generateResponse{Error: "unauthorized"})
			return
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(generateResponse{Text: "eco: " + req.History[len(req.History)-1].Text})
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, "tok", time.Second)
	got, err := g.Generate(context.Background(), Request{History: []models.ChatMessage{{Role: models.RoleUser, Text: "hola"}}})
	if err != nil || got != "eco: hola" {
		t.Fatalf("Generate = %q, %v", got, err)
	}

	bad := NewHTTPGenerator(srv.URL, "", time.Second)
	if _, err := bad.Generate(context.Background(), Request{}); err == nil {
		t.Error("expected error for unauthorized")
	}
}

func TestHTTPImageGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(generateResponse{Error: "prompt required"})
			return
		}
		json.NewEncoder(w).Encode(generateResponse{Image: "https://img.example/1.png"})
	}))
	defer srv.Close()

	g := NewHTTPImageGenerator(srv.URL, "", time.Second)
	url, err := g.GenerateImage(context.Background(), "luz")
	if err != nil || url != "https://img.example/1.png" {
		t.Fatalf("GenerateImage = %q, %v", url, err)
	}
	if _, err := g.GenerateImage(context.Background(), ""); err == nil {
		t.Error("expected error for empty prompt")
	}
}
