// Package chat keeps the assistant conversation and routes the navigation
// directives found in replies to the reader.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/verbo/internal/apperr"
	"github.com/starford/verbo/internal/cipher"
	"github.com/starford/verbo/internal/models"
	"github.com/starford/verbo/internal/navigation"
	"github.com/starford/verbo/internal/remote"
)

// historyWindow is how many recent messages the generator sees.
const historyWindow = 8

const (
	greetingGuest  = "¡Hola! Soy Verbo. Inicia sesión para guardar tu progreso."
	greetingUser   = "¡Hola %s! Soy Verbo. Tus conversaciones ahora son privadas y seguras."
	greetingClear  = "Chat reiniciado."
	replyFailed    = "Lo siento, hubo un error técnico. Por favor intenta de nuevo."
	replyEmpty     = "No pude procesar la respuesta."
	imageReady     = "Aquí tienes una representación artística:"
	imageFailed    = "Error al generar imagen."
	imagePrompt    = "Sacred biblical art: %s. Painting style, warm lighting, respectful representation."
	mapMarkerStart = "<<<MAP_DATA_START>>>"
)

var mapBlockRe = regexp.MustCompile(`(?s)<<<MAP_DATA_START>>>.*?<<<MAP_DATA_END>>>`)

// Navigator moves the reader to a free-text reference.
type Navigator interface {
	Navigate(text string) (bool, error)
	SetView(v models.View) error
}

// Store persists the chat of an authenticated user. *remote.Store implements it.
type Store interface {
	ChatMessages(ctx context.Context, userID string) ([]remote.ChatRecord, error)
	AppendChat(ctx context.Context, userID string, r remote.ChatRecord) (string, error)
	ClearChat(ctx context.Context, userID string) error
}

// Passage is the reading position used as generation context.
type Passage struct {
	BookName      string
	ChapterNumber string
	Verse         *models.Verse
}

func (p Passage) context() string {
	if p.Verse != nil {
		return fmt.Sprintf("%q (%s %s:%s)", p.Verse.Text, p.BookName, p.ChapterNumber, p.Verse.Number)
	}
	return fmt.Sprintf("Capítulo %s de %s", p.ChapterNumber, p.BookName)
}

// Service holds the conversation of the session.
type Service struct {
	gen    Generator
	images ImageGenerator
	nav    Navigator
	store  Store
	cipher cipher.Cipher
	logger *slog.Logger

	mu       sync.Mutex
	user     *models.User
	messages []models.ChatMessage
	typing   bool
}

// Option configures a Service.
type Option func(*Service)

// WithImages enables verse illustrations.
func WithImages(g ImageGenerator) Option {
	return func(s *Service) { s.images = g }
}

// NewService creates a Service seeded with the guest greeting.
func NewService(gen Generator, nav Navigator, store Store, c cipher.Cipher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{gen: gen, nav: nav, store: store, cipher: c, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	s.messages = []models.ChatMessage{seed("init", greetingGuest)}
	return s
}

func seed(id, text string) models.ChatMessage {
	return models.ChatMessage{ID: id, Role: models.RoleAssistant, Text: text}
}

// Send appends the user message, asks the generator for a reply and appends
// the reply with its navigation directives removed. The reader is moved to
// the directive's reference, or to any reference found in the reply when it
// has none. Empty input and a send while another is in flight are rejected.
func (s *Service) Send(ctx context.Context, text string, passage Passage, study bool, loc *Location) (models.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return models.ChatMessage{}, apperr.ErrInvalidInput
	}
	s.mu.Lock()
	if s.typing {
		s.mu.Unlock()
		return models.ChatMessage{}, apperr.ErrConflict
	}
	s.typing = true
	userMsg := models.ChatMessage{ID: uuid.NewString(), Role: models.RoleUser, Text: text}
	s.messages = append(s.messages, userMsg)
	history := recent(s.messages)
	user := s.user
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.typing = false
		s.mu.Unlock()
	}()

	s.persist(ctx, user, userMsg)
	s.navigate(text)

	reply, err := s.gen.Generate(ctx, Request{History: history, Context: passage.context(), Study: study, Location: loc})
	switch {
	case err != nil:
		s.logger.Error("chat: generation failed", slog.String("error", err.Error()))
		reply = replyFailed
	case strings.TrimSpace(reply) == "":
		reply = replyEmpty
	}

	if ref, ok := navigation.ExtractDirective(reply); ok {
		s.navigate(ref)
	} else {
		s.navigate(navigation.StripDirectives(reply))
	}
	if strings.Contains(reply, mapMarkerStart) {
		if err := s.nav.SetView(models.ViewMap); err != nil {
			s.logger.Warn("chat: set view failed", slog.String("error", err.Error()))
		}
	}

	assistant := models.ChatMessage{ID: uuid.NewString(), Role: models.RoleAssistant, Text: navigation.StripDirectives(reply)}
	s.mu.Lock()
	s.messages = append(s.messages, assistant)
	s.mu.Unlock()
	s.persist(ctx, user, assistant)
	return assistant, nil
}

// GenerateImage illustrates verse and appends the result as an assistant
// message. A failed or empty generation still appends a message saying so.
// It is rejected while a reply is being generated.
func (s *Service) GenerateImage(ctx context.Context, verse *models.Verse) (models.ChatMessage, error) {
	if verse == nil {
		return models.ChatMessage{}, fmt.Errorf("%w: no verse selected", apperr.ErrInvalidInput)
	}
	s.mu.Lock()
	if s.typing {
		s.mu.Unlock()
		return models.ChatMessage{}, apperr.ErrConflict
	}
	s.typing = true
	user := s.user
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.typing = false
		s.mu.Unlock()
	}()

	var url string
	if s.images == nil {
		s.logger.Warn("chat: image generation not configured")
	} else {
		var err error
		url, err = s.images.GenerateImage(ctx, fmt.Sprintf(imagePrompt, verse.Text))
		if err != nil {
			s.logger.Error("chat: image generation failed", slog.String("verse", verse.ID), slog.String("error", err.Error()))
			url = ""
		}
	}

	msg := models.ChatMessage{ID: uuid.NewString(), Role: models.RoleAssistant, Text: imageFailed}
	if url != "" {
		msg.Text = imageReady
		msg.Image = url
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.persist(ctx, user, msg)
	return msg, nil
}

func (s *Service) navigate(text string) {
	if _, err := s.nav.Navigate(text); err != nil {
		s.logger.Warn("chat: navigate failed", slog.String("error", err.Error()))
	}
}

// recent returns the last messages with map data blocks removed.
func recent(msgs []models.ChatMessage) []models.ChatMessage {
	start := max(0, len(msgs)-historyWindow)
	out := slices.Clone(msgs[start:])
	for i := range out {
		out[i].Text = strings.TrimSpace(mapBlockRe.ReplaceAllString(out[i].Text, ""))
	}
	return out
}

func (s *Service) persist(ctx context.Context, user *models.User, m models.ChatMessage) {
	if user == nil {
		return
	}
	ct, err := s.cipher.Encrypt(m.Text)
	if err != nil {
		s.logger.Error("chat: encrypt failed", slog.String("error", err.Error()))
		return
	}
	if _, err := s.store.AppendChat(ctx, user.ID, remote.ChatRecord{ID: m.ID, Role: m.Role, Content: ct, Image: m.Image}); err != nil {
		s.logger.Error("chat: save message failed", slog.String("user", user.ID), slog.String("error", err.Error()))
	}
}

// SyncHistory replaces the conversation with the stored history of user, or
// seeds a personal greeting when there is none. On a fetch error the
// conversation is left as it was.
func (s *Service) SyncHistory(ctx context.Context, user models.User) error {
	s.mu.Lock()
	u := user
	s.user = &u
	s.mu.Unlock()

	records, err := s.store.ChatMessages(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("chat: sync history: %w", err)
	}

	var msgs []models.ChatMessage
	if len(records) == 0 {
		msgs = []models.ChatMessage{seed("init-auth", fmt.Sprintf(greetingUser, user.Name))}
	} else {
		msgs = make([]models.ChatMessage, 0, len(records))
		for _, r := range records {
			msgs = append(msgs, models.ChatMessage{
				ID:    r.ID,
				Role:  r.Role,
				Text:  cipher.DecryptOrEmpty(s.cipher, r.Content, s.logger),
				Image: r.Image,
			})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.ID != user.ID {
		return nil
	}
	s.messages = msgs
	return nil
}

// Reset forgets the user and returns to the guest greeting.
func (s *Service) Reset() {
	s.mu.Lock()
	s.user = nil
	s.messages = []models.ChatMessage{seed("init", greetingGuest)}
	s.mu.Unlock()
}

// Clear deletes the stored history of the logged-in user and restarts the
// conversation.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()

	var err error
	if user != nil {
		if err = s.store.ClearChat(ctx, user.ID); err != nil {
			s.logger.Error("chat: clear failed", slog.String("user", user.ID), slog.String("error", err.Error()))
		}
	}
	s.mu.Lock()
	s.messages = []models.ChatMessage{seed(uuid.NewString(), greetingClear)}
	s.mu.Unlock()
	return err
}

// Messages returns a copy of the conversation.
func (s *Service) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Typing reports whether a reply is being generated.
func (s *Service) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}
