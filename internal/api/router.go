package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/verbo/internal/readingservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// events and ws, if non-nil, are mounted at GET /events and GET /ws inside the auth group.
func NewRouter(svc *readingservice.Service, authEnabled bool, token string, events, ws http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Session.
	r.Get("/session", h.GetSession)
	r.Post("/session", h.Login)
	r.Delete("/session", h.Logout)

	// Reader.
	r.Get("/editions", h.ListEditions)
	r.Route("/reader", func(r chi.Router) {
		r.Get("/", h.GetReader)
		r.Put("/edition", h.SetEdition)
		r.Post("/book", h.SelectBook)
		r.Post("/chapter", h.SelectChapter)
		r.Post("/verse", h.SelectVerse)
		r.Post("/next", h.NextChapter)
		r.Post("/prev", h.PrevChapter)
		r.Post("/navigate", h.Navigate)
		r.Delete("/highlight", h.ClearHighlight)
		r.Put("/view", h.SetView)
		r.Get("/scroll", h.ScrollTarget)
	})

	// Progress.
	r.Get("/progress", h.GetProgress)
	r.Post("/progress/toggle", h.ToggleRead)

	// Notes and bookmarks.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Put("/notes/{key}", h.PutNote)
	r.Get("/bookmarks", h.ListBookmarks)
	r.Post("/bookmarks/toggle", h.ToggleBookmark)

	// Chat.
	r.Get("/chat", h.ListChat)
	r.Post("/chat", h.SendChat)
	r.Post("/chat/image", h.GenerateImage)
	r.Delete("/chat", h.ClearChat)

	// Theme.
	r.Get("/theme", h.GetTheme)
	r.Put("/theme", h.SetTheme)

	// Realtime endpoints (protected by same auth middleware).
	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}
	if ws != nil {
		r.Get("/ws", ws.ServeHTTP)
	}

	return r
}
