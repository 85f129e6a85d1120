package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/starford/verbo/internal/models"
	"github.com/starford/verbo/internal/readingservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *readingservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *readingservice.Service) *Handler {
	return &Handler{svc: svc}
}

// noteKey extracts the note key from the URL. Supports encoded keys.
func noteKey(r *http.Request) string {
	raw := chi.URLParam(r, "key")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ── session ────────────────────────────────────────────────────────────

// GetSession handles GET /api/session.
//
//	@Summary		Current identity and reading stats
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	SessionResponse
//	@Security		BearerAuth
//	@Router			/session [get]
func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Session())
}

// Login handles POST /api/session.
//
//	@Summary		Log in and pull the stored notes, bookmarks and chat
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoginRequest	true	"Identity"
//	@Success		200		{object}	SessionResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}
	info, err := h.svc.Login(r.Context(), models.User{ID: req.ID, Name: req.Name})
	if err != nil {
		writeError(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Logout handles DELETE /api/session.
//
//	@Summary		Log out and return to guest mode
//	@Tags			session
//	@Success		204
//	@Security		BearerAuth
//	@Router			/session [delete]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.svc.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// ── reader ─────────────────────────────────────────────────────────────

// GetReader handles GET /api/reader.
//
//	@Summary		Reader state snapshot
//	@Tags			reader
//	@Produce		json
//	@Success		200	{object}	reader.State
//	@Security		BearerAuth
//	@Router			/reader [get]
func (h *Handler) GetReader(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Reader())
}

// ListEditions handles GET /api/editions.
//
//	@Summary		Selectable editions
//	@Tags			reader
//	@Produce		json
//	@Success		200	{array}	models.Edition
//	@Router			/editions [get]
func (h *Handler) ListEditions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Editions())
}

// SetEdition handles PUT /api/reader/edition.
//
//	@Summary		Switch edition and reload the catalog
//	@Tags			reader
//	@Accept			json
//	@Param			body	body	EditionRequest	true	"Edition"
//	@Success		202
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reader/edition [put]
func (h *Handler) SetEdition(w http.ResponseWriter, r *http.Request) {
	var req EditionRequest
	if !decode(w, r, &req) {
		return
	}
	h.accepted(w, "set edition", h.svc.SetEdition(req.Edition))
}

// SelectBook handles POST /api/reader/book.
//
//	@Summary		Select a book of the catalog
//	@Tags			reader
//	@Accept			json
//	@Param			body	body	BookRequest	true	"Book"
//	@Success		202
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reader/book [post]
func (h *Handler) SelectBook(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if !decode(w, r, &req) {
		return
	}
	h.accepted(w, "select book", h.svc.SelectBook(req.BookID))
}

// SelectChapter handles POST /api/reader/chapter.
//
//	@Summary		Select a chapter; reselecting reloads it
//	@Tags			reader
//	@Accept			json
//	@Param			body	body	ChapterRequest	true	"Chapter"
//	@Success		202
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reader/chapter [post]
func (h *Handler) SelectChapter(w http.ResponseWriter, r *http.Request) {
	var req ChapterRequest
	if !decode(w, r, &req) {
		return
	}
	h.accepted(w, "select chapter", h.svc.SelectChapter(req.ChapterID))
}

// SelectVerse handles POST /api/reader/verse.
//
//	@Summary		Select a loaded verse
//	@Tags			reader
//	@Accept			json
//	@Param			body	body	VerseRequest	true	"Verse"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reader/verse [post]
func (h *Handler) SelectVerse(w http.ResponseWriter, r *http.Request) {
	var req VerseRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.SelectVerse(req.Verse); err != nil {
		writeError(w, "select verse", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NextChapter handles POST /api/reader/next.
//
//	@Summary		Advance one chapter
//	@Tags			reader
//	@Success		202
//	@Security		BearerAuth
//	@Router			/reader/next [post]
func (h *Handler) NextChapter(w http.ResponseWriter, _ *http.Request) {
	h.accepted(w, "next chapter", h.svc.NextChapter())
}

// PrevChapter handles POST /api/reader/prev.
//
//	@Summary		Step back one chapter
//	@Tags			reader
//	@Success		202
//	@Security		BearerAuth
//	@Router			/reader/prev [post]
func (h *Handler) PrevChapter(w http.ResponseWriter, _ *http.Request) {
	h.accepted(w, "prev chapter", h.svc.PrevChapter())
}

// Navigate handles POST /api/reader/navigate.
//
//	@Summary		Move the reader to a free-text reference
//	@Tags			reader
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NavigateRequest	true	"Text"
//	@Success		200		{object}	NavigateResponse
//	@Security		BearerAuth
//	@Router			/reader/navigate [post]
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if !decode(w, r, &req) {
		return
	}
	ok, err := h.svc.Navigate(req.Text)
	if err != nil {
		writeError(w, "navigate", err)
		return
	}
	writeJSON(w, http.StatusOK, NavigateResponse{Recognised: ok})
}

// ClearHighlight handles DELETE /api/reader/highlight.
//
//	@Summary		Drop the verse highlight
//	@Tags			reader
//	@Success		204
//	@Security		BearerAuth
//	@Router			/reader/highlight [delete]
func (h *Handler) ClearHighlight(w http.ResponseWriter, _ *http.Request) {
	if err := h.svc.ClearHighlight(); err != nil {
		writeError(w, "clear highlight", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetView handles PUT /api/reader/view.
//
//	@Summary		Switch the top-level screen
//	@Tags			reader
//	@Accept			json
//	@Param			body	body	ViewRequest	true	"View"
//	@Success		204
//	@Security		BearerAuth
//	@Router			/reader/view [put]
func (h *Handler) SetView(w http.ResponseWriter, r *http.Request) {
	var req ViewRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.SetView(req.View); err != nil {
		writeError(w, "set view", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ScrollTarget handles GET /api/reader/scroll.
//
//	@Summary		Wait for the highlighted verse to be loaded
//	@Tags			reader
//	@Produce		json
//	@Success		200	{object}	models.Verse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reader/scroll [get]
func (h *Handler) ScrollTarget(w http.ResponseWriter, r *http.Request) {
	v, ok := h.svc.ScrollTarget(r.Context())
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("no highlighted verse"))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) accepted(w http.ResponseWriter, op string, err error) {
	if err != nil {
		writeError(w, op, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ── progress ───────────────────────────────────────────────────────────

// GetProgress handles GET /api/progress.
//
//	@Summary		Chapters marked as read per book
//	@Tags			progress
//	@Produce		json
//	@Success		200	{object}	models.ReadProgressMap
//	@Security		BearerAuth
//	@Router			/progress [get]
func (h *Handler) GetProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Progress())
}

// ToggleRead handles POST /api/progress/toggle.
//
//	@Summary		Flip the read flag of a chapter
//	@Tags			progress
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ToggleReadRequest	false	"Chapter; defaults to the current one"
//	@Success		200		{object}	ToggleReadResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/progress/toggle [post]
func (h *Handler) ToggleRead(w http.ResponseWriter, r *http.Request) {
	var req ToggleReadRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	read, err := h.svc.ToggleRead(r.Context(), req.BookID, req.Chapter)
	if err != nil {
		writeError(w, "toggle read", err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleReadResponse{Read: read})
}

// ── notes ──────────────────────────────────────────────────────────────

// ListNotes handles GET /api/notes.
//
//	@Summary		Notes of the active tier
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	models.NoteMap
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Notes())
}

// PutNote handles PUT /api/notes/{key}.
//
//	@Summary		Save a note under a key
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string		true	"Note key"
//	@Param			body	body		NoteRequest	true	"Content"
//	@Success		200		{object}	NoteResponse
//	@Security		BearerAuth
//	@Router			/notes/{key} [put]
func (h *Handler) PutNote(w http.ResponseWriter, r *http.Request) {
	key := noteKey(r)
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("key is required"))
		return
	}
	var req NoteRequest
	if !decode(w, r, &req) {
		return
	}
	h.saveNote(w, r, key, req.Content, false)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Save a note on the selected verse or the current chapter
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Content"
//	@Success		200		{object}	NoteResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decode(w, r, &req) {
		return
	}
	h.saveNote(w, r, "", req.Content, req.General)
}

func (h *Handler) saveNote(w http.ResponseWriter, r *http.Request, key, content string, general bool) {
	key, err := h.svc.SaveNote(r.Context(), key, content, general)
	if err != nil {
		writeError(w, "save note", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteResponse{Key: key})
}

// ── bookmarks ──────────────────────────────────────────────────────────

// ListBookmarks handles GET /api/bookmarks.
//
//	@Summary		Bookmarks of the active tier
//	@Tags			bookmarks
//	@Produce		json
//	@Success		200	{array}	models.Bookmark
//	@Security		BearerAuth
//	@Router			/bookmarks [get]
func (h *Handler) ListBookmarks(w http.ResponseWriter, _ *http.Request) {
	bms := h.svc.Bookmarks()
	if bms == nil {
		bms = []models.Bookmark{}
	}
	writeJSON(w, http.StatusOK, bms)
}

// ToggleBookmark handles POST /api/bookmarks/toggle.
//
//	@Summary		Bookmark or unbookmark a verse of the current chapter
//	@Tags			bookmarks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		VerseRequest	true	"Verse"
//	@Success		200		{object}	ToggleBookmarkResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/bookmarks/toggle [post]
func (h *Handler) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	var req VerseRequest
	if !decode(w, r, &req) {
		return
	}
	on, err := h.svc.ToggleBookmark(r.Context(), req.Verse)
	if err != nil {
		writeError(w, "toggle bookmark", err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleBookmarkResponse{Bookmarked: on})
}

// ── chat ───────────────────────────────────────────────────────────────

// ListChat handles GET /api/chat.
//
//	@Summary		Conversation history
//	@Tags			chat
//	@Produce		json
//	@Success		200	{array}	models.ChatMessage
//	@Security		BearerAuth
//	@Router			/chat [get]
func (h *Handler) ListChat(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Messages())
}

// SendChat handles POST /api/chat.
//
//	@Summary		Send a message about the current passage
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ChatRequest	true	"Message"
//	@Success		200		{object}	models.ChatMessage
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/chat [post]
func (h *Handler) SendChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.svc.SendChat(r.Context(), req.Text, req.Study, req.Location)
	if err != nil {
		writeError(w, "send chat", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// GenerateImage handles POST /api/chat/image.
//
//	@Summary		Illustrate the selected verse
//	@Tags			chat
//	@Produce		json
//	@Success		200	{object}	models.ChatMessage
//	@Failure		400	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/chat/image [post]
func (h *Handler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.svc.GenerateImage(r.Context())
	if err != nil {
		writeError(w, "generate image", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// ClearChat handles DELETE /api/chat.
//
//	@Summary		Restart the conversation
//	@Tags			chat
//	@Success		204
//	@Security		BearerAuth
//	@Router			/chat [delete]
func (h *Handler) ClearChat(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearChat(r.Context()); err != nil {
		writeError(w, "clear chat", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── theme ──────────────────────────────────────────────────────────────

// GetTheme handles GET /api/theme.
//
//	@Summary		Reading theme
//	@Tags			theme
//	@Produce		json
//	@Success		200	{object}	ThemeResponse
//	@Router			/theme [get]
func (h *Handler) GetTheme(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ThemeResponse{Theme: h.svc.Theme()})
}

// SetTheme handles PUT /api/theme.
//
//	@Summary		Store the reading theme
//	@Tags			theme
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ThemeRequest	true	"Theme"
//	@Success		200		{object}	ThemeResponse
//	@Failure		400		{object}	errResponse
//	@Router			/theme [put]
func (h *Handler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.SetTheme(req.Theme); err != nil {
		writeError(w, "set theme", err)
		return
	}
	writeJSON(w, http.StatusOK, ThemeResponse{Theme: req.Theme})
}
