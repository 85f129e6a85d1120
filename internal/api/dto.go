package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/verbo/internal/chat"
	"github.com/starford/verbo/internal/models"
	"github.com/starford/verbo/internal/readingservice"
)

// LoginRequest is the request body for opening an authenticated session.
type LoginRequest struct {
	ID   string `json:"id" example:"u_123" validate:"required"`
	Name string `json:"name" example:"Ana"`
}

// Validate implements validation.Validatable.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Name, validation.Length(0, 256)),
	)
}

// SessionResponse describes the current identity (aliased from the domain layer).
type SessionResponse = readingservice.SessionInfo

// EditionRequest selects an edition.
type EditionRequest struct {
	Edition string `json:"edition" example:"592420522e16049f-01" validate:"required"`
}

// Validate implements validation.Validatable.
func (r EditionRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Edition, validation.Required))
}

// BookRequest selects a book.
type BookRequest struct {
	BookID string `json:"bookId" example:"JHN" validate:"required"`
}

// Validate implements validation.Validatable.
func (r BookRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.BookID, validation.Required))
}

// ChapterRequest selects a chapter.
type ChapterRequest struct {
	ChapterID string `json:"chapterId" example:"JHN.3" validate:"required"`
}

// Validate implements validation.Validatable.
func (r ChapterRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.ChapterID, validation.Required))
}

// VerseRequest addresses a loaded verse by number. An empty verse clears the
// selection.
type VerseRequest struct {
	Verse string `json:"verse" example:"16"`
}

// Validate implements validation.Validatable.
func (r VerseRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Verse, validation.Length(0, 16)))
}

// ViewRequest switches the top-level screen.
type ViewRequest struct {
	View models.View `json:"view" example:"reader" validate:"required"`
}

// Validate implements validation.Validatable.
func (r ViewRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.View, validation.Required,
			validation.In(models.ViewReader, models.ViewDashboard, models.ViewMap)),
	)
}

// NavigateRequest carries free text that may contain a reference.
type NavigateRequest struct {
	Text string `json:"text" example:"Juan 3:16" validate:"required"`
}

// Validate implements validation.Validatable.
func (r NavigateRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Text, validation.Required, validation.Length(1, 1000)))
}

// NavigateResponse reports whether a reference was recognised.
type NavigateResponse struct {
	Recognised bool `json:"recognised"`
}

// ToggleReadRequest addresses a chapter; empty fields mean the current one.
type ToggleReadRequest struct {
	BookID  string `json:"bookId" example:"JHN"`
	Chapter string `json:"chapter" example:"3"`
}

// Validate implements validation.Validatable.
func (r ToggleReadRequest) Validate() error { return nil }

// ToggleReadResponse is the new read flag.
type ToggleReadResponse struct {
	Read bool `json:"read"`
}

// NoteRequest is the request body for saving a note under an explicit key.
type NoteRequest struct {
	Content string `json:"content" example:"Amor de Dios"`
}

// Validate implements validation.Validatable.
func (r NoteRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Content, validation.Length(0, 100_000)))
}

// CreateNoteRequest saves a note on the selected verse, or on the current
// chapter when General is set.
type CreateNoteRequest struct {
	Content string `json:"content" example:"Amor de Dios"`
	General bool   `json:"general"`
}

// Validate implements validation.Validatable.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Content, validation.Length(0, 100_000)))
}

// NoteResponse reports the key a note was stored under.
type NoteResponse struct {
	Key string `json:"key" example:"JHN.3.16"`
}

// ToggleBookmarkResponse is the new bookmark flag.
type ToggleBookmarkResponse struct {
	Bookmarked bool `json:"bookmarked"`
}

// ChatRequest is a user chat message.
type ChatRequest struct {
	Text     string         `json:"text" example:"¿Qué significa Juan 3:16?" validate:"required"`
	Study    bool           `json:"study"`
	Location *chat.Location `json:"location,omitempty"`
}

// Validate implements validation.Validatable.
func (r ChatRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required, validation.Length(1, 4000)),
		validation.Field(&r.Location, validation.By(func(v any) error {
			loc, _ := v.(*chat.Location)
			if loc == nil {
				return nil
			}
			return validation.ValidateStruct(loc,
				validation.Field(&loc.Latitude, validation.Min(-90.0), validation.Max(90.0)),
				validation.Field(&loc.Longitude, validation.Min(-180.0), validation.Max(180.0)),
			)
		})),
	)
}

// ThemeRequest sets the reading theme.
type ThemeRequest struct {
	Theme models.Theme `json:"theme" example:"sepia" validate:"required"`
}

// Validate implements validation.Validatable.
func (r ThemeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Theme, validation.Required,
			validation.In(models.ThemeDark, models.ThemeLight, models.ThemeSepia)),
	)
}

// ThemeResponse is the stored theme.
type ThemeResponse struct {
	Theme models.Theme `json:"theme" example:"dark"`
}
