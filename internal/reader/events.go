package reader

// Event types emitted to the observer.
const (
	EventBooks     = "reader.books"
	EventChapters  = "reader.chapters"
	EventVerses    = "reader.verses"
	EventHighlight = "reader.highlight"
	EventView      = "reader.view"
	EventToast     = "toast"
)

// Event is a state change notification.
type Event struct {
	Type string
	Data map[string]string
}

// Observer receives events from the session loop. It must not call back into
// the session.
type Observer func(Event)

// User-facing messages.
const (
	msgBooksFailed    = "Error cargando los libros. Intenta de nuevo."
	msgChaptersFailed = "Error cargando los capítulos. Intenta de nuevo."
	msgVersesFailed   = "Error cargando el capítulo. Intenta de nuevo."
)
