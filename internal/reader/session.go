// Package reader implements the chapter loader: the books → chapters → verses
// load cycle of one reading session, its pending navigation tokens and the
// verse highlight.
package reader

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/verbo/internal/apperr"
	"github.com/starford/verbo/internal/bible"
	"github.com/starford/verbo/internal/models"
)

// loop is the state owned by the session goroutine.
type loop struct {
	State

	// Generations tag every fetch; a result whose generation no longer
	// matches is discarded.
	editionGen uint64
	bookGen    uint64
	chapterGen uint64

	versesLoading bool

	highlightGen   uint64
	highlightTimer *time.Timer

	// signal is closed and replaced after every emitted event.
	signal chan struct{}
}

// Session owns one reader state machine.
//
// Concurrency model: a single goroutine owns the state. Public methods and
// fetch completions post closures to it, so no mutexes are required.
type Session struct {
	provider bible.Provider
	cfg      Config
	logger   *slog.Logger
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc

	cmdCh   chan func(*loop)
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// New starts an idle session. Call SetEdition to begin loading.
func New(provider bible.Provider, cfg Config, logger *slog.Logger, observer Observer) *Session {
	def := DefaultConfig()
	if cfg.HighlightTimeout <= 0 {
		cfg.HighlightTimeout = def.HighlightTimeout
	}
	if cfg.ScrollRetries <= 0 {
		cfg.ScrollRetries = def.ScrollRetries
	}
	if cfg.ScrollInterval <= 0 {
		cfg.ScrollInterval = def.ScrollInterval
	}
	if observer == nil {
		observer = func(Event) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		observer: observer,
		ctx:      ctx,
		cancel:   cancel,
		cmdCh:    make(chan func(*loop)),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Session) run() {
	defer close(s.stopped)

	st := &loop{signal: make(chan struct{})}
	st.View = models.ViewReader

	for {
		select {
		case <-s.stopCh:
			if st.highlightTimer != nil {
				st.highlightTimer.Stop()
			}
			return
		case fn := <-s.cmdCh:
			fn(st)
		}
	}
}

// Close stops the session loop and abandons in-flight fetches.
func (s *Session) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.cancel()
		close(s.stopCh)
	}
	<-s.stopped
}

// post hands fn to the loop without waiting for it to run.
func (s *Session) post(fn func(*loop)) {
	select {
	case s.cmdCh <- fn:
	case <-s.stopped:
	}
}

// do runs fn on the loop and waits for it to finish.
func (s *Session) do(fn func(*loop)) error {
	if s.closed.Load() {
		return apperr.ErrClosed
	}
	done := make(chan struct{})
	select {
	case s.cmdCh <- func(st *loop) { fn(st); close(done) }:
	case <-s.stopped:
		return apperr.ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-s.stopped:
		return apperr.ErrClosed
	}
}

func (s *Session) emit(st *loop, typ string, data map[string]string) {
	s.observer(Event{Type: typ, Data: data})
	close(st.signal)
	st.signal = make(chan struct{})
}

func (s *Session) toast(st *loop, msg string) {
	s.emit(st, EventToast, map[string]string{"message": msg})
}

// ── transitions (loop goroutine only) ──────────────────────────────────

func (s *Session) setEdition(st *loop, edition string) {
	st.Edition = edition
	st.editionGen++
	st.bookGen++
	st.chapterGen++
	st.versesLoading = false
	st.Books = nil
	st.CurrentBook = nil
	st.Chapters = nil
	st.CurrentChapter = nil
	st.Verses = nil
	st.SelectedVerse = ""
	st.PendingChapter = nil
	st.PendingVerse = nil
	s.clearHighlight(st)
	st.Phase = LoadingBooks

	gen := st.editionGen
	go func() {
		books, err := s.provider.Books(s.ctx, edition)
		s.post(func(st *loop) { s.booksLoaded(st, gen, books, err) })
	}()
}

func (s *Session) booksLoaded(st *loop, gen uint64, books []models.Book, err error) {
	if gen != st.editionGen {
		s.logger.Debug("reader: stale books discarded", slog.String("edition", st.Edition))
		return
	}
	if err != nil {
		s.logger.Error("reader: load books failed", slog.String("edition", st.Edition), slog.String("error", err.Error()))
		st.Phase = Idle
		s.toast(st, msgBooksFailed)
		return
	}
	st.Books = books
	st.Phase = BooksReady
	s.emit(st, EventBooks, map[string]string{"edition": st.Edition, "count": strconv.Itoa(len(books))})

	if st.CurrentBook == nil && len(books) > 0 {
		s.selectBook(st, books[0])
	}
}

func (s *Session) selectBook(st *loop, book models.Book) {
	st.CurrentBook = &book
	st.bookGen++
	st.Chapters = nil
	if st.CurrentChapter != nil && st.CurrentChapter.BookID != book.ID {
		st.chapterGen++
		st.versesLoading = false
		st.CurrentChapter = nil
		st.Verses = nil
		st.SelectedVerse = ""
	}
	st.Phase = LoadingChapters

	gen, edition := st.bookGen, st.Edition
	go func() {
		chapters, err := s.provider.Chapters(s.ctx, edition, book.ID)
		s.post(func(st *loop) { s.chaptersLoaded(st, gen, chapters, err) })
	}()
}

func (s *Session) chaptersLoaded(st *loop, gen uint64, chapters []models.Chapter, err error) {
	if gen != st.bookGen {
		s.logger.Debug("reader: stale chapters discarded")
		return
	}
	if err != nil {
		s.logger.Error("reader: load chapters failed", slog.String("book", st.CurrentBook.ID), slog.String("error", err.Error()))
		st.Phase = BooksReady
		s.toast(st, msgChaptersFailed)
		return
	}
	st.Chapters = chapters
	st.Phase = ChaptersReady
	s.emit(st, EventChapters, map[string]string{"bookId": st.CurrentBook.ID, "count": strconv.Itoa(len(chapters))})

	if len(chapters) == 0 {
		st.PendingChapter = nil
		return
	}
	switch {
	case st.PendingChapter != nil:
		target := chapters[0]
		for _, ch := range chapters {
			if ch.Int() == *st.PendingChapter {
				target = ch
				break
			}
		}
		st.PendingChapter = nil
		s.selectChapter(st, target)
	case st.CurrentChapter == nil || st.CurrentChapter.BookID != st.CurrentBook.ID:
		s.selectChapter(st, chapters[0])
	default:
		// The current chapter survives a reload of its own book.
		switch {
		case st.versesLoading:
			st.Phase = LoadingVerses
		case st.Verses != nil:
			st.Phase = VersesReady
		}
	}
}

func (s *Session) selectChapter(st *loop, ch models.Chapter) {
	st.CurrentChapter = &ch
	st.chapterGen++
	st.Verses = nil
	st.SelectedVerse = ""
	st.Phase = LoadingVerses
	st.versesLoading = true

	gen, edition := st.chapterGen, st.Edition
	go func() {
		verses, err := s.provider.Verses(s.ctx, edition, ch.ID)
		s.post(func(st *loop) { s.versesLoaded(st, gen, verses, err) })
	}()
}

func (s *Session) versesLoaded(st *loop, gen uint64, verses []models.Verse, err error) {
	if gen != st.chapterGen {
		s.logger.Debug("reader: stale verses discarded")
		return
	}
	st.versesLoading = false
	if err != nil {
		s.logger.Error("reader: load verses failed", slog.String("chapter", st.CurrentChapter.ID), slog.String("error", err.Error()))
		st.Phase = ChaptersReady
		// The verse belonged to this chapter; never carry it to another one.
		st.PendingVerse = nil
		s.toast(st, msgVersesFailed)
		return
	}
	if verses == nil {
		verses = []models.Verse{}
	}
	st.Verses = verses
	st.Phase = VersesReady

	if st.PendingVerse != nil {
		n := *st.PendingVerse
		st.PendingVerse = nil
		s.setHighlight(st, strconv.Itoa(n))
	} else {
		s.clearHighlight(st)
	}
	s.emit(st, EventVerses, map[string]string{"chapterId": st.CurrentChapter.ID, "count": strconv.Itoa(len(verses))})
}

func (s *Session) setHighlight(st *loop, number string) {
	if st.highlightTimer != nil {
		st.highlightTimer.Stop()
	}
	st.Highlight = number
	st.highlightGen++
	gen := st.highlightGen
	st.highlightTimer = time.AfterFunc(s.cfg.HighlightTimeout, func() {
		s.post(func(st *loop) {
			if st.highlightGen == gen {
				s.clearHighlight(st)
			}
		})
	})
	s.emit(st, EventHighlight, map[string]string{"verse": number})
}

func (s *Session) clearHighlight(st *loop) {
	if st.highlightTimer != nil {
		st.highlightTimer.Stop()
		st.highlightTimer = nil
	}
	st.highlightGen++
	if st.Highlight == "" {
		return
	}
	st.Highlight = ""
	s.emit(st, EventHighlight, map[string]string{"verse": ""})
}

func (s *Session) setView(st *loop, v models.View) {
	if st.View == v {
		return
	}
	st.View = v
	s.emit(st, EventView, map[string]string{"view": string(v)})
}

// ── public API ─────────────────────────────────────────────────────────

// SetEdition switches the edition and reloads everything from the book catalog.
func (s *Session) SetEdition(edition string) error {
	if edition == "" {
		return apperr.ErrInvalidInput
	}
	return s.do(func(st *loop) { s.setEdition(st, edition) })
}

// SelectBook makes the catalog entry with the given ID current.
func (s *Session) SelectBook(bookID string) error {
	var err error
	if doErr := s.do(func(st *loop) {
		for _, b := range st.Books {
			if b.ID == bookID {
				s.selectBook(st, b)
				return
			}
		}
		err = apperr.ErrNotFound
	}); doErr != nil {
		return doErr
	}
	return err
}

// SelectChapter makes the chapter with the given ID current and reloads its
// verses, even when it already is current.
func (s *Session) SelectChapter(chapterID string) error {
	var err error
	if doErr := s.do(func(st *loop) {
		for _, ch := range st.Chapters {
			if ch.ID == chapterID {
				s.clearHighlight(st)
				s.selectChapter(st, ch)
				return
			}
		}
		err = apperr.ErrNotFound
	}); doErr != nil {
		return doErr
	}
	return err
}

// SelectVerse marks a loaded verse as the selected one; "" clears the selection.
func (s *Session) SelectVerse(number string) error {
	var err error
	if doErr := s.do(func(st *loop) {
		if number == "" {
			st.SelectedVerse = ""
			return
		}
		if _, ok := st.State.Verse(number); !ok {
			err = apperr.ErrNotFound
			return
		}
		st.SelectedVerse = number
	}); doErr != nil {
		return doErr
	}
	return err
}

// NextChapter advances one chapter, crossing into the first chapter of the
// next book after the last one. It is a no-op at the end of the last book.
func (s *Session) NextChapter() error {
	return s.do(func(st *loop) {
		s.clearHighlight(st)
		idx := st.chapterIndex()
		if idx < len(st.Chapters)-1 {
			s.selectChapter(st, st.Chapters[idx+1])
			return
		}
		bookIdx := st.bookIndex()
		if bookIdx < len(st.Books)-1 {
			s.selectBook(st, st.Books[bookIdx+1])
			st.PendingChapter = intPtr(1)
		}
	})
}

// PrevChapter steps back one chapter. Before the first chapter it moves to the
// previous book and requests its last chapter through the retreat sentinel.
func (s *Session) PrevChapter() error {
	return s.do(func(st *loop) {
		s.clearHighlight(st)
		idx := st.chapterIndex()
		if idx > 0 {
			s.selectChapter(st, st.Chapters[idx-1])
			return
		}
		bookIdx := st.bookIndex()
		if bookIdx > 0 {
			s.selectBook(st, st.Books[bookIdx-1])
			st.PendingChapter = intPtr(retreatSentinel)
		}
	})
}

// ClearHighlight drops the highlight, as on a user-initiated scroll.
func (s *Session) ClearHighlight() error {
	return s.do(func(st *loop) { s.clearHighlight(st) })
}

// SetView switches the top-level screen.
func (s *Session) SetView(v models.View) error {
	return s.do(func(st *loop) { s.setView(st, v) })
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	var out State
	_ = s.do(func(st *loop) { out = st.State.clone() })
	return out
}

// ScrollTarget waits until the highlighted verse is present in the loaded
// verses and returns it. It gives up after ScrollRetries × ScrollInterval.
func (s *Session) ScrollTarget(ctx context.Context) (models.Verse, bool) {
	deadline := time.NewTimer(time.Duration(s.cfg.ScrollRetries) * s.cfg.ScrollInterval)
	defer deadline.Stop()

	for {
		var (
			verse  models.Verse
			found  bool
			signal <-chan struct{}
		)
		if err := s.do(func(st *loop) {
			signal = st.signal
			if st.Phase == VersesReady && st.Highlight != "" {
				verse, found = st.State.Verse(st.Highlight)
			}
		}); err != nil {
			return models.Verse{}, false
		}
		if found {
			return verse, true
		}
		select {
		case <-signal:
		case <-deadline.C:
			return models.Verse{}, false
		case <-ctx.Done():
			return models.Verse{}, false
		}
	}
}

func (st *loop) chapterIndex() int {
	if st.CurrentChapter == nil {
		return -1
	}
	for i, ch := range st.Chapters {
		if ch.ID == st.CurrentChapter.ID {
			return i
		}
	}
	return -1
}

func (st *loop) bookIndex() int {
	if st.CurrentBook == nil {
		return -1
	}
	for i, b := range st.Books {
		if b.ID == st.CurrentBook.ID {
			return i
		}
	}
	return -1
}
