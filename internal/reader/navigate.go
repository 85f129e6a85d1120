package reader

import (
	"log/slog"
	"strconv"

	"github.com/starford/verbo/internal/models"
	"github.com/starford/verbo/internal/navigation"
)

// Navigate resolves a free-text reference against the loaded catalog and moves
// the session towards it. It reports whether a reference was recognised.
//
// The move depends on whether the target book and chapter are already current:
//   - same book, same chapter: highlight the verse now, or on arrival if the
//     verses are still loading
//   - same book, other chapter: switch chapter; the verse waits as a pending token
//   - same book, chapter not in the list: stash the chapter as a pending token
//   - other book: switch book and stash the chapter as a pending token
func (s *Session) Navigate(text string) (bool, error) {
	var ok bool
	err := s.do(func(st *loop) {
		target := navigation.Resolve(text, st.Books)
		if target == nil {
			return
		}
		ok = true
		s.navigate(st, target)
	})
	return ok, err
}

func (s *Session) navigate(st *loop, target *navigation.Target) {
	s.logger.Info("reader: navigate", slog.String("target", target.String()))
	s.toast(st, "Yendo a "+target.String()+"...")
	s.setView(st, models.ViewReader)

	if target.Verse != nil {
		st.PendingVerse = intPtr(*target.Verse)
	}

	if st.CurrentBook == nil || st.CurrentBook.ID != target.Book.ID {
		s.selectBook(st, target.Book)
		st.PendingChapter = intPtr(target.Chapter)
		return
	}

	var found *models.Chapter
	for i := range st.Chapters {
		if st.Chapters[i].Int() == target.Chapter {
			found = &st.Chapters[i]
			break
		}
	}
	if found == nil {
		st.PendingChapter = intPtr(target.Chapter)
		return
	}

	if st.CurrentChapter == nil || found.ID != st.CurrentChapter.ID {
		s.selectChapter(st, *found)
		return
	}

	// Already on the target chapter. The token survives only while this
	// chapter's verses are in flight; versesLoaded consumes it then.
	if target.Verse != nil && !st.versesLoading {
		st.PendingVerse = nil
		s.setHighlight(st, strconv.Itoa(*target.Verse))
	}
}
