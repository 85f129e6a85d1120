// Package navigation turns free text such as "Juan 3:16" into coordinates of a
// loaded book catalog.
package navigation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/starford/verbo/internal/models"
)

var (
	markdownRe  = regexp.MustCompile(`[*_#]`)
	referenceRe = regexp.MustCompile(`(?i)([123]?\s?[\p{L}\p{M}0-9]+\s*[\p{L}\p{M}]*)\s*(\d+)(?::(\d+))?`)
)

// minFragmentLen rejects lone words such as "y 3".
const minFragmentLen = 2

// Target is a resolved navigation request.
type Target struct {
	Book    models.Book
	Chapter int
	Verse   *int // nil when the reference names a whole chapter
}

// String formats the target as "Book chapter[:verse]".
func (t Target) String() string {
	if t.Verse != nil {
		return fmt.Sprintf("%s %d:%d", t.Book.Name, t.Chapter, *t.Verse)
	}
	return fmt.Sprintf("%s %d", t.Book.Name, t.Chapter)
}

// Resolve finds the first reference in text and matches it against catalog.
// It returns nil when the text holds no reference, the book fragment is too
// short, or no catalog entry matches; callers treat nil as "do nothing".
func Resolve(text string, catalog []models.Book) *Target {
	if len(catalog) == 0 {
		return nil
	}
	clean := strings.TrimSpace(markdownRe.ReplaceAllString(text, ""))
	m := referenceRe.FindStringSubmatch(clean)
	if m == nil {
		return nil
	}

	raw := strings.ToLower(strings.TrimSpace(m[1]))
	query := Fold(raw)
	if utf8.RuneCountInString(query) < minFragmentLen {
		return nil
	}

	chapter, err := strconv.Atoi(m[2])
	if err != nil {
		return nil
	}
	var verse *int
	if m[3] != "" {
		v, err := strconv.Atoi(m[3])
		if err != nil {
			return nil
		}
		verse = &v
	}

	book, ok := matchBook(raw, query, catalog)
	if !ok {
		return nil
	}
	return &Target{Book: book, Chapter: chapter, Verse: verse}
}

// matchBook prefers an exact identifier match over a name containment match.
func matchBook(raw, query string, catalog []models.Book) (models.Book, bool) {
	for _, b := range catalog {
		if strings.EqualFold(b.ID, raw) {
			return b, true
		}
	}
	for _, b := range catalog {
		if strings.Contains(Fold(b.Name), query) {
			return b, true
		}
	}
	return models.Book{}, false
}

// Fold lowercases s and strips combining marks so "Génesis" and "genesis"
// compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}
