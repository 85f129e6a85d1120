// Package models defines the domain types for Verbo.
package models

import (
	"fmt"
	"strconv"
)

// Edition is a Bible translation selectable by the user.
type Edition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Book is a catalog entry of an edition. Immutable once fetched.
type Book struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BibleID string `json:"bibleId"`
}

// Chapter is a chapter reference inside a book. Number is kept as the source
// text numbering ("1", "2", ...).
type Chapter struct {
	ID     string `json:"id"`
	BookID string `json:"bookId"`
	Number string `json:"number"`
}

// Int returns the numeric chapter number, or 0 when it is not numeric.
func (c Chapter) Int() int {
	n, err := strconv.Atoi(c.Number)
	if err != nil {
		return 0
	}
	return n
}

// Verse is a single verse of a loaded chapter. Numbers are strings and are not
// necessarily dense integers.
type Verse struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Text   string `json:"text"`
}

// Bookmark is a saved verse with denormalised display fields. ID is the verse ID.
type Bookmark struct {
	ID         string `json:"id"`
	Number     string `json:"number"`
	Text       string `json:"text"`
	BookName   string `json:"bookName"`
	ChapterNum string `json:"chapterNum"`
}

// NoteMap maps a note key to its plaintext content.
type NoteMap map[string]string

// ReadProgressMap maps a book ID to the chapter numbers marked as read.
type ReadProgressMap map[string][]string

// GeneralNoteKey returns the key of the chapter-level note for a book chapter.
func GeneralNoteKey(bookID, chapterNumber string) string {
	return fmt.Sprintf("%s-%s-GENERAL", bookID, chapterNumber)
}

// Theme is the reading theme preference.
type Theme string

// Reading themes.
const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
	ThemeSepia Theme = "sepia"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	switch t {
	case ThemeDark, ThemeLight, ThemeSepia:
		return true
	}
	return false
}
