package storage

import (
	"testing"

	"github.com/starford/verbo/internal/models"
)

func TestLocal_EmptyDefaults(t *testing.T) {
	l := NewLocal(tempStore(t))

	notes, err := l.Notes()
	if err != nil || len(notes) != 0 {
		t.Fatalf("Notes = %v, %v", notes, err)
	}
	bms, err := l.Bookmarks()
	if err != nil || len(bms) != 0 {
		t.Fatalf("Bookmarks = %v, %v", bms, err)
	}
	progress, err := l.Progress()
	if err != nil || len(progress) != 0 {
		t.Fatalf("Progress = %v, %v", progress, err)
	}
	theme, err := l.Theme(models.ThemeDark)
	if err != nil || theme != models.ThemeDark {
		t.Fatalf("Theme = %v, %v", theme, err)
	}
}

func TestLocal_RoundTrip(t *testing.T) {
	l := NewLocal(tempStore(t))

	if err := l.SaveNotes(models.NoteMap{"JHN.3.16": "amor"}); err != nil {
		t.Fatal(err)
	}
	if err := l.SaveBookmarks([]models.Bookmark{{ID: "JHN.3.16", Number: "16"}}); err != nil {
		t.Fatal(err)
	}
	if err := l.SaveProgress(models.ReadProgressMap{"JHN": {"1", "2"}}); err != nil {
		t.Fatal(err)
	}
	if err := l.SaveTheme(models.ThemeSepia); err != nil {
		t.Fatal(err)
	}

	notes, _ := l.Notes()
	if notes["JHN.3.16"] != "amor" {
		t.Errorf("notes = %v", notes)
	}
	bms, _ := l.Bookmarks()
	if len(bms) != 1 || bms[0].ID != "JHN.3.16" {
		t.Errorf("bookmarks = %v", bms)
	}
	progress, _ := l.Progress()
	if len(progress["JHN"]) != 2 {
		t.Errorf("progress = %v", progress)
	}
	theme, _ := l.Theme(models.ThemeDark)
	if theme != models.ThemeSepia {
		t.Errorf("theme = %v", theme)
	}
}

func TestLocal_CorruptBlob(t *testing.T) {
	s := tempStore(t)
	_ = s.Write(KeyNotes, []byte("{not json"))
	l := NewLocal(s)
	notes, err := l.Notes()
	if err == nil {
		t.Fatal("expected decode error")
	}
	if notes == nil {
		t.Error("notes should be an empty map even on error")
	}
}
