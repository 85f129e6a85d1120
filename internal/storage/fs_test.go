package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempStore(t)
	content := []byte(`{"a":"b"}`)
	if err := s.Write("notes", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("notes")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "notes.json")); err != nil {
		t.Errorf("blob file missing: %v", err)
	}
}

func TestReadMissing(t *testing.T) {
	s := tempStore(t)
	_, err := s.Read("nope")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("bye", []byte("1"))
	if err := s.Delete("bye"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("bye"); err == nil {
		t.Error("expected error reading deleted blob")
	}
	if err := s.Delete("bye"); err != nil {
		t.Errorf("second delete should be a no-op: %v", err)
	}
}

func TestKeys(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("a", []byte("1"))
	_ = s.Write("b", []byte("2"))
	_ = os.WriteFile(filepath.Join(s.Root(), "ignored.txt"), []byte("x"), 0o644)

	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("keys = %v", keys)
	}
}

func TestInvalidKeys(t *testing.T) {
	s := tempStore(t)
	for _, key := range []string{"", "../escape", "a/b", `a\b`} {
		if err := s.Write(key, []byte("x")); err == nil {
			t.Errorf("Write(%q) should fail", key)
		}
	}
}

func TestOwnWrite(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("k", []byte("mine"))
	if !s.OwnWrite("k", []byte("mine")) {
		t.Error("expected own write to be recognised")
	}
	if s.OwnWrite("k", []byte("theirs")) {
		t.Error("foreign content reported as own write")
	}
}

func TestNewFSRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	_ = os.WriteFile(f, []byte("x"), 0o644)
	if _, err := NewFS(f); err == nil {
		t.Fatal("expected error for non-directory root")
	}
}
