package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/starford/verbo/internal/checksum"
)

const blobExt = ".json"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the data directory

	mu      sync.Mutex
	written map[string]string // key -> checksum of our last write
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs, written: make(map[string]string)}, nil
}

// Root returns the absolute data directory.
func (f *FS) Root() string { return f.root }

// blobPath maps a key to its file, rejecting keys that could escape the root.
func (f *FS) blobPath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("storage: empty key")
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", fmt.Errorf("storage: invalid key: %s", key)
	}
	return filepath.Join(f.root, key+blobExt), nil
}

// KeyOf returns the blob key for an absolute path inside the root, or false.
func (f *FS) KeyOf(path string) (string, bool) {
	if filepath.Dir(path) != f.root || !strings.HasSuffix(path, blobExt) {
		return "", false
	}
	name := strings.TrimSuffix(filepath.Base(path), blobExt)
	if name == "" || strings.HasPrefix(name, ".") {
		return "", false
	}
	return name, true
}

// Keys lists every blob in the data directory.
func (f *FS) Keys() ([]string, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := f.KeyOf(filepath.Join(f.root, e.Name())); ok {
			out = append(out, key)
		}
	}
	return out, nil
}

// Read returns the raw bytes of a blob.
func (f *FS) Read(key string) ([]byte, error) {
	abs, err := f.blobPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(key string, content []byte) error {
	abs, err := f.blobPath(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".verbo-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}

	f.mu.Lock()
	f.written[key] = checksum.Sum(content)
	f.mu.Unlock()

	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (f *FS) Delete(key string) error {
	abs, err := f.blobPath(key)
	if err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.written, key)
	f.mu.Unlock()
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// OwnWrite reports whether data is exactly what this process last wrote to key.
func (f *FS) OwnWrite(key string, data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return checksum.Equal(data, f.written[key])
}
