// Package storage persists guest-mode state as JSON blobs in a local data directory.
package storage

// Provider is the interface for local blob operations. Keys are plain names
// ("notes", "progress"); each maps to one file under the data directory.
type Provider interface {
	// Keys returns the names of every stored blob.
	Keys() ([]string, error)
	// Read returns the raw bytes of the blob, wrapping os.ErrNotExist when absent.
	Read(key string) ([]byte, error)
	// Write atomically replaces the blob.
	Write(key string, content []byte) error
	// Delete removes the blob.
	Delete(key string) error
}
