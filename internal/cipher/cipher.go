// Package cipher encrypts user content at rest in the remote store.
package cipher

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher is a symmetric cipher over UTF-8 strings.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

var errShortCiphertext = errors.New("cipher: ciphertext too short")

// XChaCha encrypts with XChaCha20-Poly1305. Ciphertexts are base64 strings of
// nonce || sealed box.
type XChaCha struct {
	aead cipher.AEAD
	rng  io.Reader
}

// New derives a key from secret and returns a ready cipher.
func New(secret string) (*XChaCha, error) {
	if secret == "" {
		return nil, errors.New("cipher: empty secret")
	}
	key := blake2b.Sum256([]byte(secret))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("cipher: init: %w", err)
	}
	return &XChaCha{aead: aead, rng: rand.Reader}, nil
}

// Encrypt seals plaintext. The empty string encrypts to the empty string.
func (c *XChaCha) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(c.rng, nonce); err != nil {
		return "", fmt.Errorf("cipher: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (c *XChaCha) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("cipher: decode: %w", err)
	}
	n := c.aead.NonceSize()
	if len(data) <= n {
		return "", errShortCiphertext
	}
	plain, err := c.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("cipher: open: %w", err)
	}
	return string(plain), nil
}

// DecryptOrEmpty decrypts one field and degrades to "" on malformed or foreign
// ciphertext, so a single bad row never aborts a batch.
func DecryptOrEmpty(c Cipher, ciphertext string, logger *slog.Logger) string {
	plain, err := c.Decrypt(ciphertext)
	if err != nil {
		if logger != nil {
			logger.Warn("cipher: decrypt failed", slog.String("error", err.Error()))
		}
		return ""
	}
	return plain
}
