package cipher

import (
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	c, err := New("secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ct, err := c.Encrypt("Dios es amor")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if strings.Contains(ct, "amor") {
		t.Fatalf("ciphertext leaks plaintext: %q", ct)
	}
	pt, err := c.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if pt != "Dios es amor" {
		t.Errorf("plaintext = %q", pt)
	}
}

func TestEncryptIsRandomised(t *testing.T) {
	c, _ := New("secret")
	a, _ := c.Encrypt("same")
	b, _ := c.Encrypt("same")
	if a == b {
		t.Error("two encryptions of the same text should differ")
	}
}

func TestEmptyString(t *testing.T) {
	c, _ := New("secret")
	ct, err := c.Encrypt("")
	if err != nil || ct != "" {
		t.Fatalf("Encrypt(\"\") = %q, %v", ct, err)
	}
	pt, err := c.Decrypt("")
	if err != nil || pt != "" {
		t.Fatalf("Decrypt(\"\") = %q, %v", pt, err)
	}
}

func TestForeignKeyFails(t *testing.T) {
	a, _ := New("one")
	b, _ := New("two")
	ct, _ := a.Encrypt("hello")
	if _, err := b.Decrypt(ct); err == nil {
		t.Fatal("expected error decrypting with another key")
	}
}

func TestDecryptOrEmpty(t *testing.T) {
	c, _ := New("secret")
	if got := DecryptOrEmpty(c, "not base64 !!", nil); got != "" {
		t.Errorf("malformed = %q, want empty", got)
	}
	if got := DecryptOrEmpty(c, "AAAA", nil); got != "" {
		t.Errorf("short = %q, want empty", got)
	}
	ct, _ := c.Encrypt("ok")
	if got := DecryptOrEmpty(c, ct, nil); got != "ok" {
		t.Errorf("valid = %q", got)
	}
}

func TestNewRejectsEmptySecret(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error")
	}
}
