package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io"
)

// Hasher derives a digest from a plaintext password and its salt.
type Hasher interface {
	Hash(plaintext, salt string) (string, error)
}

// NewSalt returns n random bytes, base64-encoded.
func NewSalt(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("salt length must be > 0")
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Equal compares two encoded digests in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Verify re-derives the digest of plaintext under salt and compares it to
// stored. A hashing failure reports false.
func Verify(h Hasher, plaintext, salt, stored string) bool {
	if h == nil || stored == "" {
		return false
	}
	computed, err := h.Hash(plaintext, salt)
	if err != nil {
		return false
	}
	return Equal(computed, stored)
}
