package password

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	minIterations      = 1000
	minPBKDF2KeyLength = 16
)

// PBKDF2Config selects the PBKDF2 parameters.
type PBKDF2Config struct {
	Iterations int
	KeyLength  int
	Digest     string // "sha1" (default), "sha256", "sha512"
}

// PBKDF2 hashes passwords with PBKDF2 over the configured digest.
type PBKDF2 struct {
	iterations int
	keyLength  int
	digest     func() hash.Hash
}

// NewPBKDF2 validates cfg and returns a PBKDF2 hasher.
func NewPBKDF2(cfg PBKDF2Config) (*PBKDF2, error) {
	if cfg.Iterations < minIterations {
		return nil, fmt.Errorf("pbkdf2 iterations must be >= %d", minIterations)
	}
	if cfg.KeyLength < minPBKDF2KeyLength {
		return nil, fmt.Errorf("pbkdf2 key length must be >= %d", minPBKDF2KeyLength)
	}
	digest, err := digestFunc(cfg.Digest)
	if err != nil {
		return nil, err
	}

	return &PBKDF2{
		iterations: cfg.Iterations,
		keyLength:  cfg.KeyLength,
		digest:     digest,
	}, nil
}

// Hash implements [Hasher].
func (p *PBKDF2) Hash(plaintext, salt string) (string, error) {
	if salt == "" {
		return "", errors.New("salt required")
	}
	key := pbkdf2.Key([]byte(plaintext), []byte(salt), p.iterations, p.keyLength, p.digest)
	return base64.StdEncoding.EncodeToString(key), nil
}

func digestFunc(name string) (func() hash.Hash, error) {
	switch strings.ToLower(name) {
	case "", "sha1":
		return sha1.New, nil
	case "sha256":
		return sha256.New, nil
	case "sha512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported digest " + name)
	}
}
