package password

import (
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minKeyLength   uint32 = 16
)

// Argon2Config selects the argon2id cost parameters.
type Argon2Config struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	KeyLength   uint32
}

// Argon2 hashes passwords with argon2id.
type Argon2 struct {
	config Argon2Config
}

// NewArgon2 validates cfg and returns an argon2id hasher.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := validateArgon2Config(cfg); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash implements [Hasher]. Password bytes are used exactly as provided
// (no Unicode normalization).
func (a *Argon2) Hash(plaintext, salt string) (string, error) {
	if salt == "" {
		return "", errors.New("salt required")
	}

	key := argon2.IDKey(
		[]byte(plaintext),
		[]byte(salt),
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	)

	return base64.StdEncoding.EncodeToString(key), nil
}

func validateArgon2Config(cfg Argon2Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}
	return nil
}
