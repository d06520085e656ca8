package authdb

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds every tunable of a [DB]. Start from [DefaultConfig]; a zero
// Config does not validate.
type Config struct {
	Keys       KeysConfig
	Password   PasswordConfig
	Session    SessionConfig
	Timestamps TimestampsConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
KEYS CONFIG
====================================
*/

// KeysConfig sets the namespace of every Redis key. Two DBs with different
// prefixes on one Redis never see each other's records. ScanCount is the SCAN
// batch size used when listing roles; zero means 500.
type KeysConfig struct {
	Prefix    string
	ScanCount int64
}

/*
====================================
PASSWORD CONFIG
====================================
*/

const (
	AlgorithmPBKDF2   = "pbkdf2"
	AlgorithmArgon2id = "argon2id"
)

// PasswordConfig controls password policy and hashing. Iterations, KeyLength
// and Digest apply to pbkdf2; Memory, Time, Parallelism and KeyLength apply to
// argon2id.
type PasswordConfig struct {
	Required   bool
	MinLength  int
	MaxLength  int
	SaltLength int

	Algorithm  string
	Iterations int
	KeyLength  int
	Digest     string // "sha1" (default), "sha256", "sha512"

	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig sets the default session lifetime and the SCAN batch size used
// by bulk session enumeration.
type SessionConfig struct {
	DefaultTTL time.Duration
	ScanCount  int64
}

// TimestampsConfig toggles createdAt/updatedAt stamping on users, emails and
// roles. Session timestamps are always recorded.
type TimestampsConfig struct {
	AutoStamp bool
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration authdb uses when none is supplied.
// The password defaults reproduce the legacy hash format (pbkdf2, sha1,
// 10000 iterations, 64-byte key).
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Keys: KeysConfig{
			Prefix:    "auth-db",
			ScanCount: 500,
		},
		Password: PasswordConfig{
			Required:    true,
			MinLength:   6,
			MaxLength:   1024,
			SaltLength:  16,
			Algorithm:   AlgorithmPBKDF2,
			Iterations:  10000,
			KeyLength:   64,
			Digest:      "sha1",
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
		},
		Session: SessionConfig{
			DefaultTTL: 24 * time.Hour,
			ScanCount:  500,
		},
		Timestamps: TimestampsConfig{
			AutoStamp: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Keys
	if strings.TrimSpace(c.Keys.Prefix) == "" {
		return errors.New("Keys Prefix must not be empty")
	}
	if strings.ContainsAny(c.Keys.Prefix, "*?[]") {
		return errors.New("Keys Prefix must not contain glob characters")
	}
	if c.Keys.ScanCount < 0 {
		return errors.New("Keys ScanCount must be >= 0")
	}

	// Password
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if c.Password.SaltLength < 8 {
		return errors.New("Password SaltLength must be >= 8")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	switch c.Password.Algorithm {
	case AlgorithmPBKDF2:
		if c.Password.Iterations < 1000 {
			return errors.New("Password Iterations must be >= 1000")
		}
		switch c.Password.Digest {
		case "sha1", "sha256", "sha512":
		default:
			return fmt.Errorf("Password Digest %q is not supported", c.Password.Digest)
		}
	case AlgorithmArgon2id:
		if c.Password.Memory < 8*1024 {
			return errors.New("Password Memory must be >= 8192 KB")
		}
		if c.Password.Time < 1 {
			return errors.New("Password Time must be >= 1")
		}
		if c.Password.Parallelism < 1 {
			return errors.New("Password Parallelism must be >= 1")
		}
	default:
		return fmt.Errorf("Password Algorithm %q is not supported", c.Password.Algorithm)
	}

	// Session
	if c.Session.DefaultTTL < time.Millisecond {
		return errors.New("Session DefaultTTL must be >= 1ms")
	}
	if c.Session.ScanCount < 0 {
		return errors.New("Session ScanCount must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
