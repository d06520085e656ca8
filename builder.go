package authdb

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/authdb/internal/stores"
	"github.com/MrEthical07/authdb/password"
	"github.com/MrEthical07/authdb/session"
)

// Builder assembles a [DB]. Configure it during initialization, call Build
// once, then discard it.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	hasher    password.Hasher
	logger    logrus.FieldLogger
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client. It is required; authdb never dials on its
// own.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHasher overrides the password hasher derived from Config.Password.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithLogger sets the logger. The default is logrus.StandardLogger().
func (b *Builder) WithLogger(l logrus.FieldLogger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the registries.
func (b *Builder) Build() (*DB, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher := b.hasher
	if hasher == nil {
		h, err := newHasher(cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("password hasher: %w", err)
		}
		hasher = h
	}

	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("component", "authdb")

	keys := stores.NewKeys(cfg.Keys.Prefix)

	c := &core{
		cfg:      cfg,
		redis:    b.redis,
		keys:     keys,
		hasher:   hasher,
		validate: validator.New(),
		log:      logger,
		metrics:  NewMetrics(cfg.Metrics),
		sessions: session.NewStore(b.redis, keys.Sessions(), cfg.Session.ScanCount),
		now:      time.Now,
	}
	c.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)

	b.built = true

	return newDB(c), nil
}

func newHasher(cfg PasswordConfig) (password.Hasher, error) {
	if cfg.Algorithm == AlgorithmArgon2id {
		h, err := password.NewArgon2(password.Argon2Config{
			Memory:      cfg.Memory,
			Time:        cfg.Time,
			Parallelism: cfg.Parallelism,
			KeyLength:   uint32(cfg.KeyLength),
		})
		if err != nil {
			return nil, err
		}
		return h, nil
	}

	h, err := password.NewPBKDF2(password.PBKDF2Config{
		Iterations: cfg.Iterations,
		KeyLength:  cfg.KeyLength,
		Digest:     cfg.Digest,
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}
