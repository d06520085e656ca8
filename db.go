package authdb

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	internalaudit "github.com/MrEthical07/authdb/internal/audit"
	"github.com/MrEthical07/authdb/internal/stores"
	"github.com/MrEthical07/authdb/password"
	"github.com/MrEthical07/authdb/session"
)

// DB is the authdb facade. Its methods are safe for concurrent use.
type DB struct {
	Users    *Users
	Email    *Emails
	Roles    *Roles
	Sessions *Sessions

	core *core
}

// core is the state shared by every registry.
type core struct {
	cfg      Config
	redis    redis.UniversalClient
	keys     stores.Keys
	hasher   password.Hasher
	validate *validator.Validate
	log      logrus.FieldLogger
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	sessions *session.Store
	now      func() time.Time
}

func newDB(c *core) *DB {
	return &DB{
		Users:    &Users{core: c},
		Email:    &Emails{core: c},
		Roles:    &Roles{core: c},
		Sessions: &Sessions{core: c},
		core:     c,
	}
}

// Close flushes pending audit events. The Redis client is owned by the caller
// and stays open.
func (db *DB) Close() {
	if db == nil || db.core == nil {
		return
	}
	db.core.audit.Close()
}

// Ping checks Redis reachability and returns the round-trip latency.
func (db *DB) Ping(ctx context.Context) (time.Duration, error) {
	d, err := db.core.sessions.Ping(ctx)
	return d, storeError(err)
}

// fail maps err through storeError and records lock conflicts.
func (c *core) fail(op string, fields logrus.Fields, err error) error {
	err = storeError(err)
	if errors.Is(err, ErrLockConflict) {
		c.metrics.Inc(MetricLockConflict)
		c.log.WithFields(fields).WithField("op", op).Debug("optimistic commit rejected")
	}
	return err
}

// stamp returns now in unix milliseconds when auto-stamping is on, else 0.
func (c *core) stamp() int64 {
	if !c.cfg.Timestamps.AutoStamp {
		return 0
	}
	return c.now().UnixMilli()
}
