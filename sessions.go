package authdb

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/authdb/internal/stores"
	"github.com/MrEthical07/authdb/internal/txn"
	"github.com/MrEthical07/authdb/session"
)

// Sessions manages TTL-bound sessions keyed by (subject, id). The subject is
// the owning user's name.
type Sessions struct {
	core *core
}

// Get returns the session, or nil with a nil error when it is absent or has
// expired.
func (s *Sessions) Get(ctx context.Context, subject, id string) (*Session, error) {
	sub := normalizeName(subject)
	if sub == "" {
		return nil, ErrMissingUsername
	}
	if id == "" {
		return nil, nil
	}
	sess, err := s.core.sessions.Get(ctx, sub, id)
	if err != nil {
		return nil, storeError(err)
	}
	return sess, nil
}

// Create starts a session for subject carrying data. A ttl of zero or less
// uses Session.DefaultTTL.
func (s *Sessions) Create(ctx context.Context, subject string, data map[string]string, ttl time.Duration) (*Session, error) {
	c := s.core

	sub := normalizeName(subject)
	if sub == "" {
		return nil, ErrMissingUsername
	}
	if ttl <= 0 {
		ttl = c.cfg.Session.DefaultTTL
	}
	id, err := session.NewID()
	if err != nil {
		return nil, err
	}

	now := c.now()
	sess := &Session{
		ID:             id,
		Subject:        sub,
		Data:           cloneMap(data),
		CreatedAt:      now,
		LastActivityAt: now,
		TTL:            ttl,
	}
	if err := c.sessions.Save(ctx, sess); err != nil {
		return nil, storeError(err)
	}

	c.metrics.Inc(MetricSessionCreated)
	c.emit(ctx, auditEvent{eventType: AuditSessionCreated, username: sub, subject: sub, sessionID: id})
	return sess, nil
}

// Validate admits one request on a live session. It first checks the owner's
// license expiry, so an expired license rejects every session of the user
// without touching them. It then renews the session TTL and increments the
// request counters of both the session and the user in one commit. A ttl of
// zero or less reuses the TTL the session was created with.
//
// The user and session keys are watched for the whole check, so a concurrent
// Destroy or user removal aborts the commit with ErrLockConflict.
func (s *Sessions) Validate(ctx context.Context, subject, id string, ttl time.Duration) error {
	c := s.core
	start := time.Now()
	defer c.observeSince(MetricValidateLatency, start)

	sub := normalizeName(subject)
	if sub == "" {
		return ErrMissingUsername
	}
	if id == "" {
		return ErrSessionNotFound
	}
	fields := logrus.Fields{"subject": sub}

	userKey := c.keys.User(sub)
	now := c.now()
	expired := func(u *stores.UserRecord) bool {
		return u.LicenseExpiresAt > 0 && u.LicenseExpiresAt <= now.UnixMilli()
	}

	type state struct {
		user *stores.UserRecord
		live bool
		ttl  time.Duration
	}
	err := txn.ReadModifyWrite(ctx, c.redis, []string{userKey, c.sessions.Key(sub, id)},
		func(ctx context.Context, tx *redis.Tx) (state, error) {
			user, err := stores.LoadUser(ctx, tx, userKey)
			if err != nil || user == nil || expired(user) {
				return state{user: user}, err
			}
			live, stored, err := c.sessions.Lookup(ctx, tx, sub, id)
			if err != nil {
				return state{}, err
			}
			return state{user: user, live: live, ttl: stored}, nil
		},
		func(st state) (txn.Write, error) {
			switch {
			case st.user == nil:
				return nil, ErrUserNotFound
			case expired(st.user):
				return nil, ErrLicenseExpired
			case !st.live:
				return nil, ErrSessionNotFound
			}
			renew := ttl
			if renew <= 0 {
				renew = st.ttl
			}
			if renew <= 0 {
				renew = c.cfg.Session.DefaultTTL
			}
			ms := strconv.FormatInt(now.UnixMilli(), 10)
			return func(pipe redis.Pipeliner) error {
				pipe.HIncrBy(ctx, userKey, stores.UserFieldRequests, 1)
				pipe.HSet(ctx, userKey, stores.UserFieldLastActivityAt, ms)
				c.sessions.QueueTouch(ctx, pipe, sub, id, renew, now)
				return nil
			}, nil
		})

	switch {
	case errors.Is(err, ErrLicenseExpired):
		c.metrics.Inc(MetricLicenseExpired)
		c.metrics.Inc(MetricSessionRejected)
		c.log.WithFields(fields).WithField("code", ErrLicenseExpired.Code).Info("session rejected: license expired")
		c.emit(ctx, auditEvent{
			eventType: AuditLicenseExpired,
			username:  sub,
			subject:   sub,
			sessionID: id,
			code:      ErrLicenseExpired.Code,
		})
		return ErrLicenseExpired
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrSessionNotFound):
		c.metrics.Inc(MetricSessionRejected)
		return err
	case err != nil:
		return c.fail("sessions.validate", fields, err)
	}

	c.metrics.Inc(MetricSessionValidated)
	return nil
}

// Destroy deletes one session and reports whether it existed.
func (s *Sessions) Destroy(ctx context.Context, subject, id string) (bool, error) {
	c := s.core

	sub := normalizeName(subject)
	if sub == "" {
		return false, ErrMissingUsername
	}
	if id == "" {
		return false, nil
	}
	deleted, err := c.sessions.Delete(ctx, sub, id)
	if err != nil {
		return false, storeError(err)
	}
	if deleted {
		c.metrics.Inc(MetricSessionDestroyed)
		c.emit(ctx, auditEvent{eventType: AuditSessionDestroyed, username: sub, subject: sub, sessionID: id})
	}
	return deleted, nil
}

// Reset deletes every session of subject ("log out everywhere") and returns
// how many were removed. Sessions of other subjects are never touched, even
// when one subject is a prefix of another.
func (s *Sessions) Reset(ctx context.Context, subject string) (int, error) {
	c := s.core

	sub := normalizeName(subject)
	if sub == "" {
		return 0, ErrMissingUsername
	}
	n, err := c.sessions.DeleteAll(ctx, sub)
	if err != nil {
		return n, storeError(err)
	}

	c.metrics.Add(MetricSessionsReset, uint64(n))
	c.emit(ctx, auditEvent{
		eventType: AuditSessionsReset,
		username:  sub,
		subject:   sub,
		metadata:  map[string]string{"count": strconv.Itoa(n)},
	})
	return n, nil
}

// Count returns the number of live sessions of subject. It scans the
// keyspace and is not meant for request paths.
func (s *Sessions) Count(ctx context.Context, subject string) (int, error) {
	sub := normalizeName(subject)
	if sub == "" {
		return 0, ErrMissingUsername
	}
	n, err := s.core.sessions.Count(ctx, sub)
	if err != nil {
		return 0, storeError(err)
	}
	return n, nil
}
