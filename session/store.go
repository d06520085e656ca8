package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authdb/internal"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps store failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

const defaultScanCount int64 = 500

// Store is a Redis-backed session store that handles persistence, sliding
// expiration and bulk invalidation per subject.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	scanCount int64
}

// NewStore creates a session [Store] backed by the given Redis client. prefix
// is prepended verbatim to every key; scanCount tunes the SCAN batch size used
// by [Store.DeleteAll] and [Store.Count].
func NewStore(client redis.UniversalClient, prefix string, scanCount int64) *Store {
	if scanCount <= 0 {
		scanCount = defaultScanCount
	}
	return &Store{
		redis:     client,
		prefix:    prefix,
		scanCount: scanCount,
	}
}

// Key returns the Redis key of one session.
func (s *Store) Key(subject, sessionID string) string {
	return s.prefix + subject + ":" + sessionID
}

// NewID returns a random, unguessable session id.
func NewID() (string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}
	return sid.String(), nil
}

// ValidID reports whether sessionID has the shape produced by [NewID].
func ValidID(sessionID string) bool {
	_, err := internal.ParseSessionID(sessionID)
	return err == nil
}

// Save writes sess and sets its TTL in one MULTI.
//
//	Performance: 1 round-trip (HSET + PEXPIRE).
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" || sess.Subject == "" {
		return errors.New("session requires id and subject")
	}
	if sess.TTL <= 0 {
		return errors.New("session ttl must be > 0")
	}

	key := s.Key(sess.Subject, sess.ID)
	fields := encode(sess)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.PExpire(ctx, key, sess.TTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the session, or nil when it does not exist or has expired.
func (s *Store) Get(ctx context.Context, subject, sessionID string) (*Session, error) {
	if !ValidID(sessionID) {
		return nil, nil
	}
	fields, err := s.redis.HGetAll(ctx, s.Key(subject, sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	sess := decode(fields)
	sess.ID = sessionID
	sess.Subject = subject
	return sess, nil
}

// Exists reports whether the session is live.
func (s *Store) Exists(ctx context.Context, subject, sessionID string) (bool, error) {
	live, _, err := s.Lookup(ctx, s.redis, subject, sessionID)
	return live, err
}

// StoredTTL returns the TTL the session was created with, or 0 if unknown.
func (s *Store) StoredTTL(ctx context.Context, subject, sessionID string) (time.Duration, error) {
	_, ttl, err := s.Lookup(ctx, s.redis, subject, sessionID)
	return ttl, err
}

// Reader is the read side shared by *redis.Client and *redis.Tx.
type Reader interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

// Lookup reads liveness and the stored TTL of a session through r, which may
// be a *redis.Tx that already WATCHes the session key. ttl is 0 when the
// session is gone or was saved without one.
func (s *Store) Lookup(ctx context.Context, r Reader, subject, sessionID string) (live bool, ttl time.Duration, err error) {
	if !ValidID(sessionID) {
		return false, 0, nil
	}
	key := s.Key(subject, sessionID)

	n, err := r.Exists(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n == 0 {
		return false, 0, nil
	}

	v, err := r.HGet(ctx, key, fieldTTL).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return true, 0, nil
		}
		return false, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms <= 0 {
		return true, 0, nil
	}
	return true, time.Duration(ms) * time.Millisecond, nil
}

// QueueTouch queues the writes of one recorded request on pipe: the request
// counter, lastActivityAt and, last, the renewed expiry. Callers that need
// the session to still exist at commit must WATCH its key.
func (s *Store) QueueTouch(ctx context.Context, pipe redis.Pipeliner, subject, sessionID string, ttl time.Duration, now time.Time) {
	key := s.Key(subject, sessionID)
	pipe.HIncrBy(ctx, key, fieldRequests, 1)
	pipe.HSet(ctx, key, fieldLastActivityAt, strconv.FormatInt(now.UnixMilli(), 10))
	pipe.PExpire(ctx, key, ttl)
}

// Delete removes one session. It reports whether a key was removed and is
// idempotent.
func (s *Store) Delete(ctx context.Context, subject, sessionID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.Key(subject, sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// DeleteAll removes every session of subject and returns how many were
// deleted. Sessions of other subjects sharing the same key prefix are left
// alone.
//
// Sessions created while the scan is in progress may survive; callers that
// need a hard cut-off must gate on something else (e.g. a license expiry).
func (s *Store) DeleteAll(ctx context.Context, subject string) (int, error) {
	var deleted int

	err := s.scanSubject(ctx, subject, func(keys []string) error {
		n, err := s.redis.Del(ctx, keys...).Result()
		if err != nil {
			return err
		}
		deleted += int(n)
		return nil
	})
	if err != nil {
		return deleted, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return deleted, nil
}

// Count returns the number of live sessions of subject. This is an O(n) scan
// and must not be used in request hot paths.
func (s *Store) Count(ctx context.Context, subject string) (int, error) {
	var total int
	err := s.scanSubject(ctx, subject, func(keys []string) error {
		total += len(keys)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return total, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) scanSubject(ctx context.Context, subject string, fn func(keys []string) error) error {
	base := s.prefix + subject + ":"
	pattern := internal.EscapeGlob(base) + "*"

	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, s.scanCount).Result()
		if err != nil {
			return err
		}

		owned := keys[:0]
		for _, k := range keys {
			// ids never contain ':', so anything deeper belongs to another subject
			if !strings.Contains(k[len(base):], ":") {
				owned = append(owned, k)
			}
		}
		if len(owned) > 0 {
			if err := fn(owned); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func encode(sess *Session) map[string]any {
	fields := make(map[string]any, len(sess.Data)+4)
	for k, v := range sess.Data {
		fields[dataFieldPrefix+k] = v
	}
	fields[fieldCreatedAt] = strconv.FormatInt(sess.CreatedAt.UnixMilli(), 10)
	fields[fieldLastActivityAt] = strconv.FormatInt(sess.LastActivityAt.UnixMilli(), 10)
	fields[fieldRequests] = strconv.FormatInt(sess.Requests, 10)
	fields[fieldTTL] = strconv.FormatInt(sess.TTL.Milliseconds(), 10)
	return fields
}

func decode(fields map[string]string) *Session {
	sess := &Session{Data: make(map[string]string)}
	for k, v := range fields {
		switch k {
		case fieldCreatedAt:
			sess.CreatedAt = parseMillis(v)
		case fieldLastActivityAt:
			sess.LastActivityAt = parseMillis(v)
		case fieldRequests:
			sess.Requests, _ = strconv.ParseInt(v, 10, 64)
		case fieldTTL:
			ms, _ := strconv.ParseInt(v, 10, 64)
			sess.TTL = time.Duration(ms) * time.Millisecond
		default:
			if name, ok := strings.CutPrefix(k, dataFieldPrefix); ok {
				sess.Data[name] = v
			}
		}
	}
	return sess
}

func parseMillis(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
