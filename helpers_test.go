package authdb

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	mr  *miniredis.Miniredis
	rdb *redis.Client
	db  *DB
	log *test.Hook
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Password.Iterations = 1000
	cfg.Password.KeyLength = 32
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, testConfig(), nil)
}

func newTestEnvWithConfig(t *testing.T, cfg Config, sink AuditSink) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{mr: mr, rdb: rdb}
	env.db = env.open(t, rdb, cfg, sink)
	return env
}

// open builds another DB on the same miniredis, e.g. to act as a competing
// process.
func (e *testEnv) open(t *testing.T, rdb redis.UniversalClient, cfg Config, sink AuditSink) *DB {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	if e.log == nil {
		e.log = hook
	}

	db, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(logger).
		WithAuditSink(sink).
		Build()
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

// competitor returns a DB on a separate connection, unaffected by hooks
// installed on the primary client.
func (e *testEnv) competitor(t *testing.T) *DB {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: e.mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return e.open(t, rdb, testConfig(), nil)
}

// interleave installs a hook that runs fn once, right after the first command
// named cmd touching key. Commands issued inside a WATCH block go through the
// hook too, so fn lands between the read and the EXEC.
func (e *testEnv) interleave(cmd, key string, fn func()) {
	e.rdb.AddHook(&interleaveHook{cmd: cmd, key: key, fn: fn})
}

type interleaveHook struct {
	cmd  string
	key  string
	fn   func()
	once sync.Once
}

func (h *interleaveHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *interleaveHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		args := cmd.Args()
		if len(args) > 1 && strings.EqualFold(cmd.Name(), h.cmd) && args[1] == h.key {
			h.once.Do(h.fn)
		}
		return err
	}
}

func (h *interleaveHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func ptr[T any](v T) *T { return &v }

func mustCreateUser(t *testing.T, db *DB, username string, emails ...string) *User {
	t.Helper()
	u, err := db.Users.Create(context.Background(), UserInput{
		Username: username,
		Password: "secret-password",
		Emails:   emails,
	})
	require.NoError(t, err)
	return u
}
