package authdb

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func drain(sink *ChannelSink) []AuditEvent {
	var out []AuditEvent
	for len(sink.Events()) > 0 {
		out = append(out, <-sink.Events())
	}
	return out
}

func TestDBPing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.db.Ping(context.Background())
	require.NoError(t, err)

	env.mr.Close()
	_, err = env.db.Ping(context.Background())
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestDBAuditTrail(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	sink := NewChannelSink(64)
	env := newTestEnvWithConfig(t, cfg, sink)
	ctx := context.Background()

	mustCreateUser(t, env.db, "alice", "alice@example.com")
	_, err := env.db.Email.Add(ctx, "work@example.com", "alice")
	require.NoError(t, err)
	_, err = env.db.Email.Verify(ctx, "work@example.com", "alice")
	require.NoError(t, err)
	mustCreateRole(t, env.db, "admin")
	sess, err := env.db.Sessions.Create(ctx, "alice", nil, 0)
	require.NoError(t, err)
	_, err = env.db.Sessions.Destroy(ctx, "alice", sess.ID)
	require.NoError(t, err)

	env.db.Close()
	events := drain(sink)

	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType)
		require.NotEmpty(t, e.ID)
		require.True(t, e.Success)
	}
	require.Equal(t, []string{
		AuditUserCreated,
		AuditEmailAdded,
		AuditEmailVerified,
		AuditRoleCreated,
		AuditSessionCreated,
		AuditSessionDestroyed,
	}, types)
	require.Equal(t, "work@example.com", events[1].Metadata["email"])
	require.Equal(t, "admin", events[3].Metadata["role"])
	require.Equal(t, sess.ID, events[5].SessionID)
	require.Zero(t, env.db.AuditDropped())
}

func TestDBAuditDisabledByDefault(t *testing.T) {
	sink := NewChannelSink(8)
	env := newTestEnvWithConfig(t, testConfig(), sink)

	mustCreateUser(t, env.db, "alice")
	env.db.Close()
	require.Empty(t, drain(sink))
}

func TestDBLockConflictLogged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mustCreateUser(t, env.db, "alice")

	other := env.competitor(t)
	env.interleave("hgetall", "auth-db:users:alice", func() {
		_, err := other.Users.Update(ctx, UserPatch{Roles: []string{"x"}}, "alice")
		require.NoError(t, err)
	})
	_, err := env.db.Users.Update(ctx, UserPatch{Roles: []string{"y"}}, "alice")
	require.ErrorIs(t, err, ErrLockConflict)

	var found *logrus.Entry
	for _, e := range env.log.AllEntries() {
		if e.Data["op"] == "users.update" {
			found = e
		}
	}
	require.NotNil(t, found)
	require.Equal(t, logrus.DebugLevel, found.Level)
	require.Equal(t, "alice", found.Data["username"])
	require.Equal(t, "authdb", found.Data["component"])
}

func TestDBMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	cfg.Metrics.EnableLatencyHistograms = false
	env := newTestEnvWithConfig(t, cfg, nil)

	mustCreateUser(t, env.db, "alice")
	snap := env.db.MetricsSnapshot()
	require.Zero(t, snap.Counters[MetricUserCreated])
}
