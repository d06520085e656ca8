package authdb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authdb/permission"
)

func mustCreateRole(t *testing.T, db *DB, name string, acl ...permission.Rule) *Role {
	t.Helper()
	r, err := db.Roles.Create(context.Background(), RoleInput{Name: name, ACL: acl})
	require.NoError(t, err)
	return r
}

func TestRolesCreateAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.db.Roles.Create(ctx, RoleInput{
		Name:        "Editor",
		Description: "edits things",
		Attributes:  map[string]string{"tier": "2"},
		ACL: []permission.Rule{
			{Resource: "Posts", Methods: []string{"get", "PUT"}},
			permission.All("drafts"),
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Editor", created.Name)

	got, err := env.db.Roles.Get(ctx, "editor")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "edits things", got.Description)
	require.Equal(t, map[string]string{"tier": "2"}, got.Attributes)
	require.ElementsMatch(t, []permission.Rule{
		{Resource: "drafts", Methods: []string{"*"}},
		{Resource: "posts", Methods: []string{"GET", "PUT"}},
	}, got.ACL)

	members, err := env.mr.SMembers("auth-db:roles:editor:acl")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"posts:GET", "posts:PUT", "drafts:*"}, members)

	_, err = env.db.Roles.Create(ctx, RoleInput{Name: "EDITOR"})
	require.ErrorIs(t, err, ErrRoleExists)
	require.Equal(t, KindConflict, KindOf(err))

	missing, err := env.db.Roles.Get(ctx, "ghost")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestRolesCreateWithoutACL(t *testing.T) {
	env := newTestEnv(t)

	mustCreateRole(t, env.db, "empty")
	require.True(t, env.mr.Exists("auth-db:roles:empty"))
	require.False(t, env.mr.Exists("auth-db:roles:empty:acl"))

	got, err := env.db.Roles.Get(context.Background(), "empty")
	require.NoError(t, err)
	require.Empty(t, got.ACL)
}

func TestRolesCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RoleInput
		want error
	}{
		{"missing name", RoleInput{Name: " "}, ErrMissingRoleName},
		{"comma", RoleInput{Name: "a,b"}, ErrInvalidRoleName},
		{"colon", RoleInput{Name: "a:acl"}, ErrInvalidRoleName},
		{"empty resource", RoleInput{Name: "r", ACL: []permission.Rule{{Resource: ""}}}, ErrInvalidACL},
		{"separator in resource", RoleInput{Name: "r", ACL: []permission.Rule{{Resource: "a:b"}}}, ErrInvalidACL},
		{"empty method", RoleInput{Name: "r", ACL: []permission.Rule{{Resource: "a", Methods: []string{" "}}}}, ErrInvalidACL},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.db.Roles.Create(ctx, tc.in)
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, KindValidation, KindOf(err))
		})
	}
	require.Empty(t, env.mr.Keys())
}

func TestRolesHasPermission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mustCreateRole(t, env.db, "reader", permission.Rule{Resource: "posts", Methods: []string{"GET"}})
	mustCreateRole(t, env.db, "admin", permission.All("posts"))

	tests := []struct {
		name     string
		roles    []string
		resource string
		method   string
		want     bool
	}{
		{"exact method", []string{"reader"}, "posts", "GET", true},
		{"method case-insensitive", []string{"reader"}, "POSTS", "get", true},
		{"method not granted", []string{"reader"}, "posts", "DELETE", false},
		{"wildcard grants any method", []string{"admin"}, "posts", "DELETE", true},
		{"empty method needs wildcard", []string{"reader"}, "posts", "", false},
		{"empty method with wildcard", []string{"admin"}, "posts", "", true},
		{"other resource", []string{"admin"}, "users", "GET", false},
		{"later role grants", []string{"reader", "Admin"}, "posts", "PUT", true},
		{"unknown role", []string{"ghost"}, "posts", "GET", false},
		{"no roles", nil, "posts", "GET", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := env.db.Roles.HasPermission(ctx, tc.roles, tc.resource, tc.method)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := env.db.Roles.HasPermission(ctx, []string{"admin"}, " ", "GET")
	require.ErrorIs(t, err, ErrInvalidACL)

	snap := env.db.MetricsSnapshot()
	require.EqualValues(t, 5, snap.Counters[MetricPermissionGranted])
	require.EqualValues(t, 5, snap.Counters[MetricPermissionDenied])
}

func TestRolesHasPermissionStopsAtFirstGrant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mustCreateRole(t, env.db, "admin", permission.All("posts"))

	looked := 0
	env.rdb.AddHook(&interleaveHook{cmd: "sismember", key: "auth-db:roles:second:acl", fn: func() { looked++ }})

	ok, err := env.db.Roles.HasPermission(ctx, []string{"admin", "second"}, "posts", "GET")
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, looked, "roles after the first grant must not be consulted")
}

func TestRolesUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.db.Roles.Create(ctx, RoleInput{
		Name:        "editor",
		Description: "v1",
		Attributes:  map[string]string{"a": "1", "b": "2"},
		ACL:         []permission.Rule{permission.All("posts")},
	})
	require.NoError(t, err)

	updated, err := env.db.Roles.Update(ctx, RolePatch{
		Description: ptr("v2"),
		Attributes:  map[string]string{"b": "", "c": "3"},
	}, "Editor")
	require.NoError(t, err)
	require.Equal(t, "v2", updated.Description)
	require.Equal(t, map[string]string{"a": "1", "c": "3"}, updated.Attributes)
	require.Equal(t, []permission.Rule{{Resource: "posts", Methods: []string{"*"}}}, updated.ACL, "empty acl keeps the set")

	updated, err = env.db.Roles.Update(ctx, RolePatch{
		ACL: []permission.Rule{{Resource: "comments", Methods: []string{"GET"}}},
	}, "editor")
	require.NoError(t, err)
	require.Equal(t, []permission.Rule{{Resource: "comments", Methods: []string{"GET"}}}, updated.ACL)

	members, err := env.mr.SMembers("auth-db:roles:editor:acl")
	require.NoError(t, err)
	require.Equal(t, []string{"comments:GET"}, members, "acl replaced, never merged")

	ok, err := env.db.Roles.HasPermission(ctx, []string{"editor"}, "posts", "GET")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRolesUpdateRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mustCreateRole(t, env.db, "editor")

	_, err := env.db.Roles.Update(ctx, RolePatch{Description: ptr("x")}, "ghost")
	require.ErrorIs(t, err, ErrRoleNotFound)
	require.False(t, env.mr.Exists("auth-db:roles:ghost"))

	_, err = env.db.Roles.Update(ctx, RolePatch{Name: ptr("writer")}, "editor")
	require.ErrorIs(t, err, ErrInvalidRoleName)

	renamed, err := env.db.Roles.Update(ctx, RolePatch{Name: ptr("EDITOR")}, "editor")
	require.NoError(t, err)
	require.Equal(t, "EDITOR", renamed.Name)

	_, err = env.db.Roles.Update(ctx, RolePatch{ACL: []permission.Rule{{Resource: "a:b"}}}, "editor")
	require.ErrorIs(t, err, ErrInvalidACL)
}

func TestRolesUpdateLockConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mustCreateRole(t, env.db, "editor", permission.All("posts"))

	other := env.competitor(t)
	env.interleave("smembers", "auth-db:roles:editor:acl", func() {
		_, err := other.Roles.Update(ctx, RolePatch{ACL: []permission.Rule{permission.All("comments")}}, "editor")
		require.NoError(t, err)
	})

	_, err := env.db.Roles.Update(ctx, RolePatch{ACL: []permission.Rule{permission.All("users")}}, "editor")
	require.ErrorIs(t, err, ErrLockConflict)

	got, err := env.db.Roles.Get(ctx, "editor")
	require.NoError(t, err)
	require.Equal(t, []permission.Rule{{Resource: "comments", Methods: []string{"*"}}}, got.ACL)
}

func TestRolesList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, name := range []string{"admin", "admin-readonly", "editor", "viewer"} {
		mustCreateRole(t, env.db, name, permission.All("posts"))
	}

	all, err := env.db.Roles.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"admin", "admin-readonly", "editor", "viewer"}, all)

	admins, err := env.db.Roles.List(ctx, "Admin")
	require.NoError(t, err)
	require.Equal(t, []string{"admin", "admin-readonly"}, admins)

	none, err := env.db.Roles.List(ctx, "zzz")
	require.NoError(t, err)
	require.Empty(t, none)
}

// scanCounts records the COUNT argument of every SCAN.
type scanCounts struct {
	mu     sync.Mutex
	counts []string
}

func (h *scanCounts) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *scanCounts) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "scan") {
			args := cmd.Args()
			h.mu.Lock()
			h.counts = append(h.counts, fmt.Sprint(args[len(args)-1]))
			h.mu.Unlock()
		}
		return next(ctx, cmd)
	}
}

func (h *scanCounts) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRolesListUsesKeyScanCount(t *testing.T) {
	cfg := testConfig()
	cfg.Keys.ScanCount = 2
	cfg.Session.ScanCount = 0
	env := newTestEnvWithConfig(t, cfg, nil)
	ctx := context.Background()

	for _, name := range []string{"a1", "a2", "a3", "a4", "a5"} {
		mustCreateRole(t, env.db, name)
	}
	hook := &scanCounts{}
	env.rdb.AddHook(hook)

	names, err := env.db.Roles.List(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, []string{"a1", "a2", "a3", "a4", "a5"}, names)
	require.NotEmpty(t, hook.counts)
	for _, c := range hook.counts {
		require.Equal(t, "2", c)
	}
}
