package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authdb"
	"github.com/MrEthical07/authdb/permission"
)

func newGuardTestDB(t *testing.T) (*authdb.DB, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := authdb.DefaultConfig()
	cfg.Password.Iterations = 1000
	logger, _ := test.NewNullLogger()

	db, err := authdb.New().WithConfig(cfg).WithRedis(rdb).WithLogger(logger).Build()
	require.NoError(t, err)
	t.Cleanup(db.Close)

	ctx := context.Background()
	_, err = db.Roles.Create(ctx, authdb.RoleInput{
		Name: "reader",
		ACL:  []permission.Rule{{Resource: "posts", Methods: []string{"GET"}}},
	})
	require.NoError(t, err)
	_, err = db.Users.Create(ctx, authdb.UserInput{
		Username: "alice",
		Password: "secret-password",
		Roles:    []string{"reader"},
	})
	require.NoError(t, err)

	return db, mr
}

func serve(h http.Handler, method, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/posts", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuard(t *testing.T) {
	db, _ := newGuardTestDB(t)
	sess, err := db.Sessions.Create(context.Background(), "alice", nil, 0)
	require.NoError(t, err)

	var seen Principal
	h := Guard(db, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := serve(h, http.MethodGet, "Session alice:"+sess.ID)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, Principal{Subject: "alice", SessionID: sess.ID}, seen)

	require.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "Bearer x").Code)
	require.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "Session alice:").Code)
	require.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "Session alice:unknown").Code)
}

func TestGuardLicenseExpired(t *testing.T) {
	db, _ := newGuardTestDB(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	_, err := db.Users.Update(ctx, authdb.UserPatch{LicenseExpiresAt: &past}, "alice")
	require.NoError(t, err)
	sess, err := db.Sessions.Create(ctx, "alice", nil, 0)
	require.NoError(t, err)

	h := Guard(db, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	require.Equal(t, http.StatusForbidden, serve(h, http.MethodGet, "Session alice:"+sess.ID).Code)
}

func TestGuardStoreUnavailable(t *testing.T) {
	db, mr := newGuardTestDB(t)
	sess, err := db.Sessions.Create(context.Background(), "alice", nil, 0)
	require.NoError(t, err)
	mr.Close()

	h := Guard(db, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	require.Equal(t, http.StatusServiceUnavailable, serve(h, http.MethodGet, "Session alice:"+sess.ID).Code)
}

func TestRequirePermission(t *testing.T) {
	db, _ := newGuardTestDB(t)
	sess, err := db.Sessions.Create(context.Background(), "alice", nil, 0)
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Guard(db, 0)(RequirePermission(db, "posts")(ok))
	auth := "Session alice:" + sess.ID

	require.Equal(t, http.StatusOK, serve(h, http.MethodGet, auth).Code)
	require.Equal(t, http.StatusForbidden, serve(h, http.MethodDelete, auth).Code)

	unguarded := RequirePermission(db, "posts")(ok)
	require.Equal(t, http.StatusUnauthorized, serve(unguarded, http.MethodGet, auth).Code)
}

func TestSessionCredentials(t *testing.T) {
	tests := []struct {
		in      string
		subject string
		id      string
		ok      bool
	}{
		{"Session alice:abc", "alice", "abc", true},
		{"Session team:ops:abc", "team:ops", "abc", true},
		{"Session :abc", "", "", false},
		{"Session alice", "", "", false},
		{"session alice:abc", "", "", false},
	}
	for _, tc := range tests {
		subject, id, ok := sessionCredentials(tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
		require.Equal(t, tc.subject, subject, tc.in)
		require.Equal(t, tc.id, id, tc.in)
	}
}
