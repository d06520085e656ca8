package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/authdb"
)

type principalContextKey struct{}

// Principal is the validated caller of a guarded request.
type Principal struct {
	Subject   string
	SessionID string
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// Guard validates the request's session with [authdb.Sessions.Validate],
// renewing it for ttl (zero keeps the stored TTL).
func Guard(db *authdb.DB, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if db == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			subject, id, ok := sessionCredentials(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if err := db.Sessions.Validate(r.Context(), subject, id, ttl); err != nil {
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, Principal{Subject: subject, SessionID: id})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission must run inside [Guard]. It grants the request when any
// of the principal's roles allows r.Method on resource.
func RequirePermission(db *authdb.DB, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok || db == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := db.Users.Get(r.Context(), p.Subject)
			if err != nil {
				writeError(w, err)
				return
			}

			allowed, err := db.Roles.HasPermission(r.Context(), user.Roles, resource, r.Method)
			if err != nil {
				writeError(w, err)
				return
			}
			if !allowed {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch authdb.KindOf(err) {
	case authdb.KindRule:
		http.Error(w, "forbidden", http.StatusForbidden)
	case authdb.KindUnavailable:
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func sessionCredentials(value string) (string, string, bool) {
	const scheme = "Session "
	if !strings.HasPrefix(value, scheme) {
		return "", "", false
	}

	cred := value[len(scheme):]
	i := strings.LastIndexByte(cred, ':')
	if i <= 0 || i == len(cred)-1 {
		return "", "", false
	}

	return cred[:i], cred[i+1:], true
}
