package stores

import (
	"strings"

	"github.com/MrEthical07/authdb/internal"
)

const (
	DefaultPrefix = "auth-db"
	aclSuffix     = ":acl"
)

// Keys builds every Redis key authdb touches.
type Keys struct {
	users    string
	emails   string
	roles    string
	sessions string
}

// NewKeys derives the key namespaces from prefix ("auth-db" when empty).
func NewKeys(prefix string) Keys {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	prefix = strings.TrimSuffix(prefix, ":")
	return Keys{
		users:    prefix + ":users:",
		emails:   prefix + ":emails:",
		roles:    prefix + ":roles:",
		sessions: prefix + ":sessions:",
	}
}

func (k Keys) User(username string) string { return k.users + username }

func (k Keys) Email(address string) string { return k.emails + address }

func (k Keys) Role(name string) string { return k.roles + name }

// ACL is the set key holding a role's ACL tokens.
func (k Keys) ACL(name string) string { return k.roles + name + aclSuffix }

// Sessions is the prefix of every session key.
func (k Keys) Sessions() string { return k.sessions }

// RolePattern is the SCAN match pattern for role keys starting with prefix.
func (k Keys) RolePattern(prefix string) string {
	return internal.EscapeGlob(k.roles+prefix) + "*"
}

// RoleName extracts the role name from a scanned key. ACL set keys are
// rejected.
func (k Keys) RoleName(key string) (string, bool) {
	name, ok := strings.CutPrefix(key, k.roles)
	if !ok || name == "" || strings.HasSuffix(name, aclSuffix) {
		return "", false
	}
	return name, true
}
