package authdb

import (
	"time"

	"github.com/MrEthical07/authdb/permission"
	"github.com/MrEthical07/authdb/session"
)

// User is the public view of a user record. It never carries the password
// hash or salt.
type User struct {
	// Username is the canonical form as supplied at creation, case preserved.
	Username string
	Emails   []string
	Roles    []string
	Profile  map[string]string

	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastActivityAt   time.Time
	Requests         int64
	LicenseExpiresAt time.Time
}

// UserInput is the payload of [Users.Create].
type UserInput struct {
	Username string
	Password string
	Emails   []string
	Roles    []string
	Profile  map[string]string
	// LicenseExpiresAt, when set, gates [Sessions.Validate].
	LicenseExpiresAt time.Time
}

// UserPatch lists the fields [Users.Update] may change. Nil fields are left
// untouched. Emails must stay nil; email changes go through [Emails].
type UserPatch struct {
	Username *string
	Password *string
	Emails   []string
	Roles    []string
	// Profile entries are merged; an empty value deletes the attribute.
	Profile map[string]string
	// LicenseExpiresAt set to the zero time clears the license gate.
	LicenseExpiresAt *time.Time
}

// Credentials is the input of [Users.CheckPassword].
type Credentials struct {
	Username string
	Password string
}

// Email is one email index entry.
type Email struct {
	Address string
	// Username is the normalized key of the owning user.
	Username   string
	Attributes map[string]string
	CreatedAt  time.Time
	VerifiedAt time.Time
}

// Verified reports whether the address has been verified.
func (e *Email) Verified() bool {
	return e != nil && !e.VerifiedAt.IsZero()
}

// EmailPatch is the payload of [Emails.Update]. Username must match the
// entry's owner. Attributes are merged; an empty value deletes one.
type EmailPatch struct {
	Username   string
	Attributes map[string]string
}

// Role is a role's attributes plus its decoded ACL.
type Role struct {
	Name        string
	Description string
	Attributes  map[string]string
	ACL         []permission.Rule
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleInput is the payload of [Roles.Create].
type RoleInput struct {
	Name        string
	Description string
	Attributes  map[string]string
	ACL         []permission.Rule
}

// RolePatch is the payload of [Roles.Update]. A non-empty ACL replaces the
// stored one wholesale; a nil or empty ACL keeps it.
type RolePatch struct {
	Name        *string
	Description *string
	Attributes  map[string]string
	ACL         []permission.Rule
}

// Session is one live session.
type Session = session.Session

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
