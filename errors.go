package authdb

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/authdb/internal/txn"
)

// Kind classifies an [Error].
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindValidation is a missing or malformed input, reported before any store access.
	KindValidation
	// KindNotFound is a record expected to exist that does not.
	KindNotFound
	// KindConflict is a uniqueness violation confirmed by a read.
	KindConflict
	// KindLock is a rejected optimistic commit. The store is unchanged.
	KindLock
	// KindRule is a domain rule refusing the operation.
	KindRule
	// KindUnavailable is a store failure.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindLock:
		return "lock"
	case KindRule:
		return "rule"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is the comparable error value returned by authdb. Code is stable and
// machine-readable; Message is for humans.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrMissingUsername = newError(KindValidation, "missing_username", "missing username")
	ErrMissingPassword = newError(KindValidation, "missing_password", "missing password")
	ErrPasswordLength  = newError(KindValidation, "password_length", "password length out of bounds")
	ErrInvalidEmail    = newError(KindValidation, "invalid_email", "invalid email address")
	ErrMissingEmail    = newError(KindValidation, "missing_email", "missing email")
	ErrMissingRoleName = newError(KindValidation, "missing_role_name", "role name is missing")
	ErrInvalidRoleName = newError(KindValidation, "invalid_role_name", "invalid role name")
	ErrInvalidACL      = newError(KindValidation, "invalid_acl", "invalid acl")
	// ErrUsernameMismatch is returned when an update tries to change a username
	// to one with a different key.
	ErrUsernameMismatch = newError(KindValidation, "username_mismatch", "username does not match record")

	ErrUserNotFound    = newError(KindNotFound, "user_not_found", "user not found")
	ErrEmailNotFound   = newError(KindNotFound, "email_not_found", "email not found")
	ErrRoleNotFound    = newError(KindNotFound, "role_not_found", "role not found")
	ErrSessionNotFound = newError(KindNotFound, "session_not_found", "session not found")

	ErrUsernameTaken = newError(KindConflict, "username_taken", "user name already taken")
	ErrEmailTaken    = newError(KindConflict, "email_taken", "email already taken")
	ErrRoleExists    = newError(KindConflict, "role_exists", "role already exists")

	// ErrLockConflict means a watched key changed before commit and nothing was
	// written. On a create, re-read before deciding whether to retry.
	ErrLockConflict = newError(KindLock, "lock_conflict", "lock error")

	ErrUserActive           = newError(KindRule, "user_active", "user has recorded requests")
	ErrEmailVerified        = newError(KindRule, "email_verified", "verified email cannot be removed")
	ErrEmailUpdateForbidden = newError(KindRule, "email_update_forbidden", "emails must be changed through the email operations")
	ErrEmailOwnerMismatch   = newError(KindRule, "email_owner_mismatch", "user name is missing or does not match")
	ErrLicenseExpired       = newError(KindRule, "license_expired", "license expired")

	ErrStoreUnavailable = newError(KindUnavailable, "store_unavailable", "store unavailable")
)

// KindOf returns the kind of the first [Error] in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first [Error] in err's chain, or "" if none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// storeError maps lower-layer failures onto authdb errors. Errors already
// carrying a Kind pass through untouched.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case KindOf(err) != KindUnknown:
		return err
	case errors.Is(err, txn.ErrConflict):
		return ErrLockConflict
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
