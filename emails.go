package authdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/authdb/internal/stores"
	"github.com/MrEthical07/authdb/internal/txn"
)

// Emails manages the email index. Every address in a user's email list has
// exactly one index entry naming that user, and the two are only ever changed
// together.
type Emails struct {
	core *core
}

// Get returns the index entry for email, or [ErrEmailNotFound].
func (e *Emails) Get(ctx context.Context, email string) (*Email, error) {
	address := normalizeEmail(email)
	if address == "" {
		return nil, ErrMissingEmail
	}
	entry, err := stores.LoadEmail(ctx, e.core.redis, e.core.keys.Email(address), address)
	if err != nil {
		return nil, storeError(err)
	}
	if entry == nil {
		return nil, ErrEmailNotFound
	}
	return toEmail(entry), nil
}

// Add claims email for username: it appends the address to the user's list
// and creates the index entry in one commit. Adding an address the user
// already owns is a no-op.
func (e *Emails) Add(ctx context.Context, email, username string) (*Email, error) {
	c := e.core

	address, err := c.checkEmail(email)
	if err != nil {
		return nil, err
	}
	owner := normalizeName(username)
	if owner == "" {
		return nil, ErrMissingUsername
	}

	userKey := c.keys.User(owner)
	emailKey := c.keys.Email(address)

	type state struct {
		user  *stores.UserRecord
		entry *stores.EmailRecord
	}
	var result *stores.EmailRecord
	added := false

	err = txn.ReadModifyWrite(ctx, c.redis, []string{userKey, emailKey},
		func(ctx context.Context, tx *redis.Tx) (state, error) {
			user, err := stores.LoadUser(ctx, tx, userKey)
			if err != nil {
				return state{}, err
			}
			entry, err := stores.LoadEmail(ctx, tx, emailKey, address)
			if err != nil {
				return state{}, err
			}
			return state{user: user, entry: entry}, nil
		},
		func(st state) (txn.Write, error) {
			if st.user == nil {
				return nil, ErrUserNotFound
			}
			if st.entry != nil && st.entry.Username != owner {
				return nil, fmt.Errorf("%w: %s", ErrEmailTaken, address)
			}
			if st.entry != nil && st.user.HasEmail(address) {
				result = st.entry
				return nil, nil
			}

			now := c.stamp()
			result = st.entry
			if result == nil {
				result = &stores.EmailRecord{Address: address, Username: owner, CreatedAt: now}
			}
			// a listed address with no index entry only needs the entry back
			listed := st.user.HasEmail(address)
			added = true

			return func(pipe redis.Pipeliner) error {
				if !listed {
					emails := append(st.user.Emails, address)
					pipe.HSet(ctx, userKey, stores.UserFieldEmail, stores.JoinList(emails))
					if now > 0 {
						pipe.HSet(ctx, userKey, stores.UserFieldUpdatedAt, fmt.Sprint(now))
					}
				}
				c.claimEmails(ctx, pipe, owner, []string{address}, now)
				return nil
			}, nil
		},
	)
	fields := logrus.Fields{"username": owner}
	if err != nil {
		if CodeOf(err) == ErrEmailTaken.Code {
			c.metrics.Inc(MetricEmailTaken)
		}
		return nil, c.fail("email.add", fields, err)
	}

	if added {
		c.metrics.Inc(MetricEmailAdded)
		c.emit(ctx, auditEvent{eventType: AuditEmailAdded, username: owner, metadata: map[string]string{"email": address}})
	}
	return toEmail(result), nil
}

// Update merges attributes onto an entry owned by patch.Username. The
// verification stamp is not an attribute and cannot be changed here; see
// [Emails.Verify].
func (e *Emails) Update(ctx context.Context, patch EmailPatch, email string) (*Email, error) {
	c := e.core

	address := normalizeEmail(email)
	if address == "" {
		return nil, ErrMissingEmail
	}
	owner := normalizeName(patch.Username)
	if owner == "" {
		return nil, ErrEmailOwnerMismatch
	}
	emailKey := c.keys.Email(address)

	var updated *stores.EmailRecord
	changed := false
	err := txn.ReadModifyWrite(ctx, c.redis, []string{emailKey},
		func(ctx context.Context, tx *redis.Tx) (*stores.EmailRecord, error) {
			return stores.LoadEmail(ctx, tx, emailKey, address)
		},
		func(entry *stores.EmailRecord) (txn.Write, error) {
			if entry == nil {
				return nil, ErrEmailNotFound
			}
			if entry.Username != owner {
				return nil, ErrEmailOwnerMismatch
			}

			set := make(map[string]any)
			var del []string
			for k, v := range patch.Attributes {
				if k = strings.TrimSpace(k); k == "" {
					continue
				}
				if v == "" {
					del = append(del, stores.AttrField(k))
				} else {
					set[stores.AttrField(k)] = v
				}
			}
			entry.Attributes = mergeMap(entry.Attributes, patch.Attributes)
			updated = entry
			if len(set) == 0 && len(del) == 0 {
				return nil, nil
			}
			changed = true

			return func(pipe redis.Pipeliner) error {
				if len(del) > 0 {
					pipe.HDel(ctx, emailKey, del...)
				}
				if len(set) > 0 {
					pipe.HSet(ctx, emailKey, set)
				}
				return nil
			}, nil
		},
	)
	if err != nil {
		return nil, c.fail("email.update", logrus.Fields{"username": owner}, err)
	}

	if changed {
		c.emit(ctx, auditEvent{eventType: AuditEmailUpdated, username: owner, metadata: map[string]string{"email": address}})
	}
	return toEmail(updated), nil
}

// Verify stamps the entry owned by username as verified. Once verified an
// address cannot be removed. Verifying twice keeps the first stamp.
func (e *Emails) Verify(ctx context.Context, email, username string) (*Email, error) {
	c := e.core

	address := normalizeEmail(email)
	if address == "" {
		return nil, ErrMissingEmail
	}
	owner := normalizeName(username)
	if owner == "" {
		return nil, ErrEmailOwnerMismatch
	}
	emailKey := c.keys.Email(address)

	var verified *stores.EmailRecord
	stamped := false
	err := txn.ReadModifyWrite(ctx, c.redis, []string{emailKey},
		func(ctx context.Context, tx *redis.Tx) (*stores.EmailRecord, error) {
			return stores.LoadEmail(ctx, tx, emailKey, address)
		},
		func(entry *stores.EmailRecord) (txn.Write, error) {
			if entry == nil {
				return nil, ErrEmailNotFound
			}
			if entry.Username != owner {
				return nil, ErrEmailOwnerMismatch
			}
			verified = entry
			if entry.Verified() {
				return nil, nil
			}

			entry.VerifiedAt = c.now().UnixMilli()
			stamped = true
			return func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, emailKey, stores.EmailFieldVerifiedAt, fmt.Sprint(entry.VerifiedAt))
				return nil
			}, nil
		},
	)
	if err != nil {
		return nil, c.fail("email.verify", logrus.Fields{"username": owner}, err)
	}

	if stamped {
		c.metrics.Inc(MetricEmailVerified)
		c.emit(ctx, auditEvent{eventType: AuditEmailVerified, username: owner, metadata: map[string]string{"email": address}})
	}
	return toEmail(verified), nil
}

// Remove drops an unverified address from its owner's list and deletes the
// index entry in one commit. Verified addresses fail with [ErrEmailVerified].
func (e *Emails) Remove(ctx context.Context, email, username string) error {
	c := e.core

	address := normalizeEmail(email)
	if address == "" {
		return ErrMissingEmail
	}
	owner := normalizeName(username)
	if owner == "" {
		return ErrEmailOwnerMismatch
	}
	userKey := c.keys.User(owner)
	emailKey := c.keys.Email(address)

	type state struct {
		user  *stores.UserRecord
		entry *stores.EmailRecord
	}

	err := txn.ReadModifyWrite(ctx, c.redis, []string{emailKey, userKey},
		func(ctx context.Context, tx *redis.Tx) (state, error) {
			entry, err := stores.LoadEmail(ctx, tx, emailKey, address)
			if err != nil {
				return state{}, err
			}
			user, err := stores.LoadUser(ctx, tx, userKey)
			if err != nil {
				return state{}, err
			}
			return state{user: user, entry: entry}, nil
		},
		func(st state) (txn.Write, error) {
			if st.entry == nil {
				return nil, ErrEmailNotFound
			}
			if st.entry.Username != owner {
				return nil, ErrEmailOwnerMismatch
			}
			if st.entry.Verified() {
				return nil, ErrEmailVerified
			}

			var remaining []string
			if st.user != nil {
				for _, a := range st.user.Emails {
					if a != address {
						remaining = append(remaining, a)
					}
				}
			}
			now := c.stamp()

			return func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, emailKey)
				if st.user == nil {
					return nil
				}
				if len(remaining) == 0 {
					pipe.HDel(ctx, userKey, stores.UserFieldEmail)
				} else {
					pipe.HSet(ctx, userKey, stores.UserFieldEmail, stores.JoinList(remaining))
				}
				if now > 0 {
					pipe.HSet(ctx, userKey, stores.UserFieldUpdatedAt, fmt.Sprint(now))
				}
				return nil
			}, nil
		},
	)
	if err != nil {
		return c.fail("email.remove", logrus.Fields{"username": owner}, err)
	}

	c.metrics.Inc(MetricEmailRemoved)
	c.emit(ctx, auditEvent{eventType: AuditEmailRemoved, username: owner, metadata: map[string]string{"email": address}})
	return nil
}

// checkEmail normalizes and validates one address.
func (c *core) checkEmail(email string) (string, error) {
	address := normalizeEmail(email)
	if address == "" {
		return "", ErrMissingEmail
	}
	if strings.Contains(address, ",") {
		return "", fmt.Errorf("%w: %s", ErrInvalidEmail, address)
	}
	if err := c.validate.Var(address, "required,email"); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidEmail, address)
	}
	return address, nil
}

// normalizeEmails validates every address and drops duplicates, keeping the
// first occurrence.
func (c *core) normalizeEmails(emails []string) ([]string, error) {
	out := make([]string, 0, len(emails))
	seen := make(map[string]struct{}, len(emails))
	for _, raw := range emails {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		address, err := c.checkEmail(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[address]; dup {
			continue
		}
		seen[address] = struct{}{}
		out = append(out, address)
	}
	return out, nil
}

func toEmail(rec *stores.EmailRecord) *Email {
	return &Email{
		Address:    rec.Address,
		Username:   rec.Username,
		Attributes: cloneMap(rec.Attributes),
		CreatedAt:  fromMillis(rec.CreatedAt),
		VerifiedAt: fromMillis(rec.VerifiedAt),
	}
}
