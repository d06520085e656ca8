package authdb

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/authdb/internal/stores"
	"github.com/MrEthical07/authdb/internal/txn"
	"github.com/MrEthical07/authdb/password"
)

// Users owns user records and, on create and remove, the email index entries
// that point at them.
type Users struct {
	core *core
}

// Get returns the user without password or salt, or [ErrUserNotFound].
func (u *Users) Get(ctx context.Context, username string) (*User, error) {
	key := normalizeName(username)
	if key == "" {
		return nil, ErrMissingUsername
	}

	rec, err := stores.LoadUser(ctx, u.core.redis, u.core.keys.User(key))
	if err != nil {
		return nil, storeError(err)
	}
	if rec == nil {
		return nil, ErrUserNotFound
	}
	return toUser(rec), nil
}

// Create stores a new user and claims every listed email for it in a single
// commit. A name that normalizes to an existing key fails with
// [ErrUsernameTaken]; an email owned by someone else fails with
// [ErrEmailTaken]. Either way nothing is written.
func (u *Users) Create(ctx context.Context, in UserInput) (*User, error) {
	c := u.core

	canonical := strings.TrimSpace(in.Username)
	key := normalizeName(canonical)
	if key == "" {
		return nil, ErrMissingUsername
	}
	if in.Password == "" && c.cfg.Password.Required {
		return nil, ErrMissingPassword
	}
	emails, err := c.normalizeEmails(in.Emails)
	if err != nil {
		return nil, err
	}
	roles, err := normalizeRoleList(in.Roles)
	if err != nil {
		return nil, err
	}

	rec := &stores.UserRecord{
		Username:         canonical,
		Emails:           emails,
		Roles:            roles,
		Profile:          compactMap(in.Profile),
		LicenseExpiresAt: toMillis(in.LicenseExpiresAt),
	}
	if in.Password != "" {
		rec.PasswordHash, rec.Salt, err = c.hashPassword(in.Password)
		if err != nil {
			return nil, err
		}
	}
	now := c.stamp()
	rec.CreatedAt, rec.UpdatedAt = now, now

	userKey := c.keys.User(key)
	watch := []string{userKey}
	for _, e := range emails {
		watch = append(watch, c.keys.Email(e))
	}

	err = txn.ReadModifyWrite(ctx, c.redis, watch,
		func(ctx context.Context, tx *redis.Tx) (struct{}, error) {
			taken, err := tx.HExists(ctx, userKey, stores.UserFieldUsername).Result()
			if err != nil {
				return struct{}{}, txn.Unavailable(err)
			}
			if taken {
				return struct{}{}, ErrUsernameTaken
			}
			return struct{}{}, c.checkEmailsFree(ctx, tx, key, emails)
		},
		func(struct{}) (txn.Write, error) {
			return func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, userKey, rec.Fields())
				c.claimEmails(ctx, pipe, key, emails, now)
				return nil
			}, nil
		},
	)
	fields := logrus.Fields{"username": key}
	if err != nil {
		switch CodeOf(err) {
		case ErrUsernameTaken.Code:
			c.metrics.Inc(MetricUsernameTaken)
		case ErrEmailTaken.Code:
			c.metrics.Inc(MetricEmailTaken)
		}
		return nil, c.fail("users.create", fields, err)
	}

	c.metrics.Inc(MetricUserCreated)
	c.emit(ctx, auditEvent{eventType: AuditUserCreated, username: key})
	return toUser(rec), nil
}

// Update merges patch onto an existing user. Emails cannot change here; a
// non-nil patch.Emails fails with [ErrEmailUpdateForbidden]. A new password is
// re-salted and re-hashed before the store is touched.
func (u *Users) Update(ctx context.Context, patch UserPatch, username string) (*User, error) {
	c := u.core

	key := normalizeName(username)
	if key == "" {
		return nil, ErrMissingUsername
	}
	if patch.Emails != nil {
		return nil, ErrEmailUpdateForbidden
	}

	var canonical string
	if patch.Username != nil {
		canonical = strings.TrimSpace(*patch.Username)
		if canonical == "" {
			return nil, ErrMissingUsername
		}
		if normalizeName(canonical) != key {
			return nil, ErrUsernameMismatch
		}
	}

	var roles []string
	if patch.Roles != nil {
		var err error
		if roles, err = normalizeRoleList(patch.Roles); err != nil {
			return nil, err
		}
	}

	var hash, salt string
	clearPassword := false
	if patch.Password != nil {
		switch {
		case *patch.Password != "":
			var err error
			if hash, salt, err = c.hashPassword(*patch.Password); err != nil {
				return nil, err
			}
		case c.cfg.Password.Required:
			return nil, ErrMissingPassword
		default:
			clearPassword = true
		}
	}

	userKey := c.keys.User(key)
	var updated *stores.UserRecord

	err := txn.ReadModifyWrite(ctx, c.redis, []string{userKey},
		func(ctx context.Context, tx *redis.Tx) (*stores.UserRecord, error) {
			return stores.LoadUser(ctx, tx, userKey)
		},
		func(rec *stores.UserRecord) (txn.Write, error) {
			if rec == nil {
				return nil, ErrUserNotFound
			}
			if canonical != "" {
				rec.Username = canonical
			}
			if roles != nil {
				rec.Roles = roles
			}
			switch {
			case hash != "":
				rec.PasswordHash, rec.Salt = hash, salt
			case clearPassword:
				rec.PasswordHash, rec.Salt = "", ""
			}
			rec.Profile = mergeMap(rec.Profile, patch.Profile)
			if patch.LicenseExpiresAt != nil {
				rec.LicenseExpiresAt = toMillis(*patch.LicenseExpiresAt)
			}
			if ts := c.stamp(); ts > 0 {
				rec.UpdatedAt = ts
			}
			updated = rec

			return func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, userKey)
				pipe.HSet(ctx, userKey, rec.Fields())
				return nil
			}, nil
		},
	)
	if err != nil {
		return nil, c.fail("users.update", logrus.Fields{"username": key}, err)
	}

	c.metrics.Inc(MetricUserUpdated)
	c.emit(ctx, auditEvent{eventType: AuditUserUpdated, username: key})
	return toUser(updated), nil
}

// Remove deletes a user with no recorded requests, together with every email
// index entry it owns, in one commit. A user with requests fails with
// [ErrUserActive].
func (u *Users) Remove(ctx context.Context, username string) error {
	c := u.core

	key := normalizeName(username)
	if key == "" {
		return ErrMissingUsername
	}
	userKey := c.keys.User(key)

	type state struct {
		user  *stores.UserRecord
		owned []string
	}

	err := txn.ReadModifyWrite(ctx, c.redis, []string{userKey},
		func(ctx context.Context, tx *redis.Tx) (state, error) {
			rec, err := stores.LoadUser(ctx, tx, userKey)
			if err != nil || rec == nil {
				return state{}, err
			}
			if rec.Requests > 0 {
				return state{user: rec}, nil
			}

			st := state{user: rec}
			for _, address := range rec.Emails {
				emailKey := c.keys.Email(address)
				if err := tx.Watch(ctx, emailKey).Err(); err != nil {
					return state{}, txn.Unavailable(err)
				}
				entry, err := stores.LoadEmail(ctx, tx, emailKey, address)
				if err != nil {
					return state{}, err
				}
				if entry != nil && entry.Username == key {
					st.owned = append(st.owned, emailKey)
				}
			}
			return st, nil
		},
		func(st state) (txn.Write, error) {
			if st.user == nil {
				return nil, ErrUserNotFound
			}
			if st.user.Requests > 0 {
				return nil, ErrUserActive
			}
			return func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, append([]string{userKey}, st.owned...)...)
				return nil
			}, nil
		},
	)
	if err != nil {
		return c.fail("users.remove", logrus.Fields{"username": key}, err)
	}

	c.metrics.Inc(MetricUserRemoved)
	c.emit(ctx, auditEvent{eventType: AuditUserRemoved, username: key})
	return nil
}

// CheckPassword reports whether creds match the stored hash. An unknown user,
// a user without a password and a wrong password all yield false with a nil
// error; only store failures return an error.
func (u *Users) CheckPassword(ctx context.Context, creds Credentials) (bool, error) {
	c := u.core

	key := normalizeName(creds.Username)
	if key == "" {
		return false, nil
	}
	rec, err := stores.LoadUser(ctx, c.redis, c.keys.User(key))
	if err != nil {
		return false, storeError(err)
	}

	ok := rec != nil && password.Verify(c.hasher, creds.Password, rec.Salt, rec.PasswordHash)
	if ok {
		c.metrics.Inc(MetricPasswordCheckSuccess)
	} else {
		c.metrics.Inc(MetricPasswordCheckFailure)
	}
	return ok, nil
}

// Emails resolves the user's email list to index entries, in list order.
// Entries missing from the index or owned by another user are skipped.
func (u *Users) Emails(ctx context.Context, username string) ([]Email, error) {
	c := u.core

	key := normalizeName(username)
	if key == "" {
		return nil, ErrMissingUsername
	}
	rec, err := stores.LoadUser(ctx, c.redis, c.keys.User(key))
	if err != nil {
		return nil, storeError(err)
	}
	if rec == nil {
		return nil, ErrUserNotFound
	}

	out := make([]Email, 0, len(rec.Emails))
	for _, address := range rec.Emails {
		entry, err := stores.LoadEmail(ctx, c.redis, c.keys.Email(address), address)
		if err != nil {
			return nil, storeError(err)
		}
		if entry == nil || entry.Username != key {
			continue
		}
		out = append(out, *toEmail(entry))
	}
	return out, nil
}

func (c *core) hashPassword(plaintext string) (hash, salt string, err error) {
	n := utf8.RuneCountInString(plaintext)
	if n < c.cfg.Password.MinLength || n > c.cfg.Password.MaxLength {
		return "", "", fmt.Errorf("%w: must be %d to %d characters",
			ErrPasswordLength, c.cfg.Password.MinLength, c.cfg.Password.MaxLength)
	}
	salt, err = password.NewSalt(c.cfg.Password.SaltLength)
	if err != nil {
		return "", "", err
	}
	hash, err = c.hasher.Hash(plaintext, salt)
	if err != nil {
		return "", "", err
	}
	return hash, salt, nil
}

// checkEmailsFree fails with ErrEmailTaken if any address belongs to another
// owner. The email keys must already be watched by tx.
func (c *core) checkEmailsFree(ctx context.Context, tx *redis.Tx, owner string, emails []string) error {
	for _, address := range emails {
		entry, err := stores.LoadEmail(ctx, tx, c.keys.Email(address), address)
		if err != nil {
			return err
		}
		if entry != nil && entry.Username != owner {
			return fmt.Errorf("%w: %s", ErrEmailTaken, address)
		}
	}
	return nil
}

// claimEmails queues first-writer-wins index entries for emails.
func (c *core) claimEmails(ctx context.Context, pipe redis.Pipeliner, owner string, emails []string, now int64) {
	for _, address := range emails {
		emailKey := c.keys.Email(address)
		pipe.HSetNX(ctx, emailKey, stores.EmailFieldUsername, owner)
		if now > 0 {
			pipe.HSetNX(ctx, emailKey, stores.EmailFieldCreatedAt, fmt.Sprint(now))
		}
	}
}

func normalizeRoleList(roles []string) ([]string, error) {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if !validRoleName(r) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRoleName, r)
		}
		k := normalizeName(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

// compactMap drops empty keys and values.
func compactMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if k = strings.TrimSpace(k); k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

// mergeMap applies patch onto base. An empty patch value deletes the key.
func mergeMap(base, patch map[string]string) map[string]string {
	out := cloneMap(base)
	for k, v := range patch {
		if k = strings.TrimSpace(k); k == "" {
			continue
		}
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

func toUser(rec *stores.UserRecord) *User {
	return &User{
		Username:         rec.Username,
		Emails:           append([]string{}, rec.Emails...),
		Roles:            append([]string{}, rec.Roles...),
		Profile:          cloneMap(rec.Profile),
		CreatedAt:        fromMillis(rec.CreatedAt),
		UpdatedAt:        fromMillis(rec.UpdatedAt),
		LastActivityAt:   fromMillis(rec.LastActivityAt),
		Requests:         rec.Requests,
		LicenseExpiresAt: fromMillis(rec.LicenseExpiresAt),
	}
}
