package authdb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/authdb/internal/stores"
	"github.com/MrEthical07/authdb/internal/txn"
	"github.com/MrEthical07/authdb/permission"
)

const defaultRoleScanCount int64 = 500

// Roles owns role records and their ACL sets. Roles are never deleted.
type Roles struct {
	core *core
}

// Get returns the role with its decoded ACL, or nil with a nil error when the
// role does not exist.
func (r *Roles) Get(ctx context.Context, name string) (*Role, error) {
	c := r.core

	key := normalizeName(name)
	if key == "" {
		return nil, ErrMissingRoleName
	}

	rec, err := stores.LoadRole(ctx, c.redis, c.keys.Role(key))
	if err != nil {
		return nil, storeError(err)
	}
	if rec == nil {
		return nil, nil
	}
	tokens, err := stores.LoadACL(ctx, c.redis, c.keys.ACL(key))
	if err != nil {
		return nil, storeError(err)
	}
	return toRole(rec, tokens), nil
}

// Create stores a new role and, when in.ACL is non-empty, its ACL set, in one
// commit. An existing role fails with [ErrRoleExists].
func (r *Roles) Create(ctx context.Context, in RoleInput) (*Role, error) {
	c := r.core

	name, key, err := checkRoleName(in.Name)
	if err != nil {
		return nil, err
	}
	tokens, err := encodeACL(in.ACL)
	if err != nil {
		return nil, err
	}

	now := c.stamp()
	rec := &stores.RoleRecord{
		Name:        name,
		Description: in.Description,
		Attributes:  compactMap(in.Attributes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	roleKey, aclKey := c.keys.Role(key), c.keys.ACL(key)

	err = txn.CreateIfAbsent(ctx, c.redis, roleKey, stores.RoleFieldName, []string{aclKey}, ErrRoleExists,
		func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, roleKey, rec.Fields())
			replaceACL(ctx, pipe, aclKey, tokens)
			return nil
		})
	if err != nil {
		return nil, c.fail("roles.create", logrus.Fields{"role": key}, err)
	}

	c.metrics.Inc(MetricRoleCreated)
	c.emit(ctx, auditEvent{eventType: AuditRoleCreated, metadata: map[string]string{"role": key}})
	return toRole(rec, tokens), nil
}

// Update merges patch onto an existing role. A non-empty patch.ACL replaces
// the ACL set wholesale in the same commit; it is never merged.
func (r *Roles) Update(ctx context.Context, patch RolePatch, name string) (*Role, error) {
	c := r.core

	key := normalizeName(name)
	if key == "" {
		return nil, ErrMissingRoleName
	}
	var canonical string
	if patch.Name != nil {
		n, k, err := checkRoleName(*patch.Name)
		if err != nil {
			return nil, err
		}
		if k != key {
			return nil, fmt.Errorf("%w: roles cannot be renamed", ErrInvalidRoleName)
		}
		canonical = n
	}
	tokens, err := encodeACL(patch.ACL)
	if err != nil {
		return nil, err
	}

	roleKey, aclKey := c.keys.Role(key), c.keys.ACL(key)

	type state struct {
		role   *stores.RoleRecord
		tokens []string
	}
	var updated state

	err = txn.ReadModifyWrite(ctx, c.redis, []string{roleKey, aclKey},
		func(ctx context.Context, tx *redis.Tx) (state, error) {
			rec, err := stores.LoadRole(ctx, tx, roleKey)
			if err != nil || rec == nil {
				return state{}, err
			}
			current, err := stores.LoadACL(ctx, tx, aclKey)
			if err != nil {
				return state{}, err
			}
			return state{role: rec, tokens: current}, nil
		},
		func(st state) (txn.Write, error) {
			if st.role == nil {
				return nil, ErrRoleNotFound
			}
			rec := st.role
			if canonical != "" {
				rec.Name = canonical
			}
			if patch.Description != nil {
				rec.Description = *patch.Description
			}
			rec.Attributes = mergeMap(rec.Attributes, patch.Attributes)
			if ts := c.stamp(); ts > 0 {
				rec.UpdatedAt = ts
			}
			if len(tokens) > 0 {
				st.tokens = tokens
			}
			updated = st

			return func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, roleKey)
				pipe.HSet(ctx, roleKey, rec.Fields())
				replaceACL(ctx, pipe, aclKey, tokens)
				return nil
			}, nil
		},
	)
	if err != nil {
		return nil, c.fail("roles.update", logrus.Fields{"role": key}, err)
	}

	c.metrics.Inc(MetricRoleUpdated)
	c.emit(ctx, auditEvent{eventType: AuditRoleUpdated, metadata: map[string]string{"role": key}})
	return toRole(updated.role, updated.tokens), nil
}

// List returns the sorted names of roles whose key starts with prefix. An
// empty prefix lists every role.
func (r *Roles) List(ctx context.Context, prefix string) ([]string, error) {
	c := r.core

	pattern := c.keys.RolePattern(normalizeName(prefix))
	count := c.cfg.Keys.ScanCount
	if count <= 0 {
		count = defaultRoleScanCount
	}
	names := make([]string, 0)
	var cursor uint64
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return nil, storeError(txn.Unavailable(err))
		}
		for _, k := range keys {
			if name, ok := c.keys.RoleName(k); ok {
				names = append(names, name)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Strings(names)
	return dedupeSorted(names), nil
}

// HasPermission reports whether any of roles grants method on resource. Roles
// are checked in order and the first grant wins. An empty method only
// matches the resource wildcard.
func (r *Roles) HasPermission(ctx context.Context, roles []string, resource, method string) (bool, error) {
	c := r.core
	start := time.Now()
	defer c.observeSince(MetricPermissionLatency, start)

	if strings.TrimSpace(resource) == "" {
		return false, fmt.Errorf("%w: %v", ErrInvalidACL, permission.ErrEmptyResource)
	}

	keys := make([]string, len(roles))
	for i, role := range roles {
		keys[i] = normalizeName(role)
	}

	ok, err := permission.Check(ctx, keys, strings.TrimSpace(resource), method,
		func(ctx context.Context, role, token string) (bool, error) {
			return c.redis.SIsMember(ctx, c.keys.ACL(role), token).Result()
		})
	if err != nil {
		return false, storeError(txn.Unavailable(err))
	}

	if ok {
		c.metrics.Inc(MetricPermissionGranted)
	} else {
		c.metrics.Inc(MetricPermissionDenied)
	}
	return ok, nil
}

func checkRoleName(raw string) (name, key string, err error) {
	name = strings.TrimSpace(raw)
	if name == "" {
		return "", "", ErrMissingRoleName
	}
	if !validRoleName(name) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRoleName, name)
	}
	return name, normalizeName(name), nil
}

func encodeACL(rules []permission.Rule) ([]string, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	tokens, err := permission.Encode(rules)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidACL, err)
	}
	return tokens, nil
}

// replaceACL queues DEL then SADD so the new set never merges with the old.
func replaceACL(ctx context.Context, pipe redis.Pipeliner, aclKey string, tokens []string) {
	if len(tokens) == 0 {
		return
	}
	members := make([]any, len(tokens))
	for i, t := range tokens {
		members[i] = t
	}
	pipe.Del(ctx, aclKey)
	pipe.SAdd(ctx, aclKey, members...)
}

func dedupeSorted(s []string) []string {
	if len(s) < 2 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func toRole(rec *stores.RoleRecord, tokens []string) *Role {
	sorted := append([]string{}, tokens...)
	sort.Strings(sorted)
	return &Role{
		Name:        rec.Name,
		Description: rec.Description,
		Attributes:  cloneMap(rec.Attributes),
		ACL:         permission.Decode(sorted),
		CreatedAt:   fromMillis(rec.CreatedAt),
		UpdatedAt:   fromMillis(rec.UpdatedAt),
	}
}
