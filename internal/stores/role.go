package stores

import (
	"context"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authdb/internal/txn"
)

const (
	RoleFieldName        = "name"
	RoleFieldDescription = "description"
	RoleFieldCreatedAt   = "createdAt"
	RoleFieldUpdatedAt   = "updatedAt"
	roleAttrPrefix       = "attr."
)

// RoleRecord is the stored form of a role's base attributes. The ACL lives in
// a parallel set key.
type RoleRecord struct {
	Name        string
	Description string
	Attributes  map[string]string
	CreatedAt   int64
	UpdatedAt   int64
}

// Fields encodes the record for HSET.
func (r *RoleRecord) Fields() map[string]any {
	fields := map[string]any{
		RoleFieldName: r.Name,
	}
	if r.Description != "" {
		fields[RoleFieldDescription] = r.Description
	}
	if r.CreatedAt > 0 {
		fields[RoleFieldCreatedAt] = formatInt(r.CreatedAt)
	}
	if r.UpdatedAt > 0 {
		fields[RoleFieldUpdatedAt] = formatInt(r.UpdatedAt)
	}
	for k, v := range r.Attributes {
		fields[roleAttrPrefix+k] = v
	}
	return fields
}

// DecodeRole decodes HGETALL output; nil means the role does not exist.
func DecodeRole(fields map[string]string) *RoleRecord {
	name := fields[RoleFieldName]
	if name == "" {
		return nil
	}
	return &RoleRecord{
		Name:        name,
		Description: fields[RoleFieldDescription],
		Attributes:  prefixed(fields, roleAttrPrefix),
		CreatedAt:   parseInt(fields[RoleFieldCreatedAt]),
		UpdatedAt:   parseInt(fields[RoleFieldUpdatedAt]),
	}
}

// LoadRole reads a role record; nil means absent.
func LoadRole(ctx context.Context, r HashReader, key string) (*RoleRecord, error) {
	fields, err := loadHash(ctx, r, key)
	if err != nil {
		return nil, err
	}
	return DecodeRole(fields), nil
}

// LoadACL returns a role's ACL tokens sorted for stable decoding.
func LoadACL(ctx context.Context, r SetReader, key string) ([]string, error) {
	tokens, err := r.SMembers(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, txn.Unavailable(err)
	}
	sort.Strings(tokens)
	return tokens, nil
}
