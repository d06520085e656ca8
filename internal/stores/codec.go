package stores

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authdb/internal/txn"
)

const listSeparator = ","

// JoinList serializes an ordered list into one hash field.
func JoinList(values []string) string {
	return strings.Join(values, listSeparator)
}

// SplitList is the inverse of JoinList. Blank members are dropped.
func SplitList(v string) []string {
	if v == "" {
		return []string{}
	}
	parts := strings.Split(v, listSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func parseInt(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func prefixed(fields map[string]string, prefix string) map[string]string {
	out := make(map[string]string)
	for k, v := range fields {
		if name, ok := strings.CutPrefix(k, prefix); ok && name != "" {
			out[name] = v
		}
	}
	return out
}

// HashReader is the read side shared by *redis.Client and *redis.Tx.
type HashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// SetReader reads set members.
type SetReader interface {
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

func loadHash(ctx context.Context, r HashReader, key string) (map[string]string, error) {
	fields, err := r.HGetAll(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, txn.Unavailable(err)
	}
	return fields, nil
}
