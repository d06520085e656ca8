package txn

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrConflict is returned when a watched key changed before commit.
	ErrConflict = errors.New("optimistic transaction conflict")
	// ErrUnavailable wraps store failures that are not conflicts.
	ErrUnavailable = errors.New("store unavailable")
)

// Write queues the commands of one commit on pipe. It runs inside MULTI/EXEC.
type Write func(pipe redis.Pipeliner) error

// ReadFunc loads the state a mutation depends on. It may WATCH additional keys
// through tx before reading them.
type ReadFunc[T any] func(ctx context.Context, tx *redis.Tx) (T, error)

// MutateFunc turns the state read into the writes to commit. Returning a nil
// Write commits nothing; returning an error aborts the operation.
type MutateFunc[T any] func(state T) (Write, error)

// ReadModifyWrite runs watch → read → mutate → conditional commit over
// watchKeys. Errors from read or mutate are returned unchanged. A rejected
// commit yields ErrConflict.
func ReadModifyWrite[T any](
	ctx context.Context,
	client redis.UniversalClient,
	watchKeys []string,
	read ReadFunc[T],
	mutate MutateFunc[T],
) error {
	if len(watchKeys) == 0 {
		return errors.New("txn: at least one watch key required")
	}

	var opErr error
	err := client.Watch(ctx, func(tx *redis.Tx) error {
		state, err := read(ctx, tx)
		if err != nil {
			opErr = err
			return err
		}

		write, err := mutate(state)
		if err != nil {
			opErr = err
			return err
		}
		if write == nil {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return write(pipe)
		})
		return err
	}, watchKeys...)

	switch {
	case err == nil:
		return nil
	case opErr != nil:
		return opErr
	case errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// CreateIfAbsent is ReadModifyWrite for "create if absent" on key. Absence is
// detected by reading sentinelField, which is set on every existing record.
// When the field is present, exists is returned and nothing is written.
func CreateIfAbsent(
	ctx context.Context,
	client redis.UniversalClient,
	key, sentinelField string,
	extraWatch []string,
	exists error,
	write Write,
) error {
	keys := append([]string{key}, extraWatch...)

	return ReadModifyWrite(ctx, client, keys,
		func(ctx context.Context, tx *redis.Tx) (bool, error) {
			present, err := tx.HExists(ctx, key, sentinelField).Result()
			if err != nil {
				return false, Unavailable(err)
			}
			return present, nil
		},
		func(present bool) (Write, error) {
			if present {
				return nil, exists
			}
			return write, nil
		},
	)
}

// Unavailable wraps err as a store failure. redis.Nil is not a failure and
// must be handled by the caller before reaching here.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
