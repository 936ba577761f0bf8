// Package kvstore is the narrow hash-based key/value surface that day-scoped
// counters are built on. Every write carries an absolute expiry which is
// applied only when the hash has none yet, so later writes never move it.
package kvstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("kvstore: field not found")

type Store interface {
	// HIncrBy atomically adds incr to key[field] and returns the new value.
	HIncrBy(ctx context.Context, key, field string, incr int64, expireAt time.Time) (int64, error)
	// HIncrByMany applies every increment in one atomic round-trip.
	HIncrByMany(ctx context.Context, key string, incrs map[string]int64, expireAt time.Time) (map[string]int64, error)
	// HGet returns ErrNotFound when the field is absent or the hash expired.
	HGet(ctx context.Context, key, field string) (string, error)
	// HMGet omits absent fields from the result.
	HMGet(ctx context.Context, key string, fields []string) (map[string]string, error)
	// HSetNX stores value only if the field is absent and reports whether it did.
	HSetNX(ctx context.Context, key, field, value string, expireAt time.Time) (bool, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Close() error
}
