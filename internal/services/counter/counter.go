// Package counter keeps named integer counters bucketed by UTC day.
//
// Counter "redeem-attempts" stores key "42" as field 42 of hash
// "redeem-attempts:2024-05-01". The hash expires at the UTC midnight after its
// first write.
package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fastprodman/buzzledger/internal/infra/kvstore"
)

const dayLayout = "2006-01-02"

type Counter struct {
	store kvstore.Store
	name  string
	now   func() time.Time
}

// New returns a counter named name. A nil now means time.Now.
func New(store kvstore.Store, name string, now func() time.Time) *Counter {
	if now == nil {
		now = time.Now
	}

	return &Counter{store: store, name: name, now: now}
}

func (c *Counter) Name() string {
	return c.name
}

// NextUTCMidnight returns the first UTC midnight strictly after t.
func NextUTCMidnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()

	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

func (c *Counter) bucket(now time.Time) string {
	return c.name + ":" + now.UTC().Format(dayLayout)
}

// IncrBy adds amount to key and returns the new value.
func (c *Counter) IncrBy(ctx context.Context, key string, amount int64) (int64, error) {
	now := c.now()

	v, err := c.store.HIncrBy(ctx, c.bucket(now), key, amount, NextUTCMidnight(now))
	if err != nil {
		return 0, fmt.Errorf("incr %s/%s: %w", c.name, key, err)
	}

	return v, nil
}

// IncrManyBy applies several increments to today's bucket in one round-trip.
func (c *Counter) IncrManyBy(ctx context.Context, incrs map[string]int64) (map[string]int64, error) {
	now := c.now()

	out, err := c.store.HIncrByMany(ctx, c.bucket(now), incrs, NextUTCMidnight(now))
	if err != nil {
		return nil, fmt.Errorf("incr many %s: %w", c.name, err)
	}

	return out, nil
}

// Get returns today's value for key, 0 when absent.
func (c *Counter) Get(ctx context.Context, key string) (int64, error) {
	raw, err := c.store.HGet(ctx, c.bucket(c.now()), key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return 0, nil
		}

		return 0, fmt.Errorf("get %s/%s: %w", c.name, key, err)
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s/%s: %w", c.name, key, err)
	}

	return v, nil
}

// GetMany returns today's values for keys; absent keys map to 0.
func (c *Counter) GetMany(ctx context.Context, keys []string) (map[string]int64, error) {
	raw, err := c.store.HMGet(ctx, c.bucket(c.now()), keys)
	if err != nil {
		return nil, fmt.Errorf("get many %s: %w", c.name, err)
	}

	out := make(map[string]int64, len(keys))

	for _, k := range keys {
		s, ok := raw[k]
		if !ok {
			out[k] = 0

			continue
		}

		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s/%s: %w", c.name, k, err)
		}

		out[k] = v
	}

	return out, nil
}

// SetIfAbsent stores value for key unless today's bucket already holds one.
func (c *Counter) SetIfAbsent(ctx context.Context, key string, value int64) (bool, error) {
	now := c.now()

	ok, err := c.store.HSetNX(ctx, c.bucket(now), key, strconv.FormatInt(value, 10), NextUTCMidnight(now))
	if err != nil {
		return false, fmt.Errorf("set %s/%s: %w", c.name, key, err)
	}

	return ok, nil
}

// Lookup is Get that also reports whether the key was present.
func (c *Counter) Lookup(ctx context.Context, key string) (int64, bool, error) {
	raw, err := c.store.HGet(ctx, c.bucket(c.now()), key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("lookup %s/%s: %w", c.name, key, err)
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s/%s: %w", c.name, key, err)
	}

	return v, true, nil
}

// Reset drops key from today's bucket.
func (c *Counter) Reset(ctx context.Context, key string) error {
	err := c.store.HDel(ctx, c.bucket(c.now()), key)
	if err != nil {
		return fmt.Errorf("reset %s/%s: %w", c.name, key, err)
	}

	return nil
}
