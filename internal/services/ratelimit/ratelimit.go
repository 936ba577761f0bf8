// Package ratelimit answers whether a key went over its daily quota.
//
// Attempts are counted in a day-scoped counter. The first time a key is seen
// over the limit its hit time is stored once, so the retry time reported to
// the caller does not drift with further attempts.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/kvstore"
	"github.com/fastprodman/buzzledger/internal/services/counter"
)

// LimitSource yields the current threshold.
type LimitSource interface {
	Limit(ctx context.Context) (int64, error)
}

type StaticLimit int64

func (l StaticLimit) Limit(context.Context) (int64, error) {
	return int64(l), nil
}

type LimitFunc func(ctx context.Context) (int64, error)

func (f LimitFunc) Limit(ctx context.Context) (int64, error) {
	return f(ctx)
}

type Config struct {
	// Name prefixes the counter hashes, e.g. "redeem-attempts".
	Name            string
	Source          LimitSource
	RefreshInterval time.Duration
	Now             func() time.Time
	Logger          *zap.Logger
}

type Limiter struct {
	attempts *counter.Counter
	hits     *counter.Counter
	source   LimitSource
	refresh  time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu        sync.Mutex
	limit     int64
	fetchedAt time.Time
	loaded    bool
}

func New(store kvstore.Store, cfg Config) *Limiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Limiter{
		attempts: counter.New(store, cfg.Name, cfg.Now),
		hits:     counter.New(store, cfg.Name+":hit", cfg.Now),
		source:   cfg.Source,
		refresh:  cfg.RefreshInterval,
		now:      cfg.Now,
		logger:   cfg.Logger.Named("ratelimit").With(zap.String("limiter", cfg.Name)),
	}
}

// currentLimit returns the cached limit, refetching it once the refresh
// interval has passed. A failed refetch keeps serving the previous value.
func (l *Limiter) currentLimit(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.loaded && (l.refresh <= 0 || now.Sub(l.fetchedAt) < l.refresh) {
		return l.limit, nil
	}

	limit, err := l.source.Limit(ctx)
	if err != nil {
		if l.loaded {
			l.logger.Warn("refresh limit failed, keeping cached value",
				zap.Int64("limit", l.limit), zap.Error(err))

			l.fetchedAt = now

			return l.limit, nil
		}

		return 0, fmt.Errorf("load limit: %w", err)
	}

	l.limit = limit
	l.fetchedAt = now
	l.loaded = true

	return limit, nil
}

// Increment counts one attempt for key.
func (l *Limiter) Increment(ctx context.Context, key string) (int64, error) {
	v, err := l.attempts.IncrBy(ctx, key, 1)
	if err != nil {
		return 0, fmt.Errorf("increment: %w", err)
	}

	return v, nil
}

// HasExceededLimit reports whether today's count for key is above the limit.
func (l *Limiter) HasExceededLimit(ctx context.Context, key string) (bool, error) {
	limit, err := l.currentLimit(ctx)
	if err != nil {
		return false, err
	}

	v, err := l.attempts.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read attempts: %w", err)
	}

	if v <= limit {
		return false, nil
	}

	_, err = l.hits.SetIfAbsent(ctx, key, l.now().Unix())
	if err != nil {
		return true, fmt.Errorf("record hit time: %w", err)
	}

	return true, nil
}

// GetLimitHitTime returns when key first went over the limit today, or nil.
func (l *Limiter) GetLimitHitTime(ctx context.Context, key string) (*time.Time, error) {
	sec, ok, err := l.hits.Lookup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read hit time: %w", err)
	}

	if !ok {
		return nil, nil //nolint:nilnil
	}

	t := time.Unix(sec, 0).UTC()

	return &t, nil
}

// Check is HasExceededLimit that returns *domain.ErrRateLimited when over.
func (l *Limiter) Check(ctx context.Context, key string) error {
	over, err := l.HasExceededLimit(ctx, key)
	if err != nil {
		return err
	}

	if !over {
		return nil
	}

	hit, err := l.GetLimitHitTime(ctx, key)
	if err != nil {
		return err
	}

	at := l.now()
	if hit != nil {
		at = *hit
	}

	return &domain.ErrRateLimited{Key: key, RetryAt: RetryAt(at)}
}

// Clear resets the attempt count and hit time for key.
func (l *Limiter) Clear(ctx context.Context, key string) error {
	err := l.attempts.Reset(ctx, key)
	if err != nil {
		return fmt.Errorf("clear attempts: %w", err)
	}

	err = l.hits.Reset(ctx, key)
	if err != nil {
		return fmt.Errorf("clear hit time: %w", err)
	}

	return nil
}

// RetryAt is when a key that hit its limit at hit may try again.
func RetryAt(hit time.Time) time.Time {
	return counter.NextUTCMidnight(hit)
}
