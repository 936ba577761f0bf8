// Package resilience has the retry and circuit breaker helpers used around
// calls to the orchestrator.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/fastprodman/buzzledger/internal/domain"
)

type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

// RetryWithBackoff runs fn until it succeeds, retry reports false for its
// error, or MaxRetries is exhausted. Waits grow exponentially with jitter.
// A nil retry retries every error.
func RetryWithBackoff(ctx context.Context, cfg Config, retry func(error) bool, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := ctx.Err()
		if err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if retry != nil && !retry(lastErr) {
			return lastErr
		}

		if attempt < cfg.MaxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * cfg.InitialBackoff

			wait := backoff
			if half := int64(backoff / 2); half > 0 {
				wait += time.Duration(rand.Int64N(half))
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return lastErr
}

// NewCircuitBreaker trips after at least 5 requests with 60% failures and
// probes again after 10 seconds. 4xx answers from the upstream are the
// caller's fault and do not count as failures.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)

			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
	})
}

func isClientError(err error) bool {
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		return false
	}

	return ext.Status >= http.StatusBadRequest && ext.Status < http.StatusInternalServerError
}
