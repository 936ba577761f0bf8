package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/fastprodman/buzzledger/internal/domain"
)

var errPermanent = errors.New("permanent")

func TestRetryWithBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		failFirst int
		fail      error
		retry     func(error) bool
		wantCalls int
		wantErr   bool
	}{
		{name: "success_first_try", failFirst: 0, wantCalls: 1},
		{name: "recovers_after_failures", failFirst: 2, fail: errors.New("temporary"), wantCalls: 3},
		{name: "exhausts_retries", failFirst: 100, fail: errors.New("temporary"), wantCalls: 3, wantErr: true},
		{
			name:      "non_retryable_stops",
			failFirst: 100,
			fail:      errPermanent,
			retry:     func(err error) bool { return !errors.Is(err, errPermanent) },
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			cfg := Config{MaxRetries: 2, InitialBackoff: time.Millisecond}

			err := RetryWithBackoff(t.Context(), cfg, tt.retry, func() error {
				calls++
				if calls <= tt.failFirst {
					return tt.fail
				}

				return nil
			})

			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}

			if calls != tt.wantCalls {
				t.Fatalf("calls: want %d, got %d", tt.wantCalls, calls)
			}
		})
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := RetryWithBackoff(ctx, Config{MaxRetries: 5, InitialBackoff: time.Second}, nil, func() error {
		return errors.New("boom")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestCircuitBreaker_Trips(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("test")

	for range 5 {
		_, _ = cb.Execute(func() (any, error) { return nil, errors.New("down") })
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("want open breaker, got %s", cb.State())
	}

	_, err := cb.Execute(func() (any, error) { return nil, nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("want ErrOpenState, got %v", err)
	}
}

func TestCircuitBreaker_IgnoresClientErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantOpen bool
	}{
		{name: "unauthorized", err: &domain.ErrExternalService{Service: "up", Status: 401}, wantOpen: false},
		{name: "not_found", err: &domain.ErrExternalService{Service: "up", Status: 404}, wantOpen: false},
		{name: "bad_gateway", err: &domain.ErrExternalService{Service: "up", Status: 502}, wantOpen: true},
		{name: "transport", err: &domain.ErrExternalService{Service: "up", Err: errors.New("dial")}, wantOpen: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cb := NewCircuitBreaker(tt.name)

			for range 10 {
				_, err := cb.Execute(func() (any, error) { return nil, tt.err })
				if errors.Is(err, gobreaker.ErrOpenState) {
					break
				}
			}

			if open := cb.State() == gobreaker.StateOpen; open != tt.wantOpen {
				t.Fatalf("open: want %v, got %v", tt.wantOpen, open)
			}
		})
	}
}
