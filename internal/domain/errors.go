package domain

import (
	"errors"
	"fmt"
	"time"
)

// State conflicts on entities that already reached a terminal state.
var (
	ErrAlreadyRedeemed  = errors.New("code already redeemed")
	ErrAlreadyAllocated = errors.New("bid already allocated")
	ErrAlreadyRefunded  = errors.New("bid already refunded")
	ErrAuctionClosed    = errors.New("auction closed, bid may be allocating")
	ErrBiddingDisabled  = errors.New("bidding is disabled")
)

// ErrValidation indicates malformed input. It never reaches storage.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInsufficientFunds indicates a debit larger than the account balance.
type ErrInsufficientFunds struct {
	AccountID int64
	Available int64
	Required  int64
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds on account %d: available=%d required=%d",
		e.AccountID, e.Available, e.Required)
}

// ErrRateLimited indicates a counter over its threshold.
// RetryAt is derived from the first time the limit was hit.
type ErrRateLimited struct {
	Key     string
	RetryAt time.Time
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry at %s", e.Key, e.RetryAt.UTC().Format(time.RFC3339))
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure of the KV store, the database or the orchestrator.
type ErrExternalService struct {
	Service string
	Status  int
	Message string
	Err     error
}

func (e *ErrExternalService) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("external service error [%s]: status %d: %s", e.Service, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
	default:
		return fmt.Sprintf("external service error [%s]: %s", e.Service, e.Message)
	}
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}
