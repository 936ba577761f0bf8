package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/fastprodman/buzzledger/internal/domain"
)

type errorResponse struct {
	Error     string     `json:"error"`
	Field     string     `json:"field,omitempty"`
	RetryAt   *time.Time `json:"retryAt,omitempty"`
	Available *int64     `json:"available,omitempty"`
	Required  *int64     `json:"required,omitempty"`
}

// writeDomainError maps service errors onto status codes. Anything it does
// not recognise is logged and reported as 500 without details.
func (h *HandlerProvider) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve  *domain.ErrValidation
		nf  *domain.ErrNotFound
		ife *domain.ErrInsufficientFunds
		rl  *domain.ErrRateLimited
		ext *domain.ErrExternalService
	)

	switch {
	case errors.As(err, &ve):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Message, Field: ve.Field})
	case errors.As(err, &nf):
		h.writeError(w, http.StatusNotFound, nf.Error())
	case errors.As(err, &ife):
		h.writeJSON(w, http.StatusConflict, errorResponse{
			Error:     "insufficient funds",
			Available: &ife.Available,
			Required:  &ife.Required,
		})
	case errors.As(err, &rl):
		retryAt := rl.RetryAt.UTC()
		secs := int64(math.Ceil(time.Until(retryAt).Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(max(secs, 0), 10))
		h.writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", RetryAt: &retryAt})
	case errors.Is(err, domain.ErrAlreadyRedeemed),
		errors.Is(err, domain.ErrAlreadyAllocated),
		errors.Is(err, domain.ErrAlreadyRefunded),
		errors.Is(err, domain.ErrAuctionClosed):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrBiddingDisabled):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		h.writeError(w, http.StatusServiceUnavailable, "upstream unavailable")
	case errors.As(err, &ext):
		h.Logger.Warn("external service failed", zap.String("path", r.URL.Path), zap.Error(err))

		msg := "upstream error"
		if ext.Message != "" {
			msg = ext.Message
		}

		h.writeError(w, http.StatusBadGateway, msg)
	default:
		h.Logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
