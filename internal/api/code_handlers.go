package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/resilience"
	"github.com/fastprodman/buzzledger/internal/services/redeem"
)

type consumeRequest struct {
	Code string `json:"code"`
}

// ConsumeCodeHandler handles POST /redeemable-codes/consume.
func (h *HandlerProvider) ConsumeCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req consumeRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	res, err := h.Codes.Consume(r.Context(), req.Code, principal(r).UserID)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// CreateCodesHandler handles POST /redeemable-codes.
func (h *HandlerProvider) CreateCodesHandler(w http.ResponseWriter, r *http.Request) {
	var in redeem.CreateCodesInput

	err := decodeJSON(w, r, &in)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	codes, err := h.Codes.Create(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	h.writeJSON(w, http.StatusCreated, codes)
}

// DeleteCodeHandler handles DELETE /redeemable-codes/{code}.
func (h *HandlerProvider) DeleteCodeHandler(w http.ResponseWriter, r *http.Request) {
	err := h.Codes.Delete(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetPriorityVolumeHandler handles GET /priority-volume, retrying transient
// orchestrator failures with backoff.
func (h *HandlerProvider) GetPriorityVolumeHandler(w http.ResponseWriter, r *http.Request) {
	if h.PriorityVolume == nil {
		h.writeDomainError(w, r, &domain.ErrExternalService{Service: "orchestrator", Message: "not configured"})

		return
	}

	retryable := h.Retryable
	if retryable == nil {
		retryable = func(error) bool { return false }
	}

	var out []domain.PriorityVolume

	err := resilience.RetryWithBackoff(r.Context(), h.Retry, retryable, func() error {
		var err error

		out, err = h.PriorityVolume.GetPriorityVolume(r.Context())

		return err
	})
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	h.writeJSON(w, http.StatusOK, out)
}
