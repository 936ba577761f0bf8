package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type bidRequest struct {
	AuctionID int64 `json:"auctionId"`
	Amount    int64 `json:"amount"`
}

func (h *HandlerProvider) GetAuctionsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.Auctions.GetAll(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	h.writeJSON(w, http.StatusOK, list)
}

func (h *HandlerProvider) GetAuctionBySlugHandler(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Auctions.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	h.writeJSON(w, http.StatusOK, detail)
}

func (h *HandlerProvider) GetMyBidsHandler(w http.ResponseWriter, r *http.Request) {
	bids, err := h.Auctions.GetMyBids(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	h.writeJSON(w, http.StatusOK, bids)
}

func (h *HandlerProvider) GetMyRecurringBidsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.Auctions.GetMyRecurringBids(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	h.writeJSON(w, http.StatusOK, list)
}

// CreateBidHandler handles POST /bids. The bid amount is charged immediately.
func (h *HandlerProvider) CreateBidHandler(w http.ResponseWriter, r *http.Request) {
	var req bidRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	bid, err := h.Auctions.CreateBid(r.Context(), principal(r).UserID, req.AuctionID, req.Amount)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	h.writeJSON(w, http.StatusCreated, bid)
}

// DeleteBidHandler handles DELETE /bids/{id} and answers with the refunded bid.
func (h *HandlerProvider) DeleteBidHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	bid, err := h.Auctions.DeleteBid(r.Context(), principal(r).UserID, id)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	h.writeJSON(w, http.StatusOK, bid)
}

func (h *HandlerProvider) CreateRecurringBidHandler(w http.ResponseWriter, r *http.Request) {
	var req bidRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	rb, err := h.Auctions.CreateRecurringBid(r.Context(), principal(r).UserID, req.AuctionID, req.Amount)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	h.writeJSON(w, http.StatusCreated, rb)
}

func (h *HandlerProvider) DeleteRecurringBidHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	err = h.Auctions.DeleteRecurringBid(r.Context(), principal(r).UserID, id)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HandlerProvider) TogglePauseRecurringBidHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	rb, err := h.Auctions.TogglePauseRecurringBid(r.Context(), principal(r).UserID, id)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	h.writeJSON(w, http.StatusOK, rb)
}
