package api

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/services/ledger"
)

const maxBatchItems = 1000

// GetMyBalanceHandler handles GET /me/balance.
func (h *HandlerProvider) GetMyBalanceHandler(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	balance, err := h.Ledger.GetUserBalance(r.Context(), p.UserID)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{
		"userId":  p.UserID,
		"balance": balance,
	})
}

// ListMyTransactionsHandler handles GET /me/transactions?limit=.
func (h *HandlerProvider) ListMyTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeDomainError(w, r, &domain.ErrValidation{Field: "limit", Message: "must be a positive integer"})

			return
		}

		limit = n
	}

	txs, err := h.Ledger.ListUserTransactions(r.Context(), principal(r).UserID, limit)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	h.writeJSON(w, http.StatusOK, txs)
}

// CreateTransactionHandler handles POST /ledger/transactions. A replay is
// answered with 200 and the stored row, a new transaction with 201.
func (h *HandlerProvider) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var in ledger.TransactionInput

	err := decodeJSON(w, r, &in)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	res, err := h.Ledger.CreateTransaction(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}

	h.writeJSON(w, status, res)
}

type batchRequest struct {
	Transactions []ledger.TransactionInput `json:"transactions"`
}

// CreateTransactionManyHandler handles POST /ledger/transactions/batch.
// Per-item failures are reported in the body, the request itself succeeds.
func (h *HandlerProvider) CreateTransactionManyHandler(w http.ResponseWriter, r *http.Request) {
	var req batchRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	switch {
	case len(req.Transactions) == 0:
		h.writeDomainError(w, r, &domain.ErrValidation{Field: "transactions", Message: "must not be empty"})

		return
	case len(req.Transactions) > maxBatchItems:
		h.writeDomainError(w, r, &domain.ErrValidation{
			Field:   "transactions",
			Message: "at most " + strconv.Itoa(maxBatchItems) + " items per batch",
		})

		return
	}

	res, err := h.Ledger.CreateTransactionMany(r.Context(), req.Transactions)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// RecordPurchaseHandler handles POST /ledger/purchases.
func (h *HandlerProvider) RecordPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	var in ledger.PurchaseInput

	err := decodeJSON(w, r, &in)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	res, err := h.Ledger.RecordPurchase(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}

	h.writeJSON(w, status, res)
}

// PreviewBonusHandler handles GET /bonus?buzzAmount=&purchasesMultiplier=.
func (h *HandlerProvider) PreviewBonusHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	buzz, err := strconv.ParseInt(q.Get("buzzAmount"), 10, 64)
	if err != nil {
		h.writeDomainError(w, r, &domain.ErrValidation{Field: "buzzAmount", Message: "must be an integer"})

		return
	}

	pm := decimal.NewFromInt(1)

	if raw := q.Get("purchasesMultiplier"); raw != "" {
		pm, err = decimal.NewFromString(raw)
		if err != nil {
			h.writeDomainError(w, r, &domain.ErrValidation{Field: "purchasesMultiplier", Message: "must be a decimal"})

			return
		}
	}

	res, err := h.Ledger.PreviewBonus(buzz, pm)
	if err != nil {
		h.writeDomainError(w, r, err)

		return
	}

	h.writeJSON(w, http.StatusOK, res)
}
