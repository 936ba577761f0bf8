package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fastprodman/buzzledger/internal/auth"
	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/metrics"
	"github.com/fastprodman/buzzledger/internal/infra/resilience"
	"github.com/fastprodman/buzzledger/internal/services/bonus"
	"github.com/fastprodman/buzzledger/internal/services/ledger"
	"github.com/fastprodman/buzzledger/internal/services/redeem"
)

type LedgerService interface {
	CreateTransaction(ctx context.Context, in ledger.TransactionInput) (ledger.Result, error)
	CreateTransactionMany(ctx context.Context, inputs []ledger.TransactionInput) (ledger.BatchResult, error)
	RecordPurchase(ctx context.Context, in ledger.PurchaseInput) (ledger.PurchaseResult, error)
	PreviewBonus(buzzAmount int64, purchasesMultiplier decimal.Decimal) (bonus.Result, error)
	GetUserBalance(ctx context.Context, userID int64) (int64, error)
	ListUserTransactions(ctx context.Context, userID int64, limit int) ([]domain.Transaction, error)
}

type AuctionService interface {
	GetAll(ctx context.Context) ([]domain.Auction, error)
	GetBySlug(ctx context.Context, slug string) (domain.AuctionDetail, error)
	GetMyBids(ctx context.Context, userID int64) ([]domain.Bid, error)
	GetMyRecurringBids(ctx context.Context, userID int64) ([]domain.RecurringBid, error)
	CreateBid(ctx context.Context, userID, auctionID, amount int64) (domain.Bid, error)
	DeleteBid(ctx context.Context, userID, bidID int64) (domain.Bid, error)
	CreateRecurringBid(ctx context.Context, userID, auctionID, amount int64) (domain.RecurringBid, error)
	DeleteRecurringBid(ctx context.Context, userID, id int64) error
	TogglePauseRecurringBid(ctx context.Context, userID, id int64) (domain.RecurringBid, error)
}

type RedeemService interface {
	Consume(ctx context.Context, code string, userID int64) (redeem.ConsumeResult, error)
	Create(ctx context.Context, in redeem.CreateCodesInput) ([]domain.RedeemableCode, error)
	Delete(ctx context.Context, code string) error
}

type PriorityVolumeReporter interface {
	GetPriorityVolume(ctx context.Context) ([]domain.PriorityVolume, error)
}

type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// Deps are the services behind the HTTP surface.
type Deps struct {
	Ledger         LedgerService
	Auctions       AuctionService
	Codes          RedeemService
	PriorityVolume PriorityVolumeReporter

	// Retryable decides which priority volume failures are retried.
	Retryable   func(error) bool
	Retry       resilience.Config
	Auth        TokenVerifier
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	CORSOrigins []string
}

// HandlerProvider exposes the services as HTTP handlers.
type HandlerProvider struct {
	Deps
}

func NewHandler(deps Deps) *HandlerProvider {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	return &HandlerProvider{Deps: deps}
}

// --- Helpers ---

const maxBodyBytes = 1 << 20

func (h *HandlerProvider) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.Logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

func (h *HandlerProvider) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a single JSON object of at most 1MB and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &domain.ErrValidation{Field: "body", Message: "empty body"}
		}

		return &domain.ErrValidation{Field: "body", Message: "invalid JSON"}
	}

	return nil
}

// parseIDParam reads a positive integer chi path parameter.
func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ErrValidation{Field: name, Message: fmt.Sprintf("invalid %s %q", name, raw)}
	}

	return id, nil
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())

	return p
}
