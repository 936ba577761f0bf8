package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fastprodman/buzzledger/internal/auth"
	"github.com/fastprodman/buzzledger/internal/infra/logging"
	"github.com/fastprodman/buzzledger/internal/infra/tracing"
)

// NewRouter builds the chi router with every API endpoint registered.
func NewRouter(deps Deps) http.Handler {
	h := NewHandler(deps)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(tracing.Middleware)
	r.Use(h.instrument)

	if len(h.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", h.Metrics.Handler())

	r.Get("/auctions", h.GetAuctionsHandler)
	r.Get("/auctions/{slug}", h.GetAuctionBySlugHandler)
	r.Get("/bonus", h.PreviewBonusHandler)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Group(func(r chi.Router) {
			r.Use(h.requireRole(auth.RoleUser))

			r.Get("/me/balance", h.GetMyBalanceHandler)
			r.Get("/me/transactions", h.ListMyTransactionsHandler)
			r.Get("/me/bids", h.GetMyBidsHandler)
			r.Get("/me/recurring-bids", h.GetMyRecurringBidsHandler)

			r.Post("/bids", h.CreateBidHandler)
			r.Delete("/bids/{id}", h.DeleteBidHandler)

			r.Post("/recurring-bids", h.CreateRecurringBidHandler)
			r.Delete("/recurring-bids/{id}", h.DeleteRecurringBidHandler)
			r.Post("/recurring-bids/{id}/toggle-pause", h.TogglePauseRecurringBidHandler)

			r.Post("/redeemable-codes/consume", h.ConsumeCodeHandler)
			r.Get("/priority-volume", h.GetPriorityVolumeHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireRole(auth.RoleModerator))

			r.Post("/redeemable-codes", h.CreateCodesHandler)
			r.Delete("/redeemable-codes/{code}", h.DeleteCodeHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireRole(auth.RoleSystem))

			r.Post("/ledger/transactions", h.CreateTransactionHandler)
			r.Post("/ledger/transactions/batch", h.CreateTransactionManyHandler)
			r.Post("/ledger/purchases", h.RecordPurchaseHandler)
		})
	})

	return r
}
