package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fastprodman/buzzledger/internal/api"
	"github.com/fastprodman/buzzledger/internal/auth"
	"github.com/fastprodman/buzzledger/internal/clients/orchestrator"
	"github.com/fastprodman/buzzledger/internal/infra/kvstore"
	"github.com/fastprodman/buzzledger/internal/infra/logging"
	"github.com/fastprodman/buzzledger/internal/infra/metrics"
	"github.com/fastprodman/buzzledger/internal/infra/pgutils"
	"github.com/fastprodman/buzzledger/internal/infra/resilience"
	"github.com/fastprodman/buzzledger/internal/infra/tracing"
	"github.com/fastprodman/buzzledger/internal/services/auction"
	"github.com/fastprodman/buzzledger/internal/services/ledger"
	"github.com/fastprodman/buzzledger/internal/services/ratelimit"
	"github.com/fastprodman/buzzledger/internal/services/redeem"
	"github.com/fastprodman/buzzledger/internal/settings"
	"github.com/fastprodman/buzzledger/pkg/envconf"
	"github.com/fastprodman/buzzledger/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	//nolint:errcheck
	defer logger.Sync()

	queue := shutdownqueue.New()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := queue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	queue.Add("tracing", shutdownTracing)

	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	queue.Add("postgres", func(context.Context) error { return db.Close() })

	store, err := kvstore.NewRedisStore(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("open redis: %w", err)
	}

	queue.Add("redis", func(context.Context) error { return store.Close() })

	conf, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	tiers, err := conf.BonusTiers()
	if err != nil {
		return err
	}

	m := metrics.New()

	// --- Services ---
	ledgerSvc, err := ledger.New(db, ledger.Config{
		BatchWorkers:     cfg.Ledger.BatchWorkers,
		BalanceCacheSize: cfg.Ledger.BalanceCacheSize,
		BalanceCacheTTL:  cfg.Ledger.BalanceCacheTTL,
		Tiers:            tiers,
		Logger:           logger.Named("ledger"),
		Metrics:          m,
	})
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}

	queue.Add("ledger", func(context.Context) error { return ledgerSvc.Close() })

	limiter := ratelimit.New(store, ratelimit.Config{
		Name:            "redeem-attempts",
		Source:          redeemLimit(cfg, logger),
		RefreshInterval: cfg.RateLimit.RefreshInterval,
		Logger:          logger,
	})

	redeemSvc := redeem.New(db, ledgerSvc, redeem.Config{
		Limiter: limiter,
		Logger:  logger.Named("redeem"),
		Metrics: m,
	})

	policy, err := auction.ParseRefundPolicy(cfg.Auction.RefundPolicy)
	if err != nil {
		return fmt.Errorf("auction config: %w", err)
	}

	auctionSvc, err := auction.New(db, ledgerSvc, auction.Config{
		BiddingEnabled: cfg.Auction.BiddingEnabled,
		MinimumBid:     cfg.Auction.MinimumBid,
		RefundPolicy:   policy,
		Logger:         logger.Named("auction"),
		Metrics:        m,
	})
	if err != nil {
		return fmt.Errorf("init auction: %w", err)
	}

	authn, err := auth.New(cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	deps := api.Deps{
		Ledger:    ledgerSvc,
		Auctions:  auctionSvc,
		Codes:     redeemSvc,
		Retryable: orchestrator.Retryable,
		Retry: resilience.Config{
			MaxRetries:     cfg.Orchestrator.MaxRetries,
			InitialBackoff: cfg.Orchestrator.Backoff,
		},
		Auth:        authn,
		Metrics:     m,
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
	}

	if cfg.Orchestrator.Host != "" {
		deps.PriorityVolume = orchestrator.New(cfg.Orchestrator, nil, resilience.NewCircuitBreaker("orchestrator"))
	} else {
		logger.Warn("orchestrator host not set, priority volume disabled")
	}

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, deps)

	queue.Add("http", func(c context.Context) error {
		logger.Info("shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	logger.Info("API started", zap.Uint16("port", cfg.Port))

	select {
	case <-ctx.Done():
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

// redeemLimit prefers the settings file and falls back to the environment
// when the file is absent or sets no limit.
func redeemLimit(cfg *apiConfig, logger *zap.Logger) ratelimit.LimitSource {
	file := settings.File{Path: cfg.SettingsPath}
	fallback := cfg.RateLimit.RedeemAttemptsPerDay

	return ratelimit.LimitFunc(func(ctx context.Context) (int64, error) {
		if file.Path == "" {
			return fallback, nil
		}

		n, err := file.RedeemAttemptsPerDay(ctx)
		if err != nil {
			logger.Warn("read redeem limit from settings", zap.Error(err))

			return fallback, nil
		}

		if n <= 0 {
			return fallback, nil
		}

		return n, nil
	})
}
