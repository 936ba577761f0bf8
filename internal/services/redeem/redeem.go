// Package redeem turns one-time codes into Buzz credits from the central bank.
// Failed attempts count against a daily per-user limit; a successful redemption
// clears the user's count.
package redeem

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/metrics"
	"github.com/fastprodman/buzzledger/internal/infra/pgutils"
	"github.com/fastprodman/buzzledger/internal/repos/codes"
	pgcodes "github.com/fastprodman/buzzledger/internal/repos/codes/postgres"
	"github.com/fastprodman/buzzledger/internal/services/ledger"
)

const (
	DefaultPrefix   = "BUZZ"
	MaxCodesPerCall = 1000
	insertAttempts  = 3
)

var prefixRe = regexp.MustCompile(`^[A-Z0-9]{1,12}$`)

// Limiter gates consume attempts per user.
type Limiter interface {
	Increment(ctx context.Context, key string) (int64, error)
	Check(ctx context.Context, key string) error
	Clear(ctx context.Context, key string) error
}

type Config struct {
	Limiter Limiter
	Now     func() time.Time
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type Service struct {
	db      *sql.DB
	ledger  *ledger.Service
	codes   codes.Codes
	limiter Limiter
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(db *sql.DB, ledgerSvc *ledger.Service, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	return &Service{
		db:      db,
		ledger:  ledgerSvc,
		codes:   pgcodes.New(db),
		limiter: cfg.Limiter,
		now:     cfg.Now,
		logger:  cfg.Logger.Named("redeem"),
		metrics: cfg.Metrics,
	}
}

type ConsumeResult struct {
	Code        domain.RedeemableCode `json:"code"`
	Transaction domain.Transaction    `json:"transaction"`
}

// Consume redeems code for userID.
//
// 1) Count the attempt and stop if the user is over the daily limit.
// 2) Look the code up.
// 3) Mark it redeemed and credit the user in one database transaction.
// 4) Clear the user's attempt count.
func (s *Service) Consume(ctx context.Context, code string, userID int64) (ConsumeResult, error) {
	code = normalize(code)
	if code == "" {
		return ConsumeResult{}, &domain.ErrValidation{Field: "code", Message: "is required"}
	}

	key := strconv.FormatInt(userID, 10)

	// 1) Rate limit
	_, err := s.limiter.Increment(ctx, key)
	if err != nil {
		return ConsumeResult{}, &domain.ErrExternalService{Service: "kvstore", Err: err}
	}

	err = s.limiter.Check(ctx, key)
	if err != nil {
		var rl *domain.ErrRateLimited
		if errors.As(err, &rl) {
			s.metrics.IncRedeemAttempt("rate_limited")

			return ConsumeResult{}, err
		}

		return ConsumeResult{}, &domain.ErrExternalService{Service: "kvstore", Err: err}
	}

	// 2) Lookup
	rc, err := s.codes.Get(ctx, nil, code)
	if err != nil {
		if errors.Is(err, codes.ErrCodeNotFound) {
			s.metrics.IncRedeemAttempt("not_found")

			return ConsumeResult{}, &domain.ErrNotFound{Resource: "redeemable code", ID: code}
		}

		return ConsumeResult{}, fmt.Errorf("get code: %w", err)
	}

	if rc.Redeemed() {
		s.metrics.IncRedeemAttempt("already_redeemed")

		return ConsumeResult{}, domain.ErrAlreadyRedeemed
	}

	// 3) Redeem and credit atomically
	var out ConsumeResult

	err = s.ledger.WithTx(ctx, func(tx *ledger.Tx) error {
		redeemed, err := s.codes.MarkRedeemed(ctx, tx.SQL(), code, userID, s.now().UTC())
		if err != nil {
			return err
		}

		acct, err := tx.UserAccount(ctx, userID)
		if err != nil {
			return err
		}

		res, err := tx.CreateTransaction(ctx, ledger.TransactionInput{
			Type:                  domain.TxCredit,
			FromAccountID:         domain.CentralBankAccountID,
			ToAccountID:           acct.ID,
			Amount:                redeemed.BuzzAmount,
			ExternalTransactionID: "redeem:" + code,
			Description:           "Redeemed code " + code,
		})
		if err != nil {
			return err
		}

		out = ConsumeResult{Code: redeemed, Transaction: res.Transaction}

		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyRedeemed):
			s.metrics.IncRedeemAttempt("already_redeemed")

			return ConsumeResult{}, err
		case errors.Is(err, codes.ErrCodeNotFound):
			s.metrics.IncRedeemAttempt("not_found")

			return ConsumeResult{}, &domain.ErrNotFound{Resource: "redeemable code", ID: code}
		}

		s.metrics.IncRedeemAttempt("error")

		return ConsumeResult{}, fmt.Errorf("redeem code: %w", err)
	}

	s.metrics.IncRedeemAttempt("ok")

	// 4) The credit is committed; a stale attempt count only costs the user retries.
	err = s.limiter.Clear(ctx, key)
	if err != nil {
		s.logger.Error("clear redeem attempts", zap.Int64("user_id", userID), zap.Error(err))
	}

	return out, nil
}

type CreateCodesInput struct {
	Quantity   int    `json:"quantity"`
	BuzzAmount int64  `json:"buzzAmount"`
	Prefix     string `json:"prefix,omitempty"`
}

// Create issues Quantity unredeemed codes of the form PREFIX-XXXXXXXX-XXXXXXXX.
func (s *Service) Create(ctx context.Context, in CreateCodesInput) ([]domain.RedeemableCode, error) {
	prefix := strings.ToUpper(strings.TrimSpace(in.Prefix))
	if prefix == "" {
		prefix = DefaultPrefix
	}

	switch {
	case in.Quantity <= 0 || in.Quantity > MaxCodesPerCall:
		return nil, &domain.ErrValidation{
			Field:   "quantity",
			Message: fmt.Sprintf("must be between 1 and %d", MaxCodesPerCall),
		}
	case in.BuzzAmount <= 0:
		return nil, &domain.ErrValidation{Field: "buzzAmount", Message: "must be positive"}
	case !prefixRe.MatchString(prefix):
		return nil, &domain.ErrValidation{Field: "prefix", Message: "must be 1-12 letters or digits"}
	}

	for attempt := 1; ; attempt++ {
		batch := make([]domain.RedeemableCode, in.Quantity)
		for i := range batch {
			batch[i] = domain.RedeemableCode{Code: newCode(prefix), BuzzAmount: in.BuzzAmount}
		}

		err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			return s.codes.InsertMany(ctx, tx, batch)
		})
		if err == nil {
			s.logger.Info("codes created",
				zap.Int("quantity", in.Quantity),
				zap.Int64("buzz_amount", in.BuzzAmount),
				zap.String("prefix", prefix),
			)

			return batch, nil
		}

		if !errors.Is(err, codes.ErrCodeExists) || attempt == insertAttempts {
			return nil, fmt.Errorf("create codes: %w", err)
		}
	}
}

// Delete removes an unredeemed code.
func (s *Service) Delete(ctx context.Context, code string) error {
	code = normalize(code)

	err := s.codes.DeleteUnredeemed(ctx, code)
	if err != nil {
		if errors.Is(err, codes.ErrCodeNotFound) {
			return &domain.ErrNotFound{Resource: "redeemable code", ID: code}
		}

		if errors.Is(err, domain.ErrAlreadyRedeemed) {
			return err
		}

		return fmt.Errorf("delete code: %w", err)
	}

	return nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func newCode(prefix string) string {
	hex := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))

	return prefix + "-" + hex[:8] + "-" + hex[8:16]
}
