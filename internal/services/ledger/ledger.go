package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/metrics"
	"github.com/fastprodman/buzzledger/internal/infra/pgutils"
	"github.com/fastprodman/buzzledger/internal/repos/accounts"
	pgaccounts "github.com/fastprodman/buzzledger/internal/repos/accounts/postgres"
	"github.com/fastprodman/buzzledger/internal/repos/transactions"
	pgtransactions "github.com/fastprodman/buzzledger/internal/repos/transactions/postgres"
	"github.com/fastprodman/buzzledger/internal/services/bonus"
)

var tracer = otel.Tracer("github.com/fastprodman/buzzledger/internal/services/ledger")

const (
	defaultBatchWorkers = 8
	defaultCacheSize    = 10_000
	defaultCacheTTL     = 5 * time.Second
	defaultListLimit    = 50
	maxListLimit        = 200
)

type Config struct {
	BatchWorkers     int
	BalanceCacheSize int
	Tiers            []bonus.Tier
	Logger           *zap.Logger
	Metrics          *metrics.Metrics

	// BalanceCacheTTL bounds how long commits made by other replicas go unseen.
	BalanceCacheTTL time.Duration
}

type Service struct {
	db      *sql.DB
	accts   accounts.Accounts
	txns    transactions.Transactions
	cache   *balanceCache
	tiers   []bonus.Tier
	workers int
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(db *sql.DB, cfg Config) (*Service, error) {
	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = defaultBatchWorkers
	}

	if cfg.BalanceCacheSize <= 0 {
		cfg.BalanceCacheSize = defaultCacheSize
	}

	if cfg.BalanceCacheTTL <= 0 {
		cfg.BalanceCacheTTL = defaultCacheTTL
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	err := bonus.ValidateTiers(cfg.Tiers)
	if err != nil {
		return nil, fmt.Errorf("bonus tiers: %w", err)
	}

	cache, err := newBalanceCache(cfg.BalanceCacheSize, cfg.BalanceCacheTTL, nil)
	if err != nil {
		return nil, fmt.Errorf("balance cache: %w", err)
	}

	return &Service{
		db:      db,
		accts:   pgaccounts.New(db),
		txns:    pgtransactions.New(db),
		cache:   cache,
		tiers:   cfg.Tiers,
		workers: cfg.BatchWorkers,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}, nil
}

// Close drops the balance cache. The service must not be used afterwards.
func (s *Service) Close() error {
	s.cache.purge()

	return nil
}

// Tx is a ledger view of one database transaction. Other services use it to
// commit their own rows together with the ledger entries they depend on.
// A Tx must not be shared between goroutines.
type Tx struct {
	svc     *Service
	sqlTx   *sql.Tx
	touched map[int64]struct{}
}

func (t *Tx) SQL() *sql.Tx {
	return t.sqlTx
}

// WithTx runs fn in one database transaction. Balances of every account a
// committed transaction touched are invalidated before WithTx returns.
func (s *Service) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx := &Tx{svc: s, touched: make(map[int64]struct{})}

	err := pgutils.WithTx(ctx, s.db, func(sqlTx *sql.Tx) error {
		tx.sqlTx = sqlTx

		return fn(tx)
	})
	if err != nil {
		return err
	}

	if len(tx.touched) > 0 {
		ids := make([]int64, 0, len(tx.touched))
		for id := range tx.touched {
			ids = append(ids, id)
		}

		s.cache.invalidate(ids...)
	}

	return nil
}

// CreateTransaction records a single transfer in its own database transaction.
func (s *Service) CreateTransaction(ctx context.Context, in TransactionInput) (Result, error) {
	ctx, span := tracer.Start(ctx, "ledger.CreateTransaction")
	defer span.End()

	span.SetAttributes(
		attribute.String("ledger.type", string(in.Type)),
		attribute.Int64("ledger.amount", in.Amount),
	)

	var res Result

	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error

		res, err = tx.CreateTransaction(ctx, in)

		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return Result{}, err
	}

	span.SetAttributes(attribute.Bool("ledger.replayed", res.Replayed))

	return res, nil
}

// CreateTransaction validates in, then inside the transaction:
//
// 1) Lock the source account when it belongs to a user.
// 2) Return the stored row if the external id was already recorded.
// 3) Reject user debits larger than the running sum.
// 4) Insert; a concurrent insert of the same external id becomes a replay.
func (t *Tx) CreateTransaction(ctx context.Context, in TransactionInput) (Result, error) {
	s := t.svc

	err := validateInput(in)
	if err != nil {
		s.metrics.IncTransaction(string(in.Type), "invalid")

		return Result{}, err
	}

	from, err := s.accts.Get(ctx, t.sqlTx, in.FromAccountID)
	if err != nil {
		return Result{}, s.accountErr(err, in.FromAccountID)
	}

	userOwned := from.OwnerType == domain.OwnerUser

	// 1) Serialize debits from the same user account
	if userOwned {
		_, err = s.accts.Lock(ctx, t.sqlTx, from.ID)
		if err != nil {
			return Result{}, s.accountErr(err, from.ID)
		}
	}

	// 2) Replay
	if in.ExternalTransactionID != "" {
		existing, err := s.txns.GetByExternalID(ctx, t.sqlTx, in.ExternalTransactionID)
		if err == nil {
			return s.replayed(existing), nil
		}

		if !errors.Is(err, transactions.ErrTransactionNotFound) {
			return Result{}, fmt.Errorf("lookup external id: %w", err)
		}
	}

	// 3) Balance check against the running sum
	if userOwned {
		balance, err := s.accts.Balance(ctx, t.sqlTx, from.ID)
		if err != nil {
			return Result{}, fmt.Errorf("balance: %w", err)
		}

		if balance < in.Amount {
			s.metrics.IncTransaction(string(in.Type), "insufficient_funds")

			return Result{}, &domain.ErrInsufficientFunds{
				AccountID: from.ID,
				Available: balance,
				Required:  in.Amount,
			}
		}
	}

	// 4) Insert
	row := domain.Transaction{
		Type:          in.Type,
		FromAccountID: in.FromAccountID,
		ToAccountID:   in.ToAccountID,
		Amount:        in.Amount,
		Description:   in.Description,
	}
	if in.ExternalTransactionID != "" {
		ext := in.ExternalTransactionID
		row.ExternalTransactionID = &ext
	}

	stored, err := s.txns.Insert(ctx, t.sqlTx, row)

	switch {
	case err == nil:
	case errors.Is(err, transactions.ErrDuplicateTransaction):
		existing, err := s.txns.GetByExternalID(ctx, t.sqlTx, in.ExternalTransactionID)
		if err != nil {
			return Result{}, fmt.Errorf("load raced transaction: %w", err)
		}

		return s.replayed(existing), nil
	case errors.Is(err, transactions.ErrUnknownAccount):
		return Result{}, &domain.ErrNotFound{Resource: "account", ID: strconv.FormatInt(in.ToAccountID, 10)}
	default:
		s.metrics.IncTransaction(string(in.Type), "error")

		return Result{}, fmt.Errorf("insert transaction: %w", err)
	}

	t.touched[stored.FromAccountID] = struct{}{}
	t.touched[stored.ToAccountID] = struct{}{}

	s.metrics.IncTransaction(string(in.Type), "ok")

	return Result{Transaction: stored}, nil
}

// UserAccount returns the user's account, creating it inside the transaction on first use.
func (t *Tx) UserAccount(ctx context.Context, userID int64) (domain.Account, error) {
	a, err := t.svc.accts.GetOrCreate(ctx, t.sqlTx, domain.OwnerUser, userID)
	if err != nil {
		return domain.Account{}, fmt.Errorf("user account: %w", err)
	}

	return a, nil
}

// UserAccount returns the user's account, creating it on first use.
func (s *Service) UserAccount(ctx context.Context, userID int64) (domain.Account, error) {
	a, err := s.accts.FindByOwner(ctx, domain.OwnerUser, userID)
	if err == nil {
		return a, nil
	}

	if !errors.Is(err, accounts.ErrAccountNotFound) {
		return domain.Account{}, fmt.Errorf("find user account: %w", err)
	}

	err = s.WithTx(ctx, func(tx *Tx) error {
		a, err = tx.UserAccount(ctx, userID)

		return err
	})
	if err != nil {
		return domain.Account{}, err
	}

	return a, nil
}

// GetBalance serves the running sum of an account, cached until the next
// commit that touches it.
func (s *Service) GetBalance(ctx context.Context, accountID int64) (int64, error) {
	if b, ok := s.cache.get(accountID); ok {
		s.metrics.IncCacheLookup(true)

		return b, nil
	}

	s.metrics.IncCacheLookup(false)

	gen := s.cache.generation()

	_, err := s.accts.Get(ctx, nil, accountID)
	if err != nil {
		return 0, s.accountErr(err, accountID)
	}

	balance, err := s.accts.Balance(ctx, nil, accountID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}

	s.cache.fill(accountID, balance, gen)

	return balance, nil
}

// GetUserBalance is zero for users that never had an account.
func (s *Service) GetUserBalance(ctx context.Context, userID int64) (int64, error) {
	a, err := s.accts.FindByOwner(ctx, domain.OwnerUser, userID)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return 0, nil
		}

		return 0, fmt.Errorf("find user account: %w", err)
	}

	return s.GetBalance(ctx, a.ID)
}

// ListUserTransactions returns the newest transactions of the user's account.
func (s *Service) ListUserTransactions(ctx context.Context, userID int64, limit int) ([]domain.Transaction, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	a, err := s.accts.FindByOwner(ctx, domain.OwnerUser, userID)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return []domain.Transaction{}, nil
		}

		return nil, fmt.Errorf("find user account: %w", err)
	}

	out, err := s.txns.ListByAccount(ctx, a.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list user transactions: %w", err)
	}

	return out, nil
}

func (s *Service) replayed(t domain.Transaction) Result {
	s.metrics.IncTransaction(string(t.Type), "replayed")
	s.logger.Debug("transaction replayed",
		zap.Int64("id", t.ID),
		zap.Stringp("external_id", t.ExternalTransactionID),
	)

	return Result{Transaction: t, Replayed: true}
}

func (s *Service) accountErr(err error, id int64) error {
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return &domain.ErrNotFound{Resource: "account", ID: strconv.FormatInt(id, 10)}
	}

	return fmt.Errorf("account %d: %w", id, err)
}

func validateInput(in TransactionInput) error {
	switch {
	case in.Amount <= 0:
		return &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	case !in.Type.Valid():
		return &domain.ErrValidation{Field: "type", Message: fmt.Sprintf("unknown transaction type %q", in.Type)}
	case in.FromAccountID == in.ToAccountID:
		return &domain.ErrValidation{Field: "toAccountId", Message: "must differ from fromAccountId"}
	case len(in.ExternalTransactionID) > 255:
		return &domain.ErrValidation{Field: "externalTransactionId", Message: "must be at most 255 characters"}
	}

	return nil
}
