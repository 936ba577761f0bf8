// Package auction turns Buzz into generation priority. Bids are charged to the
// central bank when placed and refunded when withdrawn; allocation at cycle
// close happens elsewhere.
package auction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/metrics"
	"github.com/fastprodman/buzzledger/internal/repos/auctions"
	pgauctions "github.com/fastprodman/buzzledger/internal/repos/auctions/postgres"
	"github.com/fastprodman/buzzledger/internal/services/ledger"
)

var tracer = otel.Tracer("github.com/fastprodman/buzzledger/internal/services/auction")

// RefundPolicy decides until when a pending bid may be withdrawn.
type RefundPolicy string

const (
	// RefundBeforeEnd refuses withdrawals once the auction has ended, since
	// the cycle close may already be allocating its bids.
	RefundBeforeEnd RefundPolicy = "before_end"
	// RefundWhilePending allows withdrawals for as long as the bid is pending.
	RefundWhilePending RefundPolicy = "while_pending"
)

func ParseRefundPolicy(s string) (RefundPolicy, error) {
	switch RefundPolicy(s) {
	case "", RefundBeforeEnd:
		return RefundBeforeEnd, nil
	case RefundWhilePending:
		return RefundWhilePending, nil
	default:
		return "", fmt.Errorf("unknown refund policy %q", s)
	}
}

type Config struct {
	BiddingEnabled bool
	// MinimumBid applies on top of each auction's own minimum.
	MinimumBid   int64
	RefundPolicy RefundPolicy
	Now          func() time.Time
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

type Service struct {
	ledger  *ledger.Service
	repo    auctions.Auctions
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(db *sql.DB, ledgerSvc *ledger.Service, cfg Config) (*Service, error) {
	policy, err := ParseRefundPolicy(string(cfg.RefundPolicy))
	if err != nil {
		return nil, err
	}

	cfg.RefundPolicy = policy

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
		ledger:  ledgerSvc,
		repo:    pgauctions.New(db),
		cfg:     cfg,
		logger:  cfg.Logger.Named("auction"),
		metrics: cfg.Metrics,
	}, nil
}

func (s *Service) GetAll(ctx context.Context) ([]domain.Auction, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("get auctions: %w", err)
	}

	return out, nil
}

// GetBySlug returns the auction with its pending bids, highest first.
func (s *Service) GetBySlug(ctx context.Context, slug string) (domain.AuctionDetail, error) {
	a, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, auctions.ErrAuctionNotFound) {
			return domain.AuctionDetail{}, &domain.ErrNotFound{Resource: "auction", ID: slug}
		}

		return domain.AuctionDetail{}, fmt.Errorf("get auction: %w", err)
	}

	bids, err := s.repo.PendingBids(ctx, a.ID)
	if err != nil {
		return domain.AuctionDetail{}, fmt.Errorf("get pending bids: %w", err)
	}

	detail := domain.AuctionDetail{Auction: a, Bids: bids, BidCount: len(bids)}
	for _, b := range bids {
		detail.PendingAmount += b.Amount
	}

	return detail, nil
}

func (s *Service) GetMyBids(ctx context.Context, userID int64) ([]domain.Bid, error) {
	out, err := s.repo.BidsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get my bids: %w", err)
	}

	return out, nil
}

func (s *Service) GetMyRecurringBids(ctx context.Context, userID int64) ([]domain.RecurringBid, error) {
	out, err := s.repo.RecurringBidsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get my recurring bids: %w", err)
	}

	return out, nil
}

// biddable loads the auction and checks amount against both minimums.
func (s *Service) biddable(ctx context.Context, auctionID, amount int64) (domain.Auction, error) {
	if amount <= 0 {
		return domain.Auction{}, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}

	a, err := s.repo.Get(ctx, nil, auctionID)
	if err != nil {
		if errors.Is(err, auctions.ErrAuctionNotFound) {
			return domain.Auction{}, &domain.ErrValidation{Field: "auctionId", Message: "auction does not exist"}
		}

		return domain.Auction{}, fmt.Errorf("get auction: %w", err)
	}

	minimum := max(s.cfg.MinimumBid, a.MinimumBid)
	if amount < minimum {
		return domain.Auction{}, &domain.ErrValidation{
			Field:   "amount",
			Message: fmt.Sprintf("must be at least %d", minimum),
		}
	}

	return a, nil
}

// CreateBid charges amount to the user and records a pending bid. Both
// happen in one database transaction or not at all.
func (s *Service) CreateBid(ctx context.Context, userID, auctionID, amount int64) (domain.Bid, error) {
	ctx, span := tracer.Start(ctx, "auction.CreateBid")
	defer span.End()

	span.SetAttributes(attribute.Int64("auction.id", auctionID), attribute.Int64("bid.amount", amount))

	bid, err := s.createBid(ctx, userID, auctionID, amount)
	if err != nil {
		s.metrics.IncBid("create", resultLabel(err))
		span.RecordError(err)

		return domain.Bid{}, err
	}

	s.metrics.IncBid("create", "ok")

	return bid, nil
}

func (s *Service) createBid(ctx context.Context, userID, auctionID, amount int64) (domain.Bid, error) {
	if !s.cfg.BiddingEnabled {
		return domain.Bid{}, domain.ErrBiddingDisabled
	}

	a, err := s.biddable(ctx, auctionID, amount)
	if err != nil {
		return domain.Bid{}, err
	}

	if !a.Open(s.cfg.Now()) {
		return domain.Bid{}, &domain.ErrValidation{Field: "auctionId", Message: "auction is not open for bids"}
	}

	var bid domain.Bid

	err = s.ledger.WithTx(ctx, func(tx *ledger.Tx) error {
		acct, err := tx.UserAccount(ctx, userID)
		if err != nil {
			return err
		}

		charge, err := tx.CreateTransaction(ctx, ledger.TransactionInput{
			Type:                  domain.TxBidCharge,
			FromAccountID:         acct.ID,
			ToAccountID:           domain.CentralBankAccountID,
			Amount:                amount,
			ExternalTransactionID: "bid:" + uuid.NewString(),
			Description:           "Bid on " + a.Slug,
		})
		if err != nil {
			return err
		}

		bid, err = s.repo.InsertBid(ctx, tx.SQL(), domain.Bid{
			UserID:        userID,
			AuctionID:     a.ID,
			Amount:        amount,
			Status:        domain.BidPending,
			TransactionID: charge.Transaction.ID,
		})
		if err != nil {
			return fmt.Errorf("insert bid: %w", err)
		}

		return nil
	})
	if err != nil {
		return domain.Bid{}, err
	}

	s.logger.Info("bid created",
		zap.Int64("bid_id", bid.ID),
		zap.Int64("user_id", userID),
		zap.String("auction", a.Slug),
		zap.Int64("amount", amount),
	)

	return bid, nil
}

// DeleteBid withdraws a pending bid and refunds its charge.
func (s *Service) DeleteBid(ctx context.Context, userID, bidID int64) (domain.Bid, error) {
	ctx, span := tracer.Start(ctx, "auction.DeleteBid")
	defer span.End()

	var out domain.Bid

	err := s.ledger.WithTx(ctx, func(tx *ledger.Tx) error {
		bid, err := s.repo.LockBid(ctx, tx.SQL(), bidID)
		if err != nil {
			if errors.Is(err, auctions.ErrBidNotFound) {
				return bidNotFound(bidID)
			}

			return err
		}

		// Someone else's bid looks exactly like a missing one.
		if bid.UserID != userID {
			return bidNotFound(bidID)
		}

		switch bid.Status {
		case domain.BidAllocated:
			return domain.ErrAlreadyAllocated
		case domain.BidRefunded:
			return domain.ErrAlreadyRefunded
		}

		if s.cfg.RefundPolicy == RefundBeforeEnd {
			a, err := s.repo.Get(ctx, tx.SQL(), bid.AuctionID)
			if err != nil {
				return fmt.Errorf("get auction: %w", err)
			}

			if !s.cfg.Now().Before(a.EndAt) {
				return domain.ErrAuctionClosed
			}
		}

		acct, err := tx.UserAccount(ctx, userID)
		if err != nil {
			return err
		}

		refund, err := tx.CreateTransaction(ctx, ledger.TransactionInput{
			Type:                  domain.TxRefund,
			FromAccountID:         domain.CentralBankAccountID,
			ToAccountID:           acct.ID,
			Amount:                bid.Amount,
			ExternalTransactionID: "bid-refund:" + strconv.FormatInt(bid.ID, 10),
			Description:           "Bid refund",
		})
		if err != nil {
			return err
		}

		out, err = s.repo.MarkBidRefunded(ctx, tx.SQL(), bid.ID, refund.Transaction.ID)
		if err != nil {
			return fmt.Errorf("mark bid refunded: %w", err)
		}

		return nil
	})
	if err != nil {
		s.metrics.IncBid("delete", resultLabel(err))

		return domain.Bid{}, err
	}

	s.metrics.IncBid("delete", "ok")

	return out, nil
}

func (s *Service) CreateRecurringBid(ctx context.Context, userID, auctionID, amount int64) (domain.RecurringBid, error) {
	if !s.cfg.BiddingEnabled {
		return domain.RecurringBid{}, domain.ErrBiddingDisabled
	}

	_, err := s.biddable(ctx, auctionID, amount)
	if err != nil {
		return domain.RecurringBid{}, err
	}

	rb, err := s.repo.InsertRecurringBid(ctx, domain.RecurringBid{
		UserID:    userID,
		AuctionID: auctionID,
		Amount:    amount,
	})
	if err != nil {
		if errors.Is(err, auctions.ErrAuctionNotFound) {
			return domain.RecurringBid{}, &domain.ErrValidation{Field: "auctionId", Message: "auction does not exist"}
		}

		return domain.RecurringBid{}, fmt.Errorf("create recurring bid: %w", err)
	}

	s.metrics.IncBid("create_recurring", "ok")

	return rb, nil
}

func (s *Service) DeleteRecurringBid(ctx context.Context, userID, id int64) error {
	err := s.repo.DeleteRecurringBid(ctx, userID, id)
	if err != nil {
		if errors.Is(err, auctions.ErrRecurringBidNotFound) {
			return recurringBidNotFound(id)
		}

		return fmt.Errorf("delete recurring bid: %w", err)
	}

	return nil
}

func (s *Service) TogglePauseRecurringBid(ctx context.Context, userID, id int64) (domain.RecurringBid, error) {
	rb, err := s.repo.TogglePauseRecurringBid(ctx, userID, id)
	if err != nil {
		if errors.Is(err, auctions.ErrRecurringBidNotFound) {
			return domain.RecurringBid{}, recurringBidNotFound(id)
		}

		return domain.RecurringBid{}, fmt.Errorf("toggle recurring bid: %w", err)
	}

	return rb, nil
}

func bidNotFound(id int64) error {
	return &domain.ErrNotFound{Resource: "bid", ID: strconv.FormatInt(id, 10)}
}

func recurringBidNotFound(id int64) error {
	return &domain.ErrNotFound{Resource: "recurring bid", ID: strconv.FormatInt(id, 10)}
}

func resultLabel(err error) string {
	var (
		ve *domain.ErrValidation
		ie *domain.ErrInsufficientFunds
		nf *domain.ErrNotFound
	)

	switch {
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &ie):
		return "insufficient_funds"
	case errors.As(err, &nf):
		return "not_found"
	case errors.Is(err, domain.ErrBiddingDisabled):
		return "disabled"
	case errors.Is(err, domain.ErrAlreadyAllocated),
		errors.Is(err, domain.ErrAlreadyRefunded),
		errors.Is(err, domain.ErrAuctionClosed):
		return "conflict"
	default:
		return "error"
	}
}
