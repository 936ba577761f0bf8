package auctions

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/pgutils"
)

var (
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrBidNotFound          = errors.New("bid not found")
	ErrRecurringBidNotFound = errors.New("recurring bid not found")
)

type Auctions interface {
	List(ctx context.Context) ([]domain.Auction, error)
	Get(ctx context.Context, q pgutils.Querier, id int64) (domain.Auction, error)
	GetBySlug(ctx context.Context, slug string) (domain.Auction, error)

	// PendingBids are ordered by amount, highest first.
	PendingBids(ctx context.Context, auctionID int64) ([]domain.Bid, error)
	BidsByUser(ctx context.Context, userID int64) ([]domain.Bid, error)
	InsertBid(ctx context.Context, tx *sql.Tx, bid domain.Bid) (domain.Bid, error)
	LockBid(ctx context.Context, tx *sql.Tx, id int64) (domain.Bid, error)
	MarkBidRefunded(ctx context.Context, tx *sql.Tx, id, refundTransactionID int64) (domain.Bid, error)

	RecurringBidsByUser(ctx context.Context, userID int64) ([]domain.RecurringBid, error)
	InsertRecurringBid(ctx context.Context, rb domain.RecurringBid) (domain.RecurringBid, error)
	// DeleteRecurringBid and TogglePauseRecurringBid only touch rows owned by userID.
	DeleteRecurringBid(ctx context.Context, userID, id int64) error
	TogglePauseRecurringBid(ctx context.Context, userID, id int64) (domain.RecurringBid, error)
}
