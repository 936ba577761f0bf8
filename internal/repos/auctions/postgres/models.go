package auctions

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/fastprodman/buzzledger/internal/domain"
)

type auctionModel struct {
	bun.BaseModel `bun:"table:auctions,alias:a"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Slug       string    `bun:"slug,notnull"`
	Ecosystem  string    `bun:"ecosystem,notnull"`
	StartAt    time.Time `bun:"start_at,notnull"`
	EndAt      time.Time `bun:"end_at,notnull"`
	MinimumBid int64     `bun:"minimum_bid,notnull"`
}

func (m *auctionModel) toDomain() domain.Auction {
	return domain.Auction{
		ID:         m.ID,
		Slug:       m.Slug,
		Ecosystem:  m.Ecosystem,
		StartAt:    m.StartAt,
		EndAt:      m.EndAt,
		MinimumBid: m.MinimumBid,
	}
}

type bidModel struct {
	bun.BaseModel `bun:"table:bids,alias:b"`

	ID                  int64     `bun:"id,pk,autoincrement"`
	UserID              int64     `bun:"user_id,notnull"`
	AuctionID           int64     `bun:"auction_id,notnull"`
	Amount              int64     `bun:"amount,notnull"`
	Status              string    `bun:"status,notnull"`
	TransactionID       int64     `bun:"transaction_id,notnull"`
	RefundTransactionID *int64    `bun:"refund_transaction_id"`
	CreatedAt           time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func bidFromDomain(b domain.Bid) *bidModel {
	return &bidModel{
		ID:                  b.ID,
		UserID:              b.UserID,
		AuctionID:           b.AuctionID,
		Amount:              b.Amount,
		Status:              string(b.Status),
		TransactionID:       b.TransactionID,
		RefundTransactionID: b.RefundTransactionID,
		CreatedAt:           b.CreatedAt,
	}
}

func (m *bidModel) toDomain() domain.Bid {
	return domain.Bid{
		ID:                  m.ID,
		UserID:              m.UserID,
		AuctionID:           m.AuctionID,
		Amount:              m.Amount,
		Status:              domain.BidStatus(m.Status),
		TransactionID:       m.TransactionID,
		RefundTransactionID: m.RefundTransactionID,
		CreatedAt:           m.CreatedAt,
	}
}

type recurringBidModel struct {
	bun.BaseModel `bun:"table:recurring_bids,alias:rb"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    int64     `bun:"user_id,notnull"`
	AuctionID int64     `bun:"auction_id,notnull"`
	Amount    int64     `bun:"amount,notnull"`
	Paused    bool      `bun:"paused,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (m *recurringBidModel) toDomain() domain.RecurringBid {
	return domain.RecurringBid{
		ID:        m.ID,
		UserID:    m.UserID,
		AuctionID: m.AuctionID,
		Amount:    m.Amount,
		Paused:    m.Paused,
		CreatedAt: m.CreatedAt,
	}
}

func bidsToDomain(models []bidModel) []domain.Bid {
	out := make([]domain.Bid, 0, len(models))
	for i := range models {
		out = append(out, models[i].toDomain())
	}

	return out
}
