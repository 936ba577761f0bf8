package auctions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/pgutils"
	"github.com/fastprodman/buzzledger/internal/repos/auctions"
)

func (r *auctionsRepo) PendingBids(ctx context.Context, auctionID int64) ([]domain.Bid, error) {
	var models []bidModel

	err := r.db.NewSelect().
		Model(&models).
		Where("auction_id = ?", auctionID).
		Where("status = ?", domain.BidPending).
		Order("amount DESC", "id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending bids: %w", err)
	}

	return bidsToDomain(models), nil
}

func (r *auctionsRepo) BidsByUser(ctx context.Context, userID int64) ([]domain.Bid, error) {
	var models []bidModel

	err := r.db.NewSelect().
		Model(&models).
		Where("user_id = ?", userID).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user bids: %w", err)
	}

	return bidsToDomain(models), nil
}

func (r *auctionsRepo) InsertBid(ctx context.Context, tx *sql.Tx, bid domain.Bid) (domain.Bid, error) {
	m := bidFromDomain(bid)
	if m.Status == "" {
		m.Status = string(domain.BidPending)
	}

	_, err := r.db.NewInsert().
		Conn(tx).
		Model(m).
		ExcludeColumn("id").
		Returning("*").
		Exec(ctx)
	if err != nil {
		if pgutils.PgErrorCode(err) == pgutils.CodeForeignKeyViolation {
			return domain.Bid{}, auctions.ErrAuctionNotFound
		}

		return domain.Bid{}, fmt.Errorf("insert bid: %w", err)
	}

	return m.toDomain(), nil
}

// LockBid holds the bid row until tx ends so a refund cannot race the cycle close.
func (r *auctionsRepo) LockBid(ctx context.Context, tx *sql.Tx, id int64) (domain.Bid, error) {
	var m bidModel

	err := r.db.NewSelect().
		Conn(tx).
		Model(&m).
		Where("id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Bid{}, auctions.ErrBidNotFound
		}

		return domain.Bid{}, fmt.Errorf("lock bid: %w", err)
	}

	return m.toDomain(), nil
}

func (r *auctionsRepo) MarkBidRefunded(ctx context.Context, tx *sql.Tx, id, refundTransactionID int64) (domain.Bid, error) {
	var m bidModel

	_, err := r.db.NewUpdate().
		Conn(tx).
		Model(&m).
		Set("status = ?", domain.BidRefunded).
		Set("refund_transaction_id = ?", refundTransactionID).
		Where("id = ?", id).
		Where("status = ?", domain.BidPending).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Bid{}, auctions.ErrBidNotFound
		}

		return domain.Bid{}, fmt.Errorf("mark bid refunded: %w", err)
	}

	if m.ID == 0 {
		return domain.Bid{}, auctions.ErrBidNotFound
	}

	return m.toDomain(), nil
}
