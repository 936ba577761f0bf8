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

func (r *auctionsRepo) RecurringBidsByUser(ctx context.Context, userID int64) ([]domain.RecurringBid, error) {
	var models []recurringBidModel

	err := r.db.NewSelect().
		Model(&models).
		Where("user_id = ?", userID).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recurring bids: %w", err)
	}

	out := make([]domain.RecurringBid, 0, len(models))
	for i := range models {
		out = append(out, models[i].toDomain())
	}

	return out, nil
}

func (r *auctionsRepo) InsertRecurringBid(ctx context.Context, rb domain.RecurringBid) (domain.RecurringBid, error) {
	m := &recurringBidModel{
		UserID:    rb.UserID,
		AuctionID: rb.AuctionID,
		Amount:    rb.Amount,
		Paused:    rb.Paused,
	}

	_, err := r.db.NewInsert().
		Model(m).
		ExcludeColumn("id").
		Returning("*").
		Exec(ctx)
	if err != nil {
		if pgutils.PgErrorCode(err) == pgutils.CodeForeignKeyViolation {
			return domain.RecurringBid{}, auctions.ErrAuctionNotFound
		}

		return domain.RecurringBid{}, fmt.Errorf("insert recurring bid: %w", err)
	}

	return m.toDomain(), nil
}

func (r *auctionsRepo) DeleteRecurringBid(ctx context.Context, userID, id int64) error {
	res, err := r.db.NewDelete().
		Model((*recurringBidModel)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete recurring bid: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete recurring bid rows affected: %w", err)
	}

	if n == 0 {
		return auctions.ErrRecurringBidNotFound
	}

	return nil
}

// TogglePauseRecurringBid flips paused in one statement; concurrent toggles serialize on the row.
func (r *auctionsRepo) TogglePauseRecurringBid(ctx context.Context, userID, id int64) (domain.RecurringBid, error) {
	var m recurringBidModel

	_, err := r.db.NewUpdate().
		Model(&m).
		Set("paused = NOT paused").
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RecurringBid{}, auctions.ErrRecurringBidNotFound
		}

		return domain.RecurringBid{}, fmt.Errorf("toggle recurring bid: %w", err)
	}

	if m.ID == 0 {
		return domain.RecurringBid{}, auctions.ErrRecurringBidNotFound
	}

	return m.toDomain(), nil
}
