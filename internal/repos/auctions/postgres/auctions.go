package auctions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/pgutils"
	"github.com/fastprodman/buzzledger/internal/repos/auctions"
)

func (r *auctionsRepo) List(ctx context.Context) ([]domain.Auction, error) {
	var models []auctionModel

	err := r.db.NewSelect().
		Model(&models).
		Order("start_at DESC", "id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}

	out := make([]domain.Auction, 0, len(models))
	for i := range models {
		out = append(out, models[i].toDomain())
	}

	return out, nil
}

func (r *auctionsRepo) Get(ctx context.Context, q pgutils.Querier, id int64) (domain.Auction, error) {
	query := r.db.NewSelect()
	if q != nil {
		query = query.Conn(q)
	}

	var m auctionModel

	err := query.Model(&m).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return domain.Auction{}, notFound(err, "get auction "+strconv.FormatInt(id, 10))
	}

	return m.toDomain(), nil
}

func (r *auctionsRepo) GetBySlug(ctx context.Context, slug string) (domain.Auction, error) {
	var m auctionModel

	err := r.db.NewSelect().Model(&m).Where("slug = ?", slug).Scan(ctx)
	if err != nil {
		return domain.Auction{}, notFound(err, "get auction by slug")
	}

	return m.toDomain(), nil
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return auctions.ErrAuctionNotFound
	}

	return fmt.Errorf("%s: %w", op, err)
}
