package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/pgutils"
	"github.com/fastprodman/buzzledger/internal/repos/accounts"
)

func (r *accountsRepo) Get(ctx context.Context, q pgutils.Querier, id int64) (domain.Account, error) {
	if q == nil {
		q = r.db
	}

	a, err := scanAccount(q.QueryRowContext(ctx, `
		SELECT id, owner_type, owner_id
		FROM accounts
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, accounts.ErrAccountNotFound
		}

		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}

	return a, nil
}

func (r *accountsRepo) FindByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID int64) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, `
		SELECT id, owner_type, owner_id
		FROM accounts
		WHERE owner_type = $1 AND owner_id = $2
	`, ownerType, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, accounts.ErrAccountNotFound
		}

		return domain.Account{}, fmt.Errorf("find account by owner: %w", err)
	}

	return a, nil
}
