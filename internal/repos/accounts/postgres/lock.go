package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/repos/accounts"
)

// Lock takes the row lock that serializes debits from the account until tx ends.
func (r *accountsRepo) Lock(ctx context.Context, tx *sql.Tx, id int64) (domain.Account, error) {
	a, err := scanAccount(tx.QueryRowContext(ctx, `
		SELECT id, owner_type, owner_id
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, accounts.ErrAccountNotFound
		}

		return domain.Account{}, fmt.Errorf("lock account: %w", err)
	}

	return a, nil
}
