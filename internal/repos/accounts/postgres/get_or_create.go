package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/buzzledger/internal/domain"
)

// GetOrCreate returns the owner's account, inserting it on first use.
// Concurrent callers converge on the same row through the unique constraint.
func (r *accountsRepo) GetOrCreate(
	ctx context.Context,
	tx *sql.Tx,
	ownerType domain.OwnerType,
	ownerID int64,
) (domain.Account, error) {
	a, err := scanAccount(tx.QueryRowContext(ctx, `
		INSERT INTO accounts (owner_type, owner_id)
		VALUES ($1, $2)
		ON CONFLICT (owner_type, owner_id) DO NOTHING
		RETURNING id, owner_type, owner_id
	`, ownerType, ownerID))
	if err == nil {
		return a, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("insert account: %w", err)
	}

	a, err = scanAccount(tx.QueryRowContext(ctx, `
		SELECT id, owner_type, owner_id
		FROM accounts
		WHERE owner_type = $1 AND owner_id = $2
	`, ownerType, ownerID))
	if err != nil {
		return domain.Account{}, fmt.Errorf("select existing account: %w", err)
	}

	return a, nil
}
