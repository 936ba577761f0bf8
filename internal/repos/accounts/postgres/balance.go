package accounts

import (
	"context"
	"fmt"

	"github.com/fastprodman/buzzledger/internal/infra/pgutils"
)

// Balance is the running sum: credits into the account minus debits out of it.
func (r *accountsRepo) Balance(ctx context.Context, q pgutils.Querier, id int64) (int64, error) {
	if q == nil {
		q = r.db
	}

	var balance int64

	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN to_account_id = $1 THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE to_account_id = $1 OR from_account_id = $1
	`, id).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("sum balance: %w", err)
	}

	return balance, nil
}
