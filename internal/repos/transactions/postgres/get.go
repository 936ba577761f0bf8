package transactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/pgutils"
	"github.com/fastprodman/buzzledger/internal/repos/transactions"
)

func (r *transactionsRepo) GetByExternalID(
	ctx context.Context,
	q pgutils.Querier,
	externalID string,
) (domain.Transaction, error) {
	if q == nil {
		q = r.db
	}

	t, err := scanTransaction(q.QueryRowContext(ctx, `
		SELECT `+columns+`
		FROM transactions
		WHERE external_transaction_id = $1
	`, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, transactions.ErrTransactionNotFound
		}

		return domain.Transaction{}, fmt.Errorf("get transaction by external id: %w", err)
	}

	return t, nil
}

// ListByAccount returns the newest transactions touching the account.
func (r *transactionsRepo) ListByAccount(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+columns+`
		FROM transactions
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	out := make([]domain.Transaction, 0, limit)

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		out = append(out, t)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return out, nil
}
