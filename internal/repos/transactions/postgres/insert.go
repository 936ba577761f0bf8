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

// Insert writes t. A conflicting external id inserts nothing and yields
// ErrDuplicateTransaction; the caller decides how to replay.
func (r *transactionsRepo) Insert(ctx context.Context, tx *sql.Tx, t domain.Transaction) (domain.Transaction, error) {
	var ext sql.NullString
	if t.ExternalTransactionID != nil {
		ext = sql.NullString{String: *t.ExternalTransactionID, Valid: true}
	}

	out, err := scanTransaction(tx.QueryRowContext(ctx, `
		INSERT INTO transactions (type, from_account_id, to_account_id, amount, external_transaction_id, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_transaction_id) DO NOTHING
		RETURNING `+columns,
		t.Type, t.FromAccountID, t.ToAccountID, t.Amount, ext, t.Description,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, transactions.ErrDuplicateTransaction
		}

		if pgutils.PgErrorCode(err) == pgutils.CodeForeignKeyViolation {
			return domain.Transaction{}, transactions.ErrUnknownAccount
		}

		return domain.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	return out, nil
}
