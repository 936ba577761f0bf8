package transactions

import (
	"database/sql"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/repos/transactions"
)

var _ transactions.Transactions = (*transactionsRepo)(nil)

type transactionsRepo struct{ db *sql.DB }

func New(db *sql.DB) *transactionsRepo {
	return &transactionsRepo{db: db}
}

const columns = `id, type, from_account_id, to_account_id, amount, external_transaction_id, description, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (domain.Transaction, error) {
	var (
		t   domain.Transaction
		ext sql.NullString
	)

	err := row.Scan(&t.ID, &t.Type, &t.FromAccountID, &t.ToAccountID, &t.Amount, &ext, &t.Description, &t.CreatedAt)
	if err != nil {
		return domain.Transaction{}, err
	}

	if ext.Valid {
		t.ExternalTransactionID = &ext.String
	}

	return t, nil
}
