package transactions

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/pgutils"
)

var (
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrUnknownAccount       = errors.New("transaction references unknown account")
)

type Transactions interface {
	// Insert returns ErrDuplicateTransaction when the external id is taken.
	Insert(ctx context.Context, tx *sql.Tx, t domain.Transaction) (domain.Transaction, error)
	GetByExternalID(ctx context.Context, q pgutils.Querier, externalID string) (domain.Transaction, error)
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error)
}
