package accounts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/pgutils"
)

var ErrAccountNotFound = errors.New("account not found")

type Accounts interface {
	Get(ctx context.Context, q pgutils.Querier, id int64) (domain.Account, error)
	FindByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID int64) (domain.Account, error)
	GetOrCreate(ctx context.Context, tx *sql.Tx, ownerType domain.OwnerType, ownerID int64) (domain.Account, error)
	Lock(ctx context.Context, tx *sql.Tx, id int64) (domain.Account, error)
	Balance(ctx context.Context, q pgutils.Querier, id int64) (int64, error)
}
