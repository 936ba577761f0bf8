package codes

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/pgutils"
)

var (
	ErrCodeNotFound = errors.New("redeemable code not found")
	ErrCodeExists   = errors.New("redeemable code already exists")
)

type Codes interface {
	InsertMany(ctx context.Context, tx *sql.Tx, codes []domain.RedeemableCode) error
	Get(ctx context.Context, q pgutils.Querier, code string) (domain.RedeemableCode, error)
	// MarkRedeemed only flips an unredeemed code.
	// It returns domain.ErrAlreadyRedeemed when another redemption got there first.
	MarkRedeemed(ctx context.Context, tx *sql.Tx, code string, userID int64, at time.Time) (domain.RedeemableCode, error)
	// DeleteUnredeemed returns domain.ErrAlreadyRedeemed for a spent code.
	DeleteUnredeemed(ctx context.Context, code string) error
}
