package codes

import (
	"database/sql"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/repos/codes"
)

var _ codes.Codes = (*codesRepo)(nil)

type codesRepo struct{ db *sql.DB }

func New(db *sql.DB) *codesRepo {
	return &codesRepo{db: db}
}

const columns = `code, buzz_amount, redeemed_by_user_id, redeemed_at, created_at`

func scanCode(row *sql.Row) (domain.RedeemableCode, error) {
	var (
		c        domain.RedeemableCode
		redeemer sql.NullInt64
		at       sql.NullTime
	)

	err := row.Scan(&c.Code, &c.BuzzAmount, &redeemer, &at, &c.CreatedAt)
	if err != nil {
		return domain.RedeemableCode{}, err
	}

	if redeemer.Valid {
		c.RedeemedByUserID = &redeemer.Int64
	}

	if at.Valid {
		c.RedeemedAt = &at.Time
	}

	return c, nil
}
