package codes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/buzzledger/internal/domain"
)

func (r *codesRepo) MarkRedeemed(
	ctx context.Context,
	tx *sql.Tx,
	code string,
	userID int64,
	at time.Time,
) (domain.RedeemableCode, error) {
	c, err := scanCode(tx.QueryRowContext(ctx, `
		UPDATE redeemable_codes
		SET redeemed_by_user_id = $2, redeemed_at = $3
		WHERE code = $1 AND redeemed_by_user_id IS NULL
		RETURNING `+columns,
		code, userID, at,
	))
	if err == nil {
		return c, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return domain.RedeemableCode{}, fmt.Errorf("mark code redeemed: %w", err)
	}

	// Nothing updated: either the code is gone or it is already spent.
	_, err = r.Get(ctx, tx, code)
	if err != nil {
		return domain.RedeemableCode{}, err
	}

	return domain.RedeemableCode{}, domain.ErrAlreadyRedeemed
}
