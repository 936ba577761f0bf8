package codes

import (
	"context"
	"fmt"

	"github.com/fastprodman/buzzledger/internal/domain"
)

func (r *codesRepo) DeleteUnredeemed(ctx context.Context, code string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM redeemable_codes
		WHERE code = $1 AND redeemed_by_user_id IS NULL
	`, code)
	if err != nil {
		return fmt.Errorf("delete code: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete code rows affected: %w", err)
	}

	if n == 1 {
		return nil
	}

	_, err = r.Get(ctx, nil, code)
	if err != nil {
		return err
	}

	return domain.ErrAlreadyRedeemed
}
