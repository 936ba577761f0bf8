package codes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/pgutils"
	"github.com/fastprodman/buzzledger/internal/repos/codes"
)

func (r *codesRepo) Get(ctx context.Context, q pgutils.Querier, code string) (domain.RedeemableCode, error) {
	if q == nil {
		q = r.db
	}

	c, err := scanCode(q.QueryRowContext(ctx, `
		SELECT `+columns+`
		FROM redeemable_codes
		WHERE code = $1
	`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RedeemableCode{}, codes.ErrCodeNotFound
		}

		return domain.RedeemableCode{}, fmt.Errorf("get code: %w", err)
	}

	return c, nil
}
