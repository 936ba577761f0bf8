package codes

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/pgutils"
	"github.com/fastprodman/buzzledger/internal/repos/codes"
)

func (r *codesRepo) InsertMany(ctx context.Context, tx *sql.Tx, batch []domain.RedeemableCode) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO redeemable_codes (code, buzz_amount) VALUES ($1, $2)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert code: %w", err)
	}
	//nolint:errcheck
	defer stmt.Close()

	for _, c := range batch {
		_, err = stmt.ExecContext(ctx, c.Code, c.BuzzAmount)
		if err != nil {
			if pgutils.PgErrorCode(err) == pgutils.CodeUniqueViolation {
				return codes.ErrCodeExists
			}

			return fmt.Errorf("insert code: %w", err)
		}
	}

	return nil
}
