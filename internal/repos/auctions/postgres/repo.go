package auctions

import (
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/fastprodman/buzzledger/internal/repos/auctions"
)

var _ auctions.Auctions = (*auctionsRepo)(nil)

// auctionsRepo builds its queries with bun over the shared *sql.DB, so
// writes can join a transaction opened by the ledger through Conn(tx).
type auctionsRepo struct{ db *bun.DB }

func New(db *sql.DB) *auctionsRepo {
	return &auctionsRepo{db: bun.NewDB(db, pgdialect.New())}
}
