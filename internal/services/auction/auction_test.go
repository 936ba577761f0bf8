package auction

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/pgtestutil"
	"github.com/fastprodman/buzzledger/internal/services/ledger"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db     *sql.DB
	ledger *ledger.Service
	svc    *Service
	open   int64
	closed int64
}

func newFixture(t *testing.T, mutate func(*Config)) (*fixture, func()) {
	t.Helper()

	db, cleanup := pgtestutil.NewTestDB(t)

	led, err := ledger.New(db, ledger.Config{})
	if err != nil {
		cleanup()
		t.Fatalf("ledger: %v", err)
	}

	cfg := Config{
		BiddingEnabled: true,
		MinimumBid:     100,
		Now:            func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&cfg)
	}

	svc, err := New(db, led, cfg)
	if err != nil {
		cleanup()
		t.Fatalf("auction service: %v", err)
	}

	f := &fixture{db: db, ledger: led, svc: svc}
	f.open = f.seedAuction(t, "open", fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour), 250)
	f.closed = f.seedAuction(t, "closed", fixedNow.Add(-2*time.Hour), fixedNow.Add(-time.Hour), 0)

	return f, cleanup
}

func (f *fixture) seedAuction(t *testing.T, slug string, start, end time.Time, minimum int64) int64 {
	t.Helper()

	var id int64

	err := f.db.QueryRow(`
		INSERT INTO auctions (slug, ecosystem, start_at, end_at, minimum_bid)
		VALUES ($1, 'sdxl', $2, $3, $4)
		RETURNING id
	`, slug, start, end, minimum).Scan(&id)
	if err != nil {
		t.Fatalf("seed auction: %v", err)
	}

	return id
}

func (f *fixture) fund(t *testing.T, userID, amount int64) {
	t.Helper()

	acct, err := f.ledger.UserAccount(context.Background(), userID)
	if err != nil {
		t.Fatalf("account: %v", err)
	}

	_, err = f.ledger.CreateTransaction(context.Background(), ledger.TransactionInput{
		Type:          domain.TxCredit,
		FromAccountID: domain.CentralBankAccountID,
		ToAccountID:   acct.ID,
		Amount:        amount,
	})
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func (f *fixture) balance(t *testing.T, userID int64) int64 {
	t.Helper()

	b, err := f.ledger.GetUserBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}

	return b
}

func TestCreateBid_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		auction func(f *fixture) int64
		amount  int64
		check   func(t *testing.T, err error)
	}{
		{
			name:    "bidding_disabled",
			mutate:  func(c *Config) { c.BiddingEnabled = false },
			auction: func(f *fixture) int64 { return f.open },
			amount:  300,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, domain.ErrBiddingDisabled) {
					t.Fatalf("want ErrBiddingDisabled, got %v", err)
				}
			},
		},
		{
			name:    "below_auction_minimum",
			auction: func(f *fixture) int64 { return f.open },
			amount:  200,
			check:   wantValidation("amount"),
		},
		{
			name:    "below_configured_minimum",
			auction: func(f *fixture) int64 { return f.closed },
			amount:  50,
			check:   wantValidation("amount"),
		},
		{
			name:    "auction_closed",
			auction: func(f *fixture) int64 { return f.closed },
			amount:  300,
			check:   wantValidation("auctionId"),
		},
		{
			name:    "auction_missing",
			auction: func(*fixture) int64 { return 999_999 },
			amount:  300,
			check:   wantValidation("auctionId"),
		},
		{
			name:    "insufficient_funds",
			auction: func(f *fixture) int64 { return f.open },
			amount:  5_000,
			check: func(t *testing.T, err error) {
				var ie *domain.ErrInsufficientFunds
				if !errors.As(err, &ie) {
					t.Fatalf("want ErrInsufficientFunds, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, cleanup := newFixture(t, tt.mutate)
			defer cleanup()

			f.fund(t, 1, 1000)

			_, err := f.svc.CreateBid(t.Context(), 1, tt.auction(f), tt.amount)
			tt.check(t, err)

			if got := f.balance(t, 1); got != 1000 {
				t.Fatalf("rejected bid charged the user: balance %d", got)
			}

			bids, err := f.svc.GetMyBids(t.Context(), 1)
			if err != nil || len(bids) != 0 {
				t.Fatalf("rejected bid recorded: %d bids (%v)", len(bids), err)
			}
		})
	}
}

func wantValidation(field string) func(t *testing.T, err error) {
	return func(t *testing.T, err error) {
		t.Helper()

		var ve *domain.ErrValidation
		if !errors.As(err, &ve) || ve.Field != field {
			t.Fatalf("want validation error on %s, got %v", field, err)
		}
	}
}

func TestCreateAndDeleteBid(t *testing.T) {
	t.Parallel()

	f, cleanup := newFixture(t, nil)
	defer cleanup()

	ctx := t.Context()
	f.fund(t, 1, 1000)

	bid, err := f.svc.CreateBid(ctx, 1, f.open, 400)
	if err != nil {
		t.Fatalf("create bid: %v", err)
	}

	if bid.Status != domain.BidPending || bid.TransactionID == 0 {
		t.Fatalf("unexpected bid %+v", bid)
	}

	if got := f.balance(t, 1); got != 600 {
		t.Fatalf("after bid: want 600, got %d", got)
	}

	detail, err := f.svc.GetBySlug(ctx, "open")
	if err != nil {
		t.Fatalf("get by slug: %v", err)
	}

	if detail.BidCount != 1 || detail.PendingAmount != 400 {
		t.Fatalf("unexpected detail %+v", detail)
	}

	_, err = f.svc.DeleteBid(ctx, 2, bid.ID)

	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("foreign delete: want ErrNotFound, got %v", err)
	}

	refunded, err := f.svc.DeleteBid(ctx, 1, bid.ID)
	if err != nil {
		t.Fatalf("delete bid: %v", err)
	}

	if refunded.Status != domain.BidRefunded || refunded.RefundTransactionID == nil {
		t.Fatalf("unexpected refunded bid %+v", refunded)
	}

	if got := f.balance(t, 1); got != 1000 {
		t.Fatalf("after refund: want 1000, got %d", got)
	}

	_, err = f.svc.DeleteBid(ctx, 1, bid.ID)
	if !errors.Is(err, domain.ErrAlreadyRefunded) {
		t.Fatalf("second delete: want ErrAlreadyRefunded, got %v", err)
	}
}

func TestDeleteBid_Policies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		policy  RefundPolicy
		status  domain.BidStatus
		wantErr error
	}{
		{name: "before_end_after_close", policy: RefundBeforeEnd, status: domain.BidPending, wantErr: domain.ErrAuctionClosed},
		{name: "while_pending_after_close", policy: RefundWhilePending, status: domain.BidPending, wantErr: nil},
		{name: "allocated", policy: RefundWhilePending, status: domain.BidAllocated, wantErr: domain.ErrAlreadyAllocated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := fixedNow

			f, cleanup := newFixture(t, func(c *Config) {
				c.RefundPolicy = tt.policy
				c.Now = func() time.Time { return clock }
			})
			defer cleanup()

			f.fund(t, 1, 1000)

			bid, err := f.svc.CreateBid(t.Context(), 1, f.open, 300)
			if err != nil {
				t.Fatalf("create bid: %v", err)
			}

			_, err = f.db.Exec(`UPDATE bids SET status = $1 WHERE id = $2`, tt.status, bid.ID)
			if err != nil {
				t.Fatalf("set status: %v", err)
			}

			// The open auction ends an hour after fixedNow.
			clock = fixedNow.Add(2 * time.Hour)

			_, err = f.svc.DeleteBid(t.Context(), 1, bid.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}

			want := int64(700)
			if tt.wantErr == nil {
				want = 1000
			}

			if got := f.balance(t, 1); got != want {
				t.Fatalf("balance: want %d, got %d", want, got)
			}
		})
	}
}

// Two bids race for a balance that covers one.
func TestCreateBid_Concurrent(t *testing.T) {
	t.Parallel()

	f, cleanup := newFixture(t, nil)
	defer cleanup()

	f.fund(t, 1, 500)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)

	for range 2 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := f.svc.CreateBid(context.Background(), 1, f.open, 400)

			mu.Lock()
			defer mu.Unlock()

			var ie *domain.ErrInsufficientFunds

			switch {
			case err == nil:
				ok++
			case errors.As(err, &ie):
				fail++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	if ok != 1 || fail != 1 {
		t.Fatalf("want 1 success and 1 insufficient, got %d and %d", ok, fail)
	}

	if got := f.balance(t, 1); got != 100 {
		t.Fatalf("want balance 100, got %d", got)
	}
}

func TestRecurringBids(t *testing.T) {
	t.Parallel()

	f, cleanup := newFixture(t, nil)
	defer cleanup()

	ctx := t.Context()

	_, err := f.svc.CreateRecurringBid(ctx, 1, f.open, 10)

	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("below minimum: want validation error, got %v", err)
	}

	rb, err := f.svc.CreateRecurringBid(ctx, 1, f.open, 300)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := f.svc.TogglePauseRecurringBid(ctx, 1, rb.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}

	second, err := f.svc.TogglePauseRecurringBid(ctx, 1, rb.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}

	if !first.Paused || second.Paused != rb.Paused {
		t.Fatalf("toggle twice should restore: %v -> %v -> %v", rb.Paused, first.Paused, second.Paused)
	}

	var nf *domain.ErrNotFound

	err = f.svc.DeleteRecurringBid(ctx, 2, rb.ID)
	if !errors.As(err, &nf) {
		t.Fatalf("foreign delete: want ErrNotFound, got %v", err)
	}

	mine, err := f.svc.GetMyRecurringBids(ctx, 1)
	if err != nil || len(mine) != 1 {
		t.Fatalf("want 1 recurring bid, got %d (%v)", len(mine), err)
	}

	err = f.svc.DeleteRecurringBid(ctx, 1, rb.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestParseRefundPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    RefundPolicy
		wantErr bool
	}{
		{in: "", want: RefundBeforeEnd},
		{in: "before_end", want: RefundBeforeEnd},
		{in: "while_pending", want: RefundWhilePending},
		{in: "never", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseRefundPolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("%q: got %q, %v", tt.in, got, err)
		}
	}
}
