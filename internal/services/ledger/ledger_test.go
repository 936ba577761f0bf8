package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/infra/pgtestutil"
	"github.com/fastprodman/buzzledger/internal/services/bonus"
)

func newTestService(t *testing.T) (*sql.DB, *Service, func()) {
	t.Helper()

	db, cleanup := pgtestutil.NewTestDB(t)

	svc, err := New(db, Config{
		BatchWorkers:     4,
		BalanceCacheSize: 64,
		Tiers:            []bonus.Tier{{Threshold: 1000, Multiplier: decimal.RequireFromString("1.05")}},
	})
	if err != nil {
		cleanup()
		t.Fatalf("new service: %v", err)
	}

	return db, svc, func() {
		_ = svc.Close()
		cleanup()
	}
}

// fund creates the user's account and credits amount from the central bank.
func fund(t *testing.T, svc *Service, userID, amount int64) domain.Account {
	t.Helper()

	acct, err := svc.UserAccount(context.Background(), userID)
	if err != nil {
		t.Fatalf("user account: %v", err)
	}

	if amount == 0 {
		return acct
	}

	_, err = svc.CreateTransaction(context.Background(), TransactionInput{
		Type:          domain.TxCredit,
		FromAccountID: domain.CentralBankAccountID,
		ToAccountID:   acct.ID,
		Amount:        amount,
	})
	if err != nil {
		t.Fatalf("fund: %v", err)
	}

	return acct
}

func countTransactions(t *testing.T, db *sql.DB) int {
	t.Helper()

	var n int

	err := db.QueryRow(`SELECT count(*) FROM transactions`).Scan(&n)
	if err != nil {
		t.Fatalf("count: %v", err)
	}

	return n
}

func TestCreateTransaction_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		balance int64
		in      func(user int64) TransactionInput
		check   func(t *testing.T, err error)
	}{
		{
			name:    "zero_amount_is_validation_error",
			balance: 100,
			in: func(user int64) TransactionInput {
				return TransactionInput{Type: domain.TxDebit, FromAccountID: user, ToAccountID: 0, Amount: 0}
			},
			check: func(t *testing.T, err error) {
				var ve *domain.ErrValidation
				if !errors.As(err, &ve) || ve.Field != "amount" {
					t.Fatalf("want amount validation error, got %v", err)
				}
			},
		},
		{
			name:    "unknown_type_is_validation_error",
			balance: 100,
			in: func(user int64) TransactionInput {
				return TransactionInput{Type: "gift", FromAccountID: user, ToAccountID: 0, Amount: 1}
			},
			check: func(t *testing.T, err error) {
				var ve *domain.ErrValidation
				if !errors.As(err, &ve) || ve.Field != "type" {
					t.Fatalf("want type validation error, got %v", err)
				}
			},
		},
		{
			name:    "insufficient_funds",
			balance: 100,
			in: func(user int64) TransactionInput {
				return TransactionInput{Type: domain.TxDebit, FromAccountID: user, ToAccountID: 0, Amount: 101}
			},
			check: func(t *testing.T, err error) {
				var ie *domain.ErrInsufficientFunds
				if !errors.As(err, &ie) {
					t.Fatalf("want ErrInsufficientFunds, got %v", err)
				}

				if ie.Available != 100 || ie.Required != 101 {
					t.Fatalf("unexpected funds error %+v", ie)
				}
			},
		},
		{
			name:    "exact_balance_debit",
			balance: 100,
			in: func(user int64) TransactionInput {
				return TransactionInput{Type: domain.TxDebit, FromAccountID: user, ToAccountID: 0, Amount: 100}
			},
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
		},
		{
			name:    "unknown_destination",
			balance: 100,
			in: func(user int64) TransactionInput {
				return TransactionInput{Type: domain.TxDebit, FromAccountID: user, ToAccountID: 999_999, Amount: 1}
			},
			check: func(t *testing.T, err error) {
				var nf *domain.ErrNotFound
				if !errors.As(err, &nf) || nf.Resource != "account" {
					t.Fatalf("want account not found, got %v", err)
				}
			},
		},
		{
			name:    "central_bank_may_go_negative",
			balance: 0,
			in: func(user int64) TransactionInput {
				return TransactionInput{Type: domain.TxReward, FromAccountID: 0, ToAccountID: user, Amount: 1_000_000}
			},
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, svc, cleanup := newTestService(t)
			defer cleanup()

			acct := fund(t, svc, 1, tt.balance)
			before := countTransactions(t, db)

			_, err := svc.CreateTransaction(t.Context(), tt.in(acct.ID))
			tt.check(t, err)

			if err != nil && countTransactions(t, db) != before {
				t.Fatal("failed transaction wrote a row")
			}
		})
	}
}

func TestCreateTransaction_ReplayIsIdempotent(t *testing.T) {
	t.Parallel()

	db, svc, cleanup := newTestService(t)
	defer cleanup()

	ctx := t.Context()
	acct := fund(t, svc, 1, 500)

	in := TransactionInput{
		Type:                  domain.TxDebit,
		FromAccountID:         acct.ID,
		ToAccountID:           domain.CentralBankAccountID,
		Amount:                300,
		ExternalTransactionID: "order-1",
	}

	first, err := svc.CreateTransaction(ctx, in)
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	// The replay succeeds even though the balance no longer covers it.
	second, err := svc.CreateTransaction(ctx, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	if first.Replayed || !second.Replayed {
		t.Fatalf("replayed flags: first=%v second=%v", first.Replayed, second.Replayed)
	}

	if first.Transaction.ID != second.Transaction.ID {
		t.Fatalf("replay returned a different row: %d vs %d", first.Transaction.ID, second.Transaction.ID)
	}

	balance, err := svc.GetBalance(ctx, acct.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}

	if balance != 200 {
		t.Fatalf("want balance 200, got %d", balance)
	}

	if n := countTransactions(t, db); n != 2 {
		t.Fatalf("want 2 rows (fund + debit), got %d", n)
	}
}

func TestCreateTransaction_ConcurrentDebits(t *testing.T) {
	t.Parallel()

	_, svc, cleanup := newTestService(t)
	defer cleanup()

	acct := fund(t, svc, 1, 100)

	var (
		wg                    sync.WaitGroup
		mu                    sync.Mutex
		success, insufficient int
	)

	for i := range 2 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := svc.CreateTransaction(context.Background(), TransactionInput{
				Type:                  domain.TxBidCharge,
				FromAccountID:         acct.ID,
				ToAccountID:           domain.CentralBankAccountID,
				Amount:                100,
				ExternalTransactionID: fmt.Sprintf("bid-%d", i),
			})

			mu.Lock()
			defer mu.Unlock()

			var ie *domain.ErrInsufficientFunds

			switch {
			case err == nil:
				success++
			case errors.As(err, &ie):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	if success != 1 || insufficient != 1 {
		t.Fatalf("want 1 success and 1 insufficient, got %d and %d", success, insufficient)
	}

	balance, err := svc.GetBalance(t.Context(), acct.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}

	if balance != 0 {
		t.Fatalf("want balance 0, got %d", balance)
	}
}

func TestGetBalance_InvalidatedOnCommit(t *testing.T) {
	t.Parallel()

	_, svc, cleanup := newTestService(t)
	defer cleanup()

	ctx := t.Context()
	acct := fund(t, svc, 1, 100)

	got, err := svc.GetBalance(ctx, acct.ID)
	if err != nil || got != 100 {
		t.Fatalf("want 100, got %d (%v)", got, err)
	}

	if _, ok := svc.cache.get(acct.ID); !ok {
		t.Fatal("balance not cached")
	}

	fund(t, svc, 1, 50)

	got, err = svc.GetBalance(ctx, acct.ID)
	if err != nil || got != 150 {
		t.Fatalf("want 150 after commit, got %d (%v)", got, err)
	}

	// Rolled back writes leave the cache alone and the balance unchanged.
	boom := errors.New("boom")

	err = svc.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.CreateTransaction(ctx, TransactionInput{
			Type: domain.TxCredit, FromAccountID: 0, ToAccountID: acct.ID, Amount: 10,
		})
		if err != nil {
			return err
		}

		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	got, err = svc.GetBalance(ctx, acct.ID)
	if err != nil || got != 150 {
		t.Fatalf("want 150 after rollback, got %d (%v)", got, err)
	}

	_, err = svc.GetBalance(ctx, 999_999)

	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUserBalanceAndTransactions(t *testing.T) {
	t.Parallel()

	_, svc, cleanup := newTestService(t)
	defer cleanup()

	ctx := t.Context()

	got, err := svc.GetUserBalance(ctx, 77)
	if err != nil || got != 0 {
		t.Fatalf("unknown user: want 0, got %d (%v)", got, err)
	}

	list, err := svc.ListUserTransactions(ctx, 77, 10)
	if err != nil || len(list) != 0 {
		t.Fatalf("unknown user: want no transactions, got %d (%v)", len(list), err)
	}

	fund(t, svc, 77, 10)
	fund(t, svc, 77, 20)

	got, err = svc.GetUserBalance(ctx, 77)
	if err != nil || got != 30 {
		t.Fatalf("want 30, got %d (%v)", got, err)
	}

	list, err = svc.ListUserTransactions(ctx, 77, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(list) != 1 || list[0].Amount != 20 {
		t.Fatalf("want newest transaction only, got %+v", list)
	}
}

func TestCreateTransactionMany(t *testing.T) {
	t.Parallel()

	_, svc, cleanup := newTestService(t)
	defer cleanup()

	ctx := t.Context()
	acct := fund(t, svc, 1, 0)

	inputs := make([]TransactionInput, 0, 12)
	for i := range 10 {
		inputs = append(inputs, TransactionInput{
			Type:                  domain.TxReward,
			FromAccountID:         domain.CentralBankAccountID,
			ToAccountID:           acct.ID,
			Amount:                10,
			ExternalTransactionID: fmt.Sprintf("reward-%d", i),
		})
	}

	inputs = append(inputs,
		TransactionInput{Type: domain.TxReward, FromAccountID: 0, ToAccountID: acct.ID, Amount: -1},
		TransactionInput{Type: domain.TxDebit, FromAccountID: acct.ID, ToAccountID: 0, Amount: 1_000_000},
	)

	res, err := svc.CreateTransactionMany(ctx, inputs)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	if res.Succeeded != 10 || res.Failed != 2 || res.Replayed != 0 {
		t.Fatalf("unexpected counts %+v", res)
	}

	if res.Items[10].Error == "" || res.Items[0].Transaction == nil {
		t.Fatalf("items not reported per index: %+v", res.Items)
	}

	again, err := svc.CreateTransactionMany(ctx, inputs[:10])
	if err != nil {
		t.Fatalf("replay batch: %v", err)
	}

	if again.Replayed != 10 {
		t.Fatalf("want 10 replays, got %+v", again)
	}

	balance, err := svc.GetBalance(ctx, acct.ID)
	if err != nil || balance != 100 {
		t.Fatalf("want 100, got %d (%v)", balance, err)
	}
}

func TestCreateTransactionMany_Canceled(t *testing.T) {
	t.Parallel()

	_, svc, cleanup := newTestService(t)
	defer cleanup()

	acct := fund(t, svc, 1, 0)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	res, err := svc.CreateTransactionMany(ctx, []TransactionInput{
		{Type: domain.TxReward, FromAccountID: 0, ToAccountID: acct.ID, Amount: 1},
		{Type: domain.TxReward, FromAccountID: 0, ToAccountID: acct.ID, Amount: 1},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}

	if res.Failed != 2 {
		t.Fatalf("want every item failed, got %+v", res)
	}
}

func TestRecordPurchase(t *testing.T) {
	t.Parallel()

	_, svc, cleanup := newTestService(t)
	defer cleanup()

	ctx := t.Context()

	in := PurchaseInput{
		UserID:              5,
		BuzzAmount:          1000,
		PurchasesMultiplier: decimal.NewFromInt(1),
		ExternalID:          "stripe:pi_1",
	}

	res, err := svc.RecordPurchase(ctx, in)
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if res.Bonus.SecondaryBonus != 50 || res.Bonus.Total != 1050 {
		t.Fatalf("unexpected bonus %+v", res.Bonus)
	}

	// Base purchase plus bulk bonus; no main bonus at multiplier 1.
	if len(res.Transactions) != 2 || res.Replayed {
		t.Fatalf("unexpected transactions %+v", res)
	}

	if ext := res.Transactions[1].ExternalTransactionID; ext == nil || *ext != "stripe:pi_1:bulk-bonus" {
		t.Fatalf("unexpected bonus external id %v", ext)
	}

	again, err := svc.RecordPurchase(ctx, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	if !again.Replayed {
		t.Fatal("replay not flagged")
	}

	balance, err := svc.GetUserBalance(ctx, 5)
	if err != nil || balance != 1050 {
		t.Fatalf("want 1050, got %d (%v)", balance, err)
	}

	_, err = svc.RecordPurchase(ctx, PurchaseInput{UserID: 5, BuzzAmount: 10})

	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("missing external id: want validation error, got %v", err)
	}
}
