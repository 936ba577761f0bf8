package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/buzzledger/internal/domain"
	"github.com/fastprodman/buzzledger/internal/services/bonus"
)

const (
	mainBonusSuffix = ":main-bonus"
	bulkBonusSuffix = ":bulk-bonus"
)

// PreviewBonus computes the bonus split of a purchase without recording it.
func (s *Service) PreviewBonus(buzzAmount int64, purchasesMultiplier decimal.Decimal) (bonus.Result, error) {
	return bonus.ComputeBulkBonus(buzzAmount, purchasesMultiplier, s.tiers)
}

// RecordPurchase credits a purchase and its bonuses from the central bank in
// one database transaction. Every entry carries an id derived from
// in.ExternalID, so replaying a purchase writes nothing.
func (s *Service) RecordPurchase(ctx context.Context, in PurchaseInput) (PurchaseResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.RecordPurchase")
	defer span.End()

	if in.ExternalID == "" {
		return PurchaseResult{}, &domain.ErrValidation{Field: "externalId", Message: "is required"}
	}

	if in.PurchasesMultiplier.IsZero() {
		in.PurchasesMultiplier = decimal.NewFromInt(1)
	}

	split, err := s.PreviewBonus(in.BuzzAmount, in.PurchasesMultiplier)
	if err != nil {
		return PurchaseResult{}, err
	}

	out := PurchaseResult{Bonus: split}

	err = s.WithTx(ctx, func(tx *Tx) error {
		acct, err := tx.UserAccount(ctx, in.UserID)
		if err != nil {
			return err
		}

		entries := []TransactionInput{{
			Type:                  domain.TxPurchase,
			Amount:                split.BuzzAmount,
			ExternalTransactionID: in.ExternalID,
			Description:           "Buzz purchase",
		}}

		if split.MainBonus > 0 {
			entries = append(entries, TransactionInput{
				Type:                  domain.TxReward,
				Amount:                split.MainBonus,
				ExternalTransactionID: in.ExternalID + mainBonusSuffix,
				Description:           "Membership purchase bonus",
			})
		}

		if split.SecondaryBonus > 0 {
			entries = append(entries, TransactionInput{
				Type:                  domain.TxReward,
				Amount:                split.SecondaryBonus,
				ExternalTransactionID: in.ExternalID + bulkBonusSuffix,
				Description:           "Bulk purchase bonus (blue)",
			})
		}

		out.Transactions = make([]domain.Transaction, 0, len(entries))

		for i, e := range entries {
			e.FromAccountID = domain.CentralBankAccountID
			e.ToAccountID = acct.ID

			res, err := tx.CreateTransaction(ctx, e)
			if err != nil {
				return err
			}

			if i == 0 {
				out.Replayed = res.Replayed
			}

			out.Transactions = append(out.Transactions, res.Transaction)
		}

		return nil
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	return out, nil
}
