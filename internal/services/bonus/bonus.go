// Package bonus splits a Buzz purchase into base, subscription bonus and bulk
// bonus amounts. It does no I/O.
package bonus

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/buzzledger/internal/domain"
)

// Tier grants Multiplier to purchases of at least Threshold Buzz.
type Tier struct {
	Threshold  int64           `json:"threshold"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

type Result struct {
	BuzzAmount          int64           `json:"buzzAmount"`
	PurchasesMultiplier decimal.Decimal `json:"purchasesMultiplier"`
	BulkMultiplier      decimal.Decimal `json:"bulkMultiplier"`
	MainBonus           int64           `json:"mainBonus"`
	SecondaryBonus      int64           `json:"secondaryBonus"`
	Total               int64           `json:"total"`
}

var one = decimal.NewFromInt(1)

// ComputeBulkBonus picks the multiplier of the last tier whose threshold is
// met (1 if none) and derives both bonuses from it. The secondary bonus only
// tops up what the subscription bonus has not already covered.
func ComputeBulkBonus(buzzAmount int64, purchasesMultiplier decimal.Decimal, tiers []Tier) (Result, error) {
	if buzzAmount <= 0 {
		return Result{}, &domain.ErrValidation{Field: "buzzAmount", Message: "must be positive"}
	}

	if purchasesMultiplier.LessThan(one) {
		return Result{}, &domain.ErrValidation{Field: "purchasesMultiplier", Message: "must be at least 1"}
	}

	bulk := one

	for _, t := range tiers {
		if buzzAmount >= t.Threshold {
			bulk = t.Multiplier
		}
	}

	buzz := decimal.NewFromInt(buzzAmount)

	mainBonus := buzz.Mul(purchasesMultiplier).Sub(buzz).Floor()

	secondary := buzz.Mul(bulk).Sub(mainBonus).Sub(buzz).Floor()
	if secondary.IsNegative() {
		secondary = decimal.Zero
	}

	res := Result{
		BuzzAmount:          buzzAmount,
		PurchasesMultiplier: purchasesMultiplier,
		BulkMultiplier:      bulk,
		MainBonus:           mainBonus.IntPart(),
		SecondaryBonus:      secondary.IntPart(),
	}
	res.Total = res.BuzzAmount + res.MainBonus + res.SecondaryBonus

	return res, nil
}

// ValidateTiers requires strictly ascending thresholds and multipliers of at least 1.
func ValidateTiers(tiers []Tier) error {
	for i, t := range tiers {
		if t.Threshold <= 0 {
			return &domain.ErrValidation{
				Field:   fmt.Sprintf("tiers[%d].threshold", i),
				Message: "must be positive",
			}
		}

		if t.Multiplier.LessThan(one) {
			return &domain.ErrValidation{
				Field:   fmt.Sprintf("tiers[%d].multiplier", i),
				Message: "must be at least 1",
			}
		}

		if i > 0 && t.Threshold <= tiers[i-1].Threshold {
			return &domain.ErrValidation{
				Field:   fmt.Sprintf("tiers[%d].threshold", i),
				Message: "thresholds must be ascending",
			}
		}
	}

	return nil
}
