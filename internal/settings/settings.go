// Package settings reads the operator-tunable TOML file: bonus tiers and the
// daily redeem attempt limit.
//
//	[redeem]
//	max_attempts_per_day = 5
//
//	[[bonus.tiers]]
//	threshold = 10000
//	multiplier = 1.05
package settings

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"

	"github.com/fastprodman/buzzledger/internal/services/bonus"
)

type Settings struct {
	Bonus  BonusSettings  `toml:"bonus"`
	Redeem RedeemSettings `toml:"redeem"`
}

type TierSettings struct {
	Threshold  int64   `toml:"threshold"`
	Multiplier float64 `toml:"multiplier"`
}

type BonusSettings struct {
	Tiers []TierSettings `toml:"tiers"`
}

type RedeemSettings struct {
	MaxAttemptsPerDay int64 `toml:"max_attempts_per_day"`
}

func Default() Settings {
	return Settings{
		Bonus: BonusSettings{Tiers: []TierSettings{
			{Threshold: 10_000, Multiplier: 1.05},
			{Threshold: 25_000, Multiplier: 1.1},
			{Threshold: 50_000, Multiplier: 1.15},
		}},
		Redeem: RedeemSettings{MaxAttemptsPerDay: 5},
	}
}

// Decode reads TOML from r on top of Default. Tiers given in the file replace
// the default tiers as a whole.
func Decode(r io.Reader) (Settings, error) {
	s := Default()

	var raw Settings

	err := toml.NewDecoder(r).Decode(&raw)
	if err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}

	if raw.Bonus.Tiers != nil {
		s.Bonus.Tiers = raw.Bonus.Tiers
	}

	if raw.Redeem.MaxAttemptsPerDay > 0 {
		s.Redeem.MaxAttemptsPerDay = raw.Redeem.MaxAttemptsPerDay
	}

	_, err = s.BonusTiers()
	if err != nil {
		return Settings{}, fmt.Errorf("validate settings: %w", err)
	}

	return s, nil
}

// Load reads the file at path. An empty path yields Default.
func Load(path string) (Settings, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Settings{}, fmt.Errorf("open settings: %w", err)
	}
	//nolint:errcheck
	defer f.Close()

	return Decode(f)
}

// BonusTiers converts the configured tiers and validates them.
func (s Settings) BonusTiers() ([]bonus.Tier, error) {
	tiers := make([]bonus.Tier, 0, len(s.Bonus.Tiers))
	for _, t := range s.Bonus.Tiers {
		tiers = append(tiers, bonus.Tier{
			Threshold:  t.Threshold,
			Multiplier: decimal.NewFromFloat(t.Multiplier),
		})
	}

	err := bonus.ValidateTiers(tiers)
	if err != nil {
		return nil, fmt.Errorf("bonus tiers: %w", err)
	}

	return tiers, nil
}

// File re-reads the settings file on every call so limit sources pick up edits.
type File struct {
	Path string
}

func (f File) RedeemAttemptsPerDay(_ context.Context) (int64, error) {
	s, err := Load(f.Path)
	if err != nil {
		return 0, err
	}

	return s.Redeem.MaxAttemptsPerDay, nil
}
