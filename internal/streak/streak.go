// Package streak holds the consecutive-win payout policy. Everything here is
// stateless; the settlement engine owns reading and writing the persisted
// per-user counters.
package streak

import "github.com/shopspring/decimal"

// tier maps a minimum consecutive-win count to a payout multiplier. The
// table must be sorted by MinWins ascending with non-decreasing multipliers;
// the exact thresholds are tunable product policy, monotonicity is not.
type tier struct {
	MinWins    int
	Multiplier decimal.Decimal
}

var tiers = []tier{
	{MinWins: 0, Multiplier: decimal.NewFromFloat(1.0)},
	{MinWins: 3, Multiplier: decimal.NewFromFloat(1.1)},
	{MinWins: 5, Multiplier: decimal.NewFromFloat(1.25)},
	{MinWins: 10, Multiplier: decimal.NewFromFloat(1.5)},
	{MinWins: 20, Multiplier: decimal.NewFromFloat(2.0)},
}

// ShieldInterval is how many consecutive wins earn one streak shield.
const ShieldInterval = 10

// Multiplier returns the payout multiplier for a run of consecutive wins.
// It is monotonically non-decreasing and 1.0 at zero wins.
func Multiplier(consecutiveWins int) decimal.Decimal {
	if consecutiveWins < 0 {
		consecutiveWins = 0
	}
	mult := tiers[0].Multiplier
	for _, t := range tiers {
		if consecutiveWins < t.MinWins {
			break
		}
		mult = t.Multiplier
	}
	return mult
}

// ShieldsGranted returns how many shields a streak move from oldStreak to
// newStreak earns: one per ShieldInterval boundary crossed. A multi-step
// jump grants the full count; staying within an interval grants nothing.
func ShieldsGranted(oldStreak, newStreak int) int {
	if oldStreak < 0 {
		oldStreak = 0
	}
	if newStreak < oldStreak {
		return 0
	}
	return newStreak/ShieldInterval - oldStreak/ShieldInterval
}
