package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// WinnerPayout is one winning bet's settlement outcome.
type WinnerPayout struct {
	BetID          string          `json:"bet_id"`
	UserID         string          `json:"user_id"`
	ChoiceID       string          `json:"choice_id"`
	Stake          decimal.Decimal `json:"stake"`
	BasePayout     decimal.Decimal `json:"base_payout"`
	Multiplier     decimal.Decimal `json:"multiplier"`
	Payout         decimal.Decimal `json:"payout"`
	StreakAfter    int             `json:"streak_after"`
	ShieldsGranted int             `json:"shields_granted"`
}

// LoserUpdate is one losing bet's streak outcome. When ShieldConsumed is
// true the streak survived the loss and the stake was not added to the
// user's loss total.
type LoserUpdate struct {
	BetID          string          `json:"bet_id"`
	UserID         string          `json:"user_id"`
	ChoiceID       string          `json:"choice_id"`
	Stake          decimal.Decimal `json:"stake"`
	StreakBefore   int             `json:"streak_before"`
	StreakAfter    int             `json:"streak_after"`
	ShieldConsumed bool            `json:"shield_consumed"`
}

// Result is the settlement payload handed to the notification/payment
// collaborator after commit. Base payouts sum to WinnersPaid; streak
// multiplier bonuses on top of that are house-funded and reported in
// MultiplierBonus so the payment side can source them from treasury.
type Result struct {
	PoolID           string          `json:"pool_id"`
	WinningChoiceID  string          `json:"winning_choice_id"`
	TotalPool        decimal.Decimal `json:"total_pool"`
	WinnersPaid      decimal.Decimal `json:"winners_paid"`
	TreasuryCut      decimal.Decimal `json:"treasury_cut"`
	DevCut           decimal.Decimal `json:"dev_cut"`
	MultiplierBonus  decimal.Decimal `json:"multiplier_bonus"`
	TotalWinningBets decimal.Decimal `json:"total_winning_bets"`
	NoWinners        bool            `json:"no_winners"`
	Winners          []WinnerPayout  `json:"winners"`
	Losers           []LoserUpdate   `json:"losers"`
	ResolvedAt       time.Time       `json:"resolved_at"`
}
