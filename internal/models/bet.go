package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bet is an immutable stake on one choice of one pool. The settlement fields
// (IsWinner, Payout, StreakMultiplier) start null and are written exactly
// once, inside the settlement transaction. Odds is the choice's implied
// probability snapshotted at placement time, kept for display and audit.
type Bet struct {
	ID               string           `gorm:"primaryKey;type:varchar(100)"`
	PoolID           string           `gorm:"type:varchar(100);not null;index"`
	ChoiceID         string           `gorm:"type:varchar(100);not null;index"`
	UserID           string           `gorm:"type:varchar(100);not null;index"`
	Amount           decimal.Decimal  `gorm:"type:numeric(30,10);not null"`
	Odds             *decimal.Decimal `gorm:"type:numeric(20,10)"`
	IsWinner         *bool            `gorm:""`
	Payout           *decimal.Decimal `gorm:"type:numeric(30,10)"`
	StreakMultiplier *decimal.Decimal `gorm:"type:numeric(10,4)"`
	CreatedAt        time.Time        `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Bet) TableName() string {
	return "bets"
}
