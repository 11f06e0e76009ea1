package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserStreak is per-user consecutive-win state. Created lazily on a user's
// first bet, never deleted, and mutated only inside a settlement transaction
// for bets belonging to that user. Shields are consumable credits that
// preserve the streak through one loss; one is granted per ten consecutive
// wins (see streak.ShieldsGranted).
type UserStreak struct {
	UserID        string          `gorm:"primaryKey;type:varchar(100)"`
	CurrentStreak int             `gorm:"not null;default:0"`
	LongestStreak int             `gorm:"not null;default:0"`
	Shields       int             `gorm:"not null;default:0"`
	TotalWon      decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	TotalLost     decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	LastBetDate   *time.Time      `gorm:"type:timestamptz"`
	CreatedAt     time.Time       `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"type:timestamptz;autoUpdateTime"`
}

func (UserStreak) TableName() string {
	return "user_streaks"
}
