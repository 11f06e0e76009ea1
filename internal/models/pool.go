package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PoolStatus is the betting pool lifecycle. Transitions are one-way:
// OPEN -> CLOSED -> RESOLVING -> RESOLVED. A pool enters RESOLVING at most
// once; RESOLVED is terminal.
type PoolStatus string

const (
	PoolOpen      PoolStatus = "OPEN"
	PoolClosed    PoolStatus = "CLOSED"
	PoolResolving PoolStatus = "RESOLVING"
	PoolResolved  PoolStatus = "RESOLVED"
)

// Pool aggregates all bets placed against one story branch point.
// TotalPool and the three settlement cuts are derived from the bet set at
// settlement time and written exactly once; once RESOLVED,
// WinnersPaid + TreasuryCut + DevCut == TotalPool within one minor unit.
type Pool struct {
	ID              string           `gorm:"primaryKey;type:varchar(100)"`
	ChapterID       *string          `gorm:"type:varchar(100);index"`
	Title           string           `gorm:"type:text;not null"`
	Status          PoolStatus       `gorm:"type:varchar(20);not null;default:'OPEN';index"`
	MinBet          decimal.Decimal  `gorm:"type:numeric(30,10);not null"`
	MaxBet          decimal.Decimal  `gorm:"type:numeric(30,10);not null"`
	OpensAt         time.Time        `gorm:"type:timestamptz;not null"`
	ClosesAt        time.Time        `gorm:"type:timestamptz;not null;index"`
	WinningChoiceID *string          `gorm:"type:varchar(100)"`
	WinnersPaid     *decimal.Decimal `gorm:"type:numeric(30,10)"`
	TreasuryCut     *decimal.Decimal `gorm:"type:numeric(30,10)"`
	DevCut          *decimal.Decimal `gorm:"type:numeric(30,10)"`
	ResolvedAt      *time.Time       `gorm:"type:timestamptz"`
	CreatedAt       time.Time        `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"type:timestamptz;autoUpdateTime"`

	Choices []Choice `gorm:"foreignKey:PoolID"`
}

func (Pool) TableName() string {
	return "pools"
}

// Accepting returns whether the pool can take a new bet at t.
func (p *Pool) Accepting(t time.Time) bool {
	return p.Status == PoolOpen && t.Before(p.ClosesAt) && !t.Before(p.OpensAt)
}
