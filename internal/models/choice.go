package models

import "time"

// Choice is one selectable story branch inside a pool. Stake totals are not
// stored here; they are read-through aggregates over the bet set (see
// repository.PoolBetAggregates) so they can never drift from the bets.
// IsChosen is written by the narrative-resolution collaborator and consumed
// by settlement as ground truth for the winning branch.
type Choice struct {
	ID        string    `gorm:"primaryKey;type:varchar(100)"`
	PoolID    string    `gorm:"type:varchar(100);not null;index"`
	Label     string    `gorm:"type:text;not null"`
	Position  int       `gorm:"not null"`
	IsChosen  bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Choice) TableName() string {
	return "pool_choices"
}
