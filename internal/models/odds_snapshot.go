package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OddsBreakdownVersion is bumped whenever the OddsBreakdown JSON shape
// changes. Readers must tolerate older versions.
const OddsBreakdownVersion = 1

// OddsBreakdown is the typed JSON payload of a snapshot: each choice's share
// of the total pool at capture time.
type OddsBreakdown struct {
	SchemaVersion int                `json:"schema_version"`
	PerChoice     map[string]float64 `json:"per_choice"`
}

// OddsSnapshot is an append-only point-in-time record of a pool's bet
// distribution, captured periodically while the pool is OPEN. Rows are never
// mutated; momentum and volatility trends are derived by comparing rows.
type OddsSnapshot struct {
	ID            uint64                            `gorm:"primaryKey;autoIncrement"`
	PoolID        string                            `gorm:"type:varchar(100);not null;index:idx_snapshots_pool_time"`
	Odds          datatypes.JSONType[OddsBreakdown] `gorm:"type:jsonb;not null"`
	TotalPool     decimal.Decimal                   `gorm:"type:numeric(30,10);not null"`
	TotalBets     int                               `gorm:"not null"`
	UniqueBettors int                               `gorm:"not null"`
	CreatedAt     time.Time                         `gorm:"type:timestamptz;autoCreateTime;index:idx_snapshots_pool_time"`
}

func (OddsSnapshot) TableName() string {
	return "odds_snapshots"
}
