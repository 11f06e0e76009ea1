package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storypool/internal/models"
)

// ChoiceAggregate is one choice's read-through stake totals.
type ChoiceAggregate struct {
	ChoiceID string
	Total    decimal.Decimal
	BetCount int
}

// PoolAggregates is the pool-level view computed from the bet set. It is
// always derived by aggregate query, never from separately mutated counters,
// so it cannot drift from the bets.
type PoolAggregates struct {
	PerChoice     map[string]ChoiceAggregate
	TotalPool     decimal.Decimal
	BetCount      int
	UniqueBettors int
}

type ListPoolsParams struct {
	Status *models.PoolStatus
	Limit  int
	Offset int
}

// Repository is the persistence collaborator for the settlement core.
// *Tx variants run against an open transaction handed out by InTx; the
// settlement engine performs all of its writes through them so a failure
// anywhere rolls the whole settlement back.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Pools.
	CreatePool(ctx context.Context, pool *models.Pool) error
	GetPool(ctx context.Context, poolID string) (*models.Pool, error)
	GetPoolTx(ctx context.Context, tx *gorm.DB, poolID string) (*models.Pool, error)
	// GetPoolForUpdateTx reads the pool row under a FOR UPDATE lock, so the
	// caller's transaction serializes against any concurrent status CAS on
	// the same pool. Bet intake reads the pool this way: a close committing
	// first is observed, a close arriving later waits for the bet to commit.
	GetPoolForUpdateTx(ctx context.Context, tx *gorm.DB, poolID string) (*models.Pool, error)
	ListPools(ctx context.Context, params ListPoolsParams) ([]models.Pool, error)
	// TransitionPoolStatus is a conditional UPDATE ... WHERE status = from.
	// It reports whether this caller won the transition; a false return with
	// nil error means some other caller moved the pool first. This is the
	// cross-process serialization point for close and settle.
	TransitionPoolStatus(ctx context.Context, tx *gorm.DB, poolID string, from, to models.PoolStatus) (bool, error)
	FinalizePoolTx(ctx context.Context, tx *gorm.DB, pool *models.Pool) error

	// Choices.
	ListChoices(ctx context.Context, poolID string) ([]models.Choice, error)
	MarkChoiceChosenTx(ctx context.Context, tx *gorm.DB, poolID, choiceID string) error

	// Bets.
	CreateBetTx(ctx context.Context, tx *gorm.DB, bet *models.Bet) error
	ListBetsByPoolTx(ctx context.Context, tx *gorm.DB, poolID string) ([]models.Bet, error)
	ListBetsByUser(ctx context.Context, userID string, limit int) ([]models.Bet, error)
	UpdateBetSettlementTx(ctx context.Context, tx *gorm.DB, betID string, isWinner bool, payout, multiplier *decimal.Decimal) error
	PoolBetAggregates(ctx context.Context, poolID string) (*PoolAggregates, error)

	// User streak state.
	GetUserStreak(ctx context.Context, userID string) (*models.UserStreak, error)
	GetUserStreakTx(ctx context.Context, tx *gorm.DB, userID string) (*models.UserStreak, error)
	EnsureUserStreakTx(ctx context.Context, tx *gorm.DB, userID string, now time.Time) (*models.UserStreak, error)
	SaveUserStreakTx(ctx context.Context, tx *gorm.DB, streak *models.UserStreak) error

	// Odds snapshots (append-only).
	InsertSnapshot(ctx context.Context, snap *models.OddsSnapshot) error
	ListSnapshots(ctx context.Context, poolID string, since time.Time, limit int) ([]models.OddsSnapshot, error)
	DeleteSnapshotsBefore(ctx context.Context, before time.Time) (int64, error)
}
