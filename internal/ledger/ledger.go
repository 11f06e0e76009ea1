// Package ledger is the pool ledger: bet intake while a pool is open, pure
// read-through totals, and the one legal OPEN -> CLOSED transition.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storypool/internal/config"
	"storypool/internal/models"
	"storypool/internal/repository"
)

type Service struct {
	Repo   repository.Repository
	Config config.PoolConfig
	Logger *zap.Logger
}

// Totals is the CurrentTotals read: entirely derived from the bet set.
type Totals struct {
	PoolID        string
	PerChoice     map[string]repository.ChoiceAggregate
	TotalPool     decimal.Decimal
	BetCount      int
	UniqueBettors int
}

// RecordBet appends a bet to an open pool. The pool row is read under a
// FOR UPDATE lock inside the insert transaction, so the status and window
// checks serialize against the close/settle status CAS: a close committing
// first is observed here, and a close arriving later blocks until this bet
// commits. A bet can therefore never land in a non-OPEN pool. The bettor's
// streak row is created lazily here on first bet.
func (s *Service) RecordBet(ctx context.Context, poolID, userID, choiceID string, amount decimal.Decimal) (*models.Bet, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, models.ErrInvalidBetAmount
	}

	now := time.Now().UTC()
	var bet *models.Bet
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		pool, err := s.Repo.GetPoolForUpdateTx(ctx, tx, poolID)
		if err != nil {
			return err
		}
		if !pool.Accepting(now) {
			return models.ErrPoolNotOpen
		}
		if !s.choiceInPool(pool, choiceID) {
			return models.ErrChoiceNotFound
		}
		minBet, maxBet := s.betBounds(pool)
		if amount.LessThan(minBet) || amount.GreaterThan(maxBet) {
			return models.ErrInvalidBetAmount
		}

		streakRow, err := s.Repo.EnsureUserStreakTx(ctx, tx, userID, now)
		if err != nil {
			return fmt.Errorf("ensure streak row: %w", err)
		}
		streakRow.LastBetDate = &now
		if err := s.Repo.SaveUserStreakTx(ctx, tx, streakRow); err != nil {
			return fmt.Errorf("stamp last bet date: %w", err)
		}

		odds := s.placementOdds(ctx, poolID, choiceID, amount)
		bet = &models.Bet{
			ID:        uuid.NewString(),
			PoolID:    poolID,
			ChoiceID:  choiceID,
			UserID:    userID,
			Amount:    amount,
			Odds:      odds,
			CreatedAt: now,
		}
		return s.Repo.CreateBetTx(ctx, tx, bet)
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Debug("bet recorded",
			zap.String("pool_id", poolID),
			zap.String("bet_id", bet.ID),
			zap.String("user_id", userID),
			zap.String("amount", amount.String()),
		)
	}
	return bet, nil
}

// CurrentTotals is a pure read over the bet set.
func (s *Service) CurrentTotals(ctx context.Context, poolID string) (*Totals, error) {
	if _, err := s.Repo.GetPool(ctx, poolID); err != nil {
		return nil, err
	}
	agg, err := s.Repo.PoolBetAggregates(ctx, poolID)
	if err != nil {
		return nil, err
	}
	return &Totals{
		PoolID:        poolID,
		PerChoice:     agg.PerChoice,
		TotalPool:     agg.TotalPool,
		BetCount:      agg.BetCount,
		UniqueBettors: agg.UniqueBettors,
	}, nil
}

// ClosePool moves the pool out of OPEN, stopping bet intake. It is the only
// transition into CLOSED and must precede settlement (unless settlement is
// configured to close the pool itself).
func (s *Service) ClosePool(ctx context.Context, poolID string) error {
	moved, err := s.Repo.TransitionPoolStatus(ctx, nil, poolID, models.PoolOpen, models.PoolClosed)
	if err != nil {
		return err
	}
	if moved {
		if s.Logger != nil {
			s.Logger.Info("pool closed", zap.String("pool_id", poolID))
		}
		return nil
	}
	// Lost the transition: distinguish a missing pool from one already past OPEN.
	pool, err := s.Repo.GetPool(ctx, poolID)
	if err != nil {
		return err
	}
	if pool.Status == models.PoolClosed {
		return nil
	}
	return models.ErrPoolAlreadyResolved
}

func (s *Service) choiceInPool(pool *models.Pool, choiceID string) bool {
	for _, c := range pool.Choices {
		if c.ID == choiceID {
			return true
		}
	}
	return false
}

// betBounds prefers per-pool bounds and falls back to the global config for
// pools that never set them.
func (s *Service) betBounds(pool *models.Pool) (decimal.Decimal, decimal.Decimal) {
	minBet := pool.MinBet
	if minBet.IsZero() {
		minBet = decimal.NewFromFloat(s.Config.MinBet)
	}
	maxBet := pool.MaxBet
	if maxBet.IsZero() {
		maxBet = decimal.NewFromFloat(s.Config.MaxBet)
	}
	return minBet, maxBet
}

// placementOdds is the choice's implied probability with this bet included,
// kept on the bet as a display/audit snapshot. Best-effort: a failed
// aggregate read leaves the odds unset rather than failing the bet.
func (s *Service) placementOdds(ctx context.Context, poolID, choiceID string, amount decimal.Decimal) *decimal.Decimal {
	agg, err := s.Repo.PoolBetAggregates(ctx, poolID)
	if err != nil || agg == nil {
		return nil
	}
	total := agg.TotalPool.Add(amount)
	if total.IsZero() {
		return nil
	}
	choiceTotal := amount
	if ca, ok := agg.PerChoice[choiceID]; ok {
		choiceTotal = choiceTotal.Add(ca.Total)
	}
	odds := choiceTotal.DivRound(total, 10)
	return &odds
}
