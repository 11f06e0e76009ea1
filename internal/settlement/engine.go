// Package settlement computes parimutuel payouts for a resolved pool. One
// call per pool ever succeeds: the engine wins the pool's CLOSED -> RESOLVING
// transition inside the settlement transaction, so concurrent callers and
// retries after a commit fail with ErrPoolAlreadyResolved, while a crash
// before commit rolls everything back (including the transition) and leaves
// the pool safely retryable.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storypool/internal/config"
	"storypool/internal/models"
	"storypool/internal/repository"
	"storypool/internal/streak"
)

// Fee split, fixed product policy. The three fractions sum to exactly 1;
// DevCut is nevertheless derived by subtraction at settlement time so the
// conservation invariant holds to the last decimal place regardless of the
// stake amounts' scale.
var (
	winnerShare   = decimal.RequireFromString("0.85")
	treasuryShare = decimal.RequireFromString("0.125")
)

// Notifier receives the committed result. Delivery is best-effort and
// post-commit; it never influences the settlement transaction.
type Notifier interface {
	SettlementCompleted(ctx context.Context, result *Result) error
}

type Engine struct {
	Repo     repository.Repository
	Config   config.SettlementConfig
	Logger   *zap.Logger
	Notifier Notifier
}

// Settle resolves the pool in favor of winningChoiceID and pays winners
// proportionally to stake, scaled by each bettor's streak multiplier.
// Everything up to and including the pool finalization runs in a single
// transaction; per-user streak state is read and written only here.
func (e *Engine) Settle(ctx context.Context, poolID, winningChoiceID string) (*Result, error) {
	var result *Result
	err := e.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := e.claimPool(ctx, tx, poolID); err != nil {
			return err
		}
		pool, err := e.Repo.GetPoolTx(ctx, tx, poolID)
		if err != nil {
			return err
		}
		if !choiceInPool(pool, winningChoiceID) {
			return models.ErrChoiceNotFound
		}
		bets, err := e.Repo.ListBetsByPoolTx(ctx, tx, poolID)
		if err != nil {
			return fmt.Errorf("load bets: %w", err)
		}
		result, err = e.settleInTx(ctx, tx, pool, winningChoiceID, bets)
		return err
	})
	if err != nil {
		return nil, err
	}

	if e.Logger != nil {
		e.Logger.Info("pool settled",
			zap.String("pool_id", result.PoolID),
			zap.String("winning_choice_id", result.WinningChoiceID),
			zap.String("total_pool", result.TotalPool.String()),
			zap.Int("winners", len(result.Winners)),
			zap.Int("losers", len(result.Losers)),
			zap.Bool("no_winners", result.NoWinners),
		)
	}
	if e.Notifier != nil {
		if nerr := e.Notifier.SettlementCompleted(ctx, result); nerr != nil && e.Logger != nil {
			e.Logger.Warn("settlement notification failed",
				zap.String("pool_id", result.PoolID),
				zap.Error(nerr),
			)
		}
	}
	return result, nil
}

// claimPool wins the exclusive right to settle via a conditional status
// UPDATE. Running it inside the transaction gives both guarantees at once:
// losers of the race see zero rows affected, and a crash before commit
// restores CLOSED.
func (e *Engine) claimPool(ctx context.Context, tx *gorm.DB, poolID string) error {
	moved, err := e.Repo.TransitionPoolStatus(ctx, tx, poolID, models.PoolClosed, models.PoolResolving)
	if err != nil {
		return err
	}
	if !moved && e.Config.AllowSettleOpen {
		moved, err = e.Repo.TransitionPoolStatus(ctx, tx, poolID, models.PoolOpen, models.PoolResolving)
		if err != nil {
			return err
		}
	}
	if moved {
		return nil
	}
	pool, err := e.Repo.GetPoolTx(ctx, tx, poolID)
	if err != nil {
		return err
	}
	if pool.Status == models.PoolOpen {
		return models.ErrPoolStillOpen
	}
	return models.ErrPoolAlreadyResolved
}

func (e *Engine) settleInTx(ctx context.Context, tx *gorm.DB, pool *models.Pool, winningChoiceID string, bets []models.Bet) (*Result, error) {
	now := time.Now().UTC()

	totalPool := decimal.Zero
	var winning, losing []models.Bet
	for _, b := range bets {
		totalPool = totalPool.Add(b.Amount)
		if b.ChoiceID == winningChoiceID {
			winning = append(winning, b)
		} else {
			losing = append(losing, b)
		}
	}

	payoutPool := totalPool.Mul(winnerShare)
	treasuryCut := totalPool.Mul(treasuryShare)
	devCut := totalPool.Sub(payoutPool).Sub(treasuryCut)

	totalWinningStake := decimal.Zero
	for _, b := range winning {
		totalWinningStake = totalWinningStake.Add(b.Amount)
	}

	result := &Result{
		PoolID:           pool.ID,
		WinningChoiceID:  winningChoiceID,
		TotalPool:        totalPool,
		TreasuryCut:      treasuryCut,
		DevCut:           devCut,
		TotalWinningBets: totalWinningStake,
		ResolvedAt:       now,
	}

	if totalWinningStake.IsZero() {
		// Nobody backed the winning branch: the winner share folds into
		// treasury. Reported as a condition, not an error.
		result.NoWinners = true
		result.WinnersPaid = decimal.Zero
		result.TreasuryCut = treasuryCut.Add(payoutPool)
	} else {
		result.WinnersPaid = payoutPool
	}

	// Streak rows are read once and mutated in memory as bets are walked, so
	// a user with several bets in this pool sees their own evolving state,
	// then flushed once per user.
	streaks := map[string]*models.UserStreak{}
	loadStreak := func(userID string) (*models.UserStreak, error) {
		if st, ok := streaks[userID]; ok {
			return st, nil
		}
		st, err := e.Repo.GetUserStreakTx(ctx, tx, userID)
		if err != nil {
			return nil, err
		}
		streaks[userID] = st
		return st, nil
	}

	result.MultiplierBonus = decimal.Zero
	for _, bet := range winning {
		st, err := loadStreak(bet.UserID)
		if err != nil {
			return nil, err
		}
		proportion := bet.Amount.DivRound(totalWinningStake, 12)
		basePayout := payoutPool.Mul(proportion)

		oldStreak := st.CurrentStreak
		newStreak := oldStreak + 1
		mult := streak.Multiplier(newStreak)
		finalPayout := basePayout.Mul(mult)
		granted := streak.ShieldsGranted(oldStreak, newStreak)

		st.CurrentStreak = newStreak
		if newStreak > st.LongestStreak {
			st.LongestStreak = newStreak
		}
		st.Shields += granted
		st.TotalWon = st.TotalWon.Add(finalPayout)

		if err := e.Repo.UpdateBetSettlementTx(ctx, tx, bet.ID, true, &finalPayout, &mult); err != nil {
			return nil, fmt.Errorf("settle winning bet %s: %w", bet.ID, err)
		}
		result.MultiplierBonus = result.MultiplierBonus.Add(finalPayout.Sub(basePayout))
		result.Winners = append(result.Winners, WinnerPayout{
			BetID:          bet.ID,
			UserID:         bet.UserID,
			ChoiceID:       bet.ChoiceID,
			Stake:          bet.Amount,
			BasePayout:     basePayout,
			Multiplier:     mult,
			Payout:         finalPayout,
			StreakAfter:    newStreak,
			ShieldsGranted: granted,
		})
	}

	for _, bet := range losing {
		st, err := loadStreak(bet.UserID)
		if err != nil {
			return nil, err
		}
		before := st.CurrentStreak
		consumed := false
		if st.Shields > 0 && e.Config.AutoConsumeShields && st.CurrentStreak > 0 {
			st.Shields--
			consumed = true
		} else {
			st.CurrentStreak = 0
			st.TotalLost = st.TotalLost.Add(bet.Amount)
		}

		if err := e.Repo.UpdateBetSettlementTx(ctx, tx, bet.ID, false, nil, nil); err != nil {
			return nil, fmt.Errorf("settle losing bet %s: %w", bet.ID, err)
		}
		result.Losers = append(result.Losers, LoserUpdate{
			BetID:          bet.ID,
			UserID:         bet.UserID,
			ChoiceID:       bet.ChoiceID,
			Stake:          bet.Amount,
			StreakBefore:   before,
			StreakAfter:    st.CurrentStreak,
			ShieldConsumed: consumed,
		})
	}

	for _, st := range streaks {
		if err := e.Repo.SaveUserStreakTx(ctx, tx, st); err != nil {
			return nil, fmt.Errorf("save streak for %s: %w", st.UserID, err)
		}
	}

	if err := e.Repo.MarkChoiceChosenTx(ctx, tx, pool.ID, winningChoiceID); err != nil {
		return nil, fmt.Errorf("mark chosen choice: %w", err)
	}

	pool.Status = models.PoolResolved
	pool.WinningChoiceID = &winningChoiceID
	pool.WinnersPaid = &result.WinnersPaid
	pool.TreasuryCut = &result.TreasuryCut
	pool.DevCut = &result.DevCut
	pool.ResolvedAt = &now
	if err := e.Repo.FinalizePoolTx(ctx, tx, pool); err != nil {
		return nil, fmt.Errorf("finalize pool: %w", err)
	}
	return result, nil
}

func choiceInPool(pool *models.Pool, choiceID string) bool {
	for _, c := range pool.Choices {
		if c.ID == choiceID {
			return true
		}
	}
	return false
}
