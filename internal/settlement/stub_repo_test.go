package settlement

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storypool/internal/models"
	"storypool/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// InTx serializes callers and restores state on error, so tests can assert
// full-rollback behavior without a database.
type stubRepo struct {
	mu      sync.Mutex
	pools   map[string]*models.Pool
	bets    map[string]*models.Bet
	streaks map[string]*models.UserStreak
	snaps   []models.OddsSnapshot
	snapSeq uint64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		pools:   map[string]*models.Pool{},
		bets:    map[string]*models.Bet{},
		streaks: map[string]*models.UserStreak{},
	}
}

func (s *stubRepo) snapshotState() (map[string]models.Pool, map[string]models.Bet, map[string]models.UserStreak) {
	pools := make(map[string]models.Pool, len(s.pools))
	for k, v := range s.pools {
		cp := *v
		cp.Choices = append([]models.Choice(nil), v.Choices...)
		pools[k] = cp
	}
	bets := make(map[string]models.Bet, len(s.bets))
	for k, v := range s.bets {
		bets[k] = *v
	}
	streaks := make(map[string]models.UserStreak, len(s.streaks))
	for k, v := range s.streaks {
		streaks[k] = *v
	}
	return pools, bets, streaks
}

func (s *stubRepo) restoreState(pools map[string]models.Pool, bets map[string]models.Bet, streaks map[string]models.UserStreak) {
	s.pools = map[string]*models.Pool{}
	for k, v := range pools {
		cp := v
		s.pools[k] = &cp
	}
	s.bets = map[string]*models.Bet{}
	for k, v := range bets {
		cp := v
		s.bets[k] = &cp
	}
	s.streaks = map[string]*models.UserStreak{}
	for k, v := range streaks {
		cp := v
		s.streaks[k] = &cp
	}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pools, bets, streaks := s.snapshotState()
	if err := fn(nil); err != nil {
		s.restoreState(pools, bets, streaks)
		return err
	}
	return nil
}

func (s *stubRepo) CreatePool(ctx context.Context, pool *models.Pool) error {
	cp := *pool
	s.pools[pool.ID] = &cp
	return nil
}

func (s *stubRepo) GetPool(ctx context.Context, poolID string) (*models.Pool, error) {
	return s.GetPoolTx(ctx, nil, poolID)
}

func (s *stubRepo) GetPoolTx(ctx context.Context, tx *gorm.DB, poolID string) (*models.Pool, error) {
	pool, ok := s.pools[poolID]
	if !ok {
		return nil, models.ErrPoolNotFound
	}
	cp := *pool
	cp.Choices = append([]models.Choice(nil), pool.Choices...)
	return &cp, nil
}

func (s *stubRepo) GetPoolForUpdateTx(ctx context.Context, tx *gorm.DB, poolID string) (*models.Pool, error) {
	return s.GetPoolTx(ctx, tx, poolID)
}

func (s *stubRepo) ListPools(ctx context.Context, params repository.ListPoolsParams) ([]models.Pool, error) {
	var out []models.Pool
	for _, p := range s.pools {
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *stubRepo) TransitionPoolStatus(ctx context.Context, tx *gorm.DB, poolID string, from, to models.PoolStatus) (bool, error) {
	pool, ok := s.pools[poolID]
	if !ok || pool.Status != from {
		return false, nil
	}
	pool.Status = to
	return true, nil
}

func (s *stubRepo) FinalizePoolTx(ctx context.Context, tx *gorm.DB, pool *models.Pool) error {
	existing, ok := s.pools[pool.ID]
	if !ok {
		return models.ErrPoolNotFound
	}
	existing.Status = pool.Status
	existing.WinningChoiceID = pool.WinningChoiceID
	existing.WinnersPaid = pool.WinnersPaid
	existing.TreasuryCut = pool.TreasuryCut
	existing.DevCut = pool.DevCut
	existing.ResolvedAt = pool.ResolvedAt
	return nil
}

func (s *stubRepo) ListChoices(ctx context.Context, poolID string) ([]models.Choice, error) {
	pool, ok := s.pools[poolID]
	if !ok {
		return nil, models.ErrPoolNotFound
	}
	return append([]models.Choice(nil), pool.Choices...), nil
}

func (s *stubRepo) MarkChoiceChosenTx(ctx context.Context, tx *gorm.DB, poolID, choiceID string) error {
	pool, ok := s.pools[poolID]
	if !ok {
		return models.ErrPoolNotFound
	}
	for i := range pool.Choices {
		if pool.Choices[i].ID == choiceID {
			pool.Choices[i].IsChosen = true
		}
	}
	return nil
}

func (s *stubRepo) CreateBetTx(ctx context.Context, tx *gorm.DB, bet *models.Bet) error {
	cp := *bet
	s.bets[bet.ID] = &cp
	return nil
}

func (s *stubRepo) ListBetsByPoolTx(ctx context.Context, tx *gorm.DB, poolID string) ([]models.Bet, error) {
	var out []models.Bet
	for _, b := range s.bets {
		if b.PoolID == poolID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *stubRepo) ListBetsByUser(ctx context.Context, userID string, limit int) ([]models.Bet, error) {
	var out []models.Bet
	for _, b := range s.bets {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *stubRepo) UpdateBetSettlementTx(ctx context.Context, tx *gorm.DB, betID string, isWinner bool, payout, multiplier *decimal.Decimal) error {
	bet, ok := s.bets[betID]
	if !ok {
		return models.ErrPoolNotFound
	}
	bet.IsWinner = &isWinner
	bet.Payout = payout
	bet.StreakMultiplier = multiplier
	return nil
}

func (s *stubRepo) PoolBetAggregates(ctx context.Context, poolID string) (*repository.PoolAggregates, error) {
	agg := &repository.PoolAggregates{
		PerChoice: map[string]repository.ChoiceAggregate{},
		TotalPool: decimal.Zero,
	}
	users := map[string]struct{}{}
	for _, b := range s.bets {
		if b.PoolID != poolID {
			continue
		}
		ca := agg.PerChoice[b.ChoiceID]
		ca.ChoiceID = b.ChoiceID
		ca.Total = ca.Total.Add(b.Amount)
		ca.BetCount++
		agg.PerChoice[b.ChoiceID] = ca
		agg.TotalPool = agg.TotalPool.Add(b.Amount)
		agg.BetCount++
		users[b.UserID] = struct{}{}
	}
	agg.UniqueBettors = len(users)
	return agg, nil
}

func (s *stubRepo) GetUserStreak(ctx context.Context, userID string) (*models.UserStreak, error) {
	return s.GetUserStreakTx(ctx, nil, userID)
}

func (s *stubRepo) GetUserStreakTx(ctx context.Context, tx *gorm.DB, userID string) (*models.UserStreak, error) {
	st, ok := s.streaks[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *stubRepo) EnsureUserStreakTx(ctx context.Context, tx *gorm.DB, userID string, now time.Time) (*models.UserStreak, error) {
	if st, ok := s.streaks[userID]; ok {
		cp := *st
		return &cp, nil
	}
	st := &models.UserStreak{UserID: userID, LastBetDate: &now}
	s.streaks[userID] = st
	cp := *st
	return &cp, nil
}

func (s *stubRepo) SaveUserStreakTx(ctx context.Context, tx *gorm.DB, streakRow *models.UserStreak) error {
	cp := *streakRow
	s.streaks[streakRow.UserID] = &cp
	return nil
}

func (s *stubRepo) InsertSnapshot(ctx context.Context, snap *models.OddsSnapshot) error {
	s.snapSeq++
	snap.ID = s.snapSeq
	s.snaps = append(s.snaps, *snap)
	return nil
}

func (s *stubRepo) ListSnapshots(ctx context.Context, poolID string, since time.Time, limit int) ([]models.OddsSnapshot, error) {
	var out []models.OddsSnapshot
	for _, snap := range s.snaps {
		if snap.PoolID != poolID {
			continue
		}
		if !since.IsZero() && snap.CreatedAt.Before(since) {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *stubRepo) DeleteSnapshotsBefore(ctx context.Context, before time.Time) (int64, error) {
	var kept []models.OddsSnapshot
	var deleted int64
	for _, snap := range s.snaps {
		if snap.CreatedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, snap)
	}
	s.snaps = kept
	return deleted, nil
}
