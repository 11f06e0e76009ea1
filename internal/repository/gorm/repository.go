package gormrepository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storypool/internal/models"
	"storypool/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// InTx runs fn inside one transaction. A Store without a live handle must
// fail loudly here: returning nil without running fn would let callers treat
// skipped work as committed work.
func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return gorm.ErrInvalidDB
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// conn picks the transaction handle when one is in flight.
func (s *Store) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// --- Pools ------------------------------------------------------------------

func (s *Store) CreatePool(ctx context.Context, pool *models.Pool) error {
	if s == nil || s.db == nil || pool == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(pool).Error
}

func (s *Store) GetPool(ctx context.Context, poolID string) (*models.Pool, error) {
	return s.GetPoolTx(ctx, nil, poolID)
}

func (s *Store) GetPoolTx(ctx context.Context, tx *gorm.DB, poolID string) (*models.Pool, error) {
	if s == nil || s.db == nil {
		return nil, models.ErrPoolNotFound
	}
	var pool models.Pool
	err := s.conn(tx).WithContext(ctx).
		Preload("Choices", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&pool, "id = ?", poolID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrPoolNotFound
		}
		return nil, err
	}
	return &pool, nil
}

func (s *Store) GetPoolForUpdateTx(ctx context.Context, tx *gorm.DB, poolID string) (*models.Pool, error) {
	if s == nil || s.db == nil {
		return nil, models.ErrPoolNotFound
	}
	var pool models.Pool
	// The lock covers the pool row only; Choices load in a follow-up query
	// and are immutable while the pool exists.
	err := s.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&pool, "id = ?", poolID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrPoolNotFound
		}
		return nil, err
	}
	if err := s.conn(tx).WithContext(ctx).
		Where("pool_id = ?", poolID).
		Order("position ASC").
		Find(&pool.Choices).Error; err != nil {
		return nil, err
	}
	return &pool, nil
}

func (s *Store) ListPools(ctx context.Context, params repository.ListPoolsParams) ([]models.Pool, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Pool{}).Preload("Choices")
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var pools []models.Pool
	if err := query.Order("closes_at ASC").Limit(limit).Offset(offset).Find(&pools).Error; err != nil {
		return nil, err
	}
	return pools, nil
}

func (s *Store) TransitionPoolStatus(ctx context.Context, tx *gorm.DB, poolID string, from, to models.PoolStatus) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	res := s.conn(tx).WithContext(ctx).
		Model(&models.Pool{}).
		Where("id = ? AND status = ?", poolID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) FinalizePoolTx(ctx context.Context, tx *gorm.DB, pool *models.Pool) error {
	if s == nil || s.db == nil || pool == nil {
		return nil
	}
	return s.conn(tx).WithContext(ctx).
		Model(&models.Pool{}).
		Where("id = ?", pool.ID).
		Updates(map[string]any{
			"status":            pool.Status,
			"winning_choice_id": pool.WinningChoiceID,
			"winners_paid":      pool.WinnersPaid,
			"treasury_cut":      pool.TreasuryCut,
			"dev_cut":           pool.DevCut,
			"resolved_at":       pool.ResolvedAt,
		}).Error
}

// --- Choices ----------------------------------------------------------------

func (s *Store) ListChoices(ctx context.Context, poolID string) ([]models.Choice, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var choices []models.Choice
	err := s.db.WithContext(ctx).
		Where("pool_id = ?", poolID).
		Order("position ASC").
		Find(&choices).Error
	if err != nil {
		return nil, err
	}
	return choices, nil
}

func (s *Store) MarkChoiceChosenTx(ctx context.Context, tx *gorm.DB, poolID, choiceID string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.conn(tx).WithContext(ctx).
		Model(&models.Choice{}).
		Where("pool_id = ? AND id = ?", poolID, choiceID).
		Update("is_chosen", true).Error
}

// --- Bets -------------------------------------------------------------------

func (s *Store) CreateBetTx(ctx context.Context, tx *gorm.DB, bet *models.Bet) error {
	if s == nil || s.db == nil || bet == nil {
		return nil
	}
	return s.conn(tx).WithContext(ctx).Create(bet).Error
}

func (s *Store) ListBetsByPoolTx(ctx context.Context, tx *gorm.DB, poolID string) ([]models.Bet, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var bets []models.Bet
	err := s.conn(tx).WithContext(ctx).
		Where("pool_id = ?", poolID).
		Order("created_at ASC").
		Find(&bets).Error
	if err != nil {
		return nil, err
	}
	return bets, nil
}

func (s *Store) ListBetsByUser(ctx context.Context, userID string, limit int) ([]models.Bet, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var bets []models.Bet
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(normalizeLimit(limit, 100)).
		Find(&bets).Error
	if err != nil {
		return nil, err
	}
	return bets, nil
}

func (s *Store) UpdateBetSettlementTx(ctx context.Context, tx *gorm.DB, betID string, isWinner bool, payout, multiplier *decimal.Decimal) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.conn(tx).WithContext(ctx).
		Model(&models.Bet{}).
		Where("id = ?", betID).
		Updates(map[string]any{
			"is_winner":         isWinner,
			"payout":            payout,
			"streak_multiplier": multiplier,
		}).Error
}

type choiceAggRow struct {
	ChoiceID string
	Total    decimal.Decimal
	Count    int
}

func (s *Store) PoolBetAggregates(ctx context.Context, poolID string) (*repository.PoolAggregates, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []choiceAggRow
	err := s.db.WithContext(ctx).
		Model(&models.Bet{}).
		Select("choice_id, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("pool_id = ?", poolID).
		Group("choice_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	var uniqueBettors int64
	err = s.db.WithContext(ctx).
		Model(&models.Bet{}).
		Where("pool_id = ?", poolID).
		Distinct("user_id").
		Count(&uniqueBettors).Error
	if err != nil {
		return nil, err
	}

	agg := &repository.PoolAggregates{
		PerChoice:     make(map[string]repository.ChoiceAggregate, len(rows)),
		TotalPool:     decimal.Zero,
		UniqueBettors: int(uniqueBettors),
	}
	for _, row := range rows {
		agg.PerChoice[row.ChoiceID] = repository.ChoiceAggregate{
			ChoiceID: row.ChoiceID,
			Total:    row.Total,
			BetCount: row.Count,
		}
		agg.TotalPool = agg.TotalPool.Add(row.Total)
		agg.BetCount += row.Count
	}
	return agg, nil
}

// --- User streak state ------------------------------------------------------

func (s *Store) GetUserStreak(ctx context.Context, userID string) (*models.UserStreak, error) {
	return s.GetUserStreakTx(ctx, nil, userID)
}

func (s *Store) GetUserStreakTx(ctx context.Context, tx *gorm.DB, userID string) (*models.UserStreak, error) {
	if s == nil || s.db == nil {
		return nil, models.ErrUserNotFound
	}
	var streak models.UserStreak
	err := s.conn(tx).WithContext(ctx).First(&streak, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	return &streak, nil
}

func (s *Store) EnsureUserStreakTx(ctx context.Context, tx *gorm.DB, userID string, now time.Time) (*models.UserStreak, error) {
	if s == nil || s.db == nil {
		return nil, models.ErrUserNotFound
	}
	seed := models.UserStreak{UserID: userID, LastBetDate: &now}
	err := s.conn(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&seed).Error
	if err != nil {
		return nil, err
	}
	return s.GetUserStreakTx(ctx, tx, userID)
}

func (s *Store) SaveUserStreakTx(ctx context.Context, tx *gorm.DB, streak *models.UserStreak) error {
	if s == nil || s.db == nil || streak == nil {
		return nil
	}
	return s.conn(tx).WithContext(ctx).Save(streak).Error
}

// --- Odds snapshots ---------------------------------------------------------

func (s *Store) InsertSnapshot(ctx context.Context, snap *models.OddsSnapshot) error {
	if s == nil || s.db == nil || snap == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(snap).Error
}

func (s *Store) ListSnapshots(ctx context.Context, poolID string, since time.Time, limit int) ([]models.OddsSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Where("pool_id = ?", poolID)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	var snaps []models.OddsSnapshot
	err := query.Order("created_at ASC").Limit(normalizeLimit(limit, 500)).Find(&snaps).Error
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

func (s *Store) DeleteSnapshotsBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if before.IsZero() {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&models.OddsSnapshot{})
	return res.RowsAffected, res.Error
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 || limit > 1000 {
		return fallback
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
