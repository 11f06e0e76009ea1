package signal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"storypool/internal/config"
	"storypool/internal/models"
	"storypool/internal/repository"
)

// SnapshotService appends OddsSnapshot rows for open pools. Capture is
// best-effort and display-only: a skipped or failed snapshot degrades
// momentum fidelity, never settlement correctness.
type SnapshotService struct {
	Repo   repository.Repository
	Hub    *Hub
	Logger *zap.Logger
	Config config.SnapshotsConfig
}

// RecordSnapshot captures the pool's current bet distribution. Only OPEN
// pools are snapshotted; a closed distribution no longer moves.
func (s *SnapshotService) RecordSnapshot(ctx context.Context, poolID string) (*models.OddsSnapshot, error) {
	pool, err := s.Repo.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if pool.Status != models.PoolOpen {
		return nil, models.ErrPoolNotOpen
	}
	agg, err := s.Repo.PoolBetAggregates(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("aggregate bets: %w", err)
	}

	snap := &models.OddsSnapshot{
		PoolID: poolID,
		Odds: datatypes.NewJSONType(models.OddsBreakdown{
			SchemaVersion: models.OddsBreakdownVersion,
			PerChoice:     CurrentOdds(pool.Choices, agg),
		}),
		TotalPool:     agg.TotalPool,
		TotalBets:     agg.BetCount,
		UniqueBettors: agg.UniqueBettors,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.Repo.InsertSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	if s.Hub != nil {
		s.Hub.Publish(*snap)
	}
	return snap, nil
}

// SnapshotOpenPools is the periodic job body. Per-pool failures are logged
// and skipped so one bad pool cannot starve the rest.
func (s *SnapshotService) SnapshotOpenPools(ctx context.Context) {
	status := models.PoolOpen
	pools, err := s.Repo.ListPools(ctx, repository.ListPoolsParams{Status: &status})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("snapshot sweep: list open pools failed", zap.Error(err))
		}
		return
	}
	for _, pool := range pools {
		if _, err := s.RecordSnapshot(ctx, pool.ID); err != nil {
			if s.Logger != nil {
				s.Logger.Warn("snapshot sweep: pool skipped",
					zap.String("pool_id", pool.ID),
					zap.Error(err),
				)
			}
		}
	}
}

// PruneSnapshots drops snapshot history older than the retention window.
func (s *SnapshotService) PruneSnapshots(ctx context.Context) {
	retention := s.Config.Retention
	if retention <= 0 {
		return
	}
	n, err := s.Repo.DeleteSnapshotsBefore(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("snapshot prune failed", zap.Error(err))
		}
		return
	}
	if n > 0 && s.Logger != nil {
		s.Logger.Info("snapshot prune", zap.Int64("deleted", n))
	}
}
