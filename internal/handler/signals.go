package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storypool/internal/config"
	"storypool/internal/repository"
	"storypool/internal/signal"
)

type SignalHandler struct {
	Repo      repository.Repository
	Calc      *signal.Calculator
	Snapshots *signal.SnapshotService
	Provider  signal.ConfidenceProvider
	Config    config.SignalConfig
	Logger    *zap.Logger
}

func (h *SignalHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/pools/:id")
	group.GET("/odds", h.odds)
	group.GET("/momentum", h.momentum)
	group.GET("/nvi", h.nvi)
	group.GET("/snapshots", h.listSnapshots)
	group.POST("/snapshots", h.recordSnapshot)
}

func (h *SignalHandler) odds(c *gin.Context) {
	pool, err := h.Repo.GetPool(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	agg, err := h.Repo.PoolBetAggregates(c.Request.Context(), pool.ID)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	odds := signal.CurrentOdds(pool.Choices, agg)
	Ok(c, gin.H{
		"pool_id":            pool.ID,
		"odds":               odds,
		"consensus_strength": signal.ConsensusStrength(odds),
		"urgency":            signal.UrgencyFor(time.Until(pool.ClosesAt)),
		"total_pool":         agg.TotalPool,
		"total_bets":         agg.BetCount,
		"unique_bettors":     agg.UniqueBettors,
	}, nil)
}

func (h *SignalHandler) momentum(c *gin.Context) {
	pool, err := h.Repo.GetPool(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	window := h.Config.MomentumWindow
	if raw := c.Query("window"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			window = d
		}
	}
	// Fetch enough history to cover the window with slack for jittered capture.
	since := time.Now().UTC().Add(-2 * window)
	snaps, err := h.Repo.ListSnapshots(c.Request.Context(), pool.ID, since, 0)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	delta := signal.Momentum(snaps, window)
	Ok(c, gin.H{
		"pool_id":  pool.ID,
		"window":   window.String(),
		"momentum": delta,
	}, map[string]any{"snapshots": len(snaps)})
}

func (h *SignalHandler) nvi(c *gin.Context) {
	ctx := c.Request.Context()
	pool, err := h.Repo.GetPool(ctx, c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	agg, err := h.Repo.PoolBetAggregates(ctx, pool.ID)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	odds := signal.CurrentOdds(pool.Choices, agg)

	var samples []signal.ConfidenceSample
	if h.Provider != nil {
		// Missing AI input degrades the NVI confidence, it never fails the request.
		samples, err = h.Provider.Samples(ctx, pool)
		if err != nil && h.Logger != nil {
			h.Logger.Warn("confidence provider failed",
				zap.String("pool_id", pool.ID),
				zap.Error(err),
			)
		}
	}

	res := h.Calc.NVI(odds, samples, agg.BetCount)
	Ok(c, gin.H{
		"pool_id": pool.ID,
		"nvi":     res,
		"urgency": signal.UrgencyFor(time.Until(pool.ClosesAt)),
	}, nil)
}

func (h *SignalHandler) listSnapshots(c *gin.Context) {
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			since = ts.UTC()
		}
	}
	snaps, err := h.Repo.ListSnapshots(c.Request.Context(), c.Param("id"), since, intQuery(c, "limit", 0))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, snaps, map[string]any{"count": len(snaps)})
}

func (h *SignalHandler) recordSnapshot(c *gin.Context) {
	snap, err := h.Snapshots.RecordSnapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	Ok(c, snap, nil)
}
