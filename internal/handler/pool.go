package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storypool/internal/ledger"
	"storypool/internal/models"
	"storypool/internal/repository"
	"storypool/internal/settlement"
)

type PoolHandler struct {
	Repo   repository.Repository
	Ledger *ledger.Service
	Engine *settlement.Engine
	Logger *zap.Logger
}

func (h *PoolHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/pools")
	group.POST("", h.create)
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.GET("/:id/totals", h.totals)
	group.POST("/:id/bets", h.placeBet)
	group.POST("/:id/close", h.closePool)
	group.POST("/:id/settle", h.settle)
}

type createPoolRequest struct {
	ID        string   `json:"id"`
	ChapterID *string  `json:"chapter_id"`
	Title     string   `json:"title" binding:"required"`
	Choices   []string `json:"choices" binding:"required,min=2"`
	OpensAt   string   `json:"opens_at"`
	ClosesAt  string   `json:"closes_at" binding:"required"`
	MinBet    string   `json:"min_bet"`
	MaxBet    string   `json:"max_bet"`
}

func (h *PoolHandler) create(c *gin.Context) {
	var req createPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	closesAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ClosesAt))
	if err != nil {
		Error(c, http.StatusBadRequest, "closes_at must be RFC3339", nil)
		return
	}
	opensAt := time.Now().UTC()
	if strings.TrimSpace(req.OpensAt) != "" {
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(req.OpensAt)); err == nil {
			opensAt = ts.UTC()
		}
	}
	if !closesAt.After(opensAt) {
		Error(c, http.StatusBadRequest, "closes_at must be after opens_at", nil)
		return
	}

	pool := &models.Pool{
		ID:        strings.TrimSpace(req.ID),
		ChapterID: req.ChapterID,
		Title:     strings.TrimSpace(req.Title),
		Status:    models.PoolOpen,
		MinBet:    parseDecimalOrZero(req.MinBet),
		MaxBet:    parseDecimalOrZero(req.MaxBet),
		OpensAt:   opensAt,
		ClosesAt:  closesAt.UTC(),
	}
	if pool.ID == "" {
		pool.ID = uuid.NewString()
	}
	for i, label := range req.Choices {
		label = strings.TrimSpace(label)
		if label == "" {
			Error(c, http.StatusBadRequest, "empty choice label", nil)
			return
		}
		pool.Choices = append(pool.Choices, models.Choice{
			ID:       uuid.NewString(),
			PoolID:   pool.ID,
			Label:    label,
			Position: i,
		})
	}

	if err := h.Repo.CreatePool(c.Request.Context(), pool); err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, pool, nil)
}

func (h *PoolHandler) list(c *gin.Context) {
	params := repository.ListPoolsParams{
		Limit:  intQuery(c, "limit", 0),
		Offset: intQuery(c, "offset", 0),
	}
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("status"))); raw != "" {
		status := models.PoolStatus(raw)
		params.Status = &status
	}
	pools, err := h.Repo.ListPools(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, pools, map[string]any{"count": len(pools)})
}

func (h *PoolHandler) get(c *gin.Context) {
	pool, err := h.Repo.GetPool(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	Ok(c, pool, nil)
}

func (h *PoolHandler) totals(c *gin.Context) {
	totals, err := h.Ledger.CurrentTotals(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	Ok(c, totals, nil)
}

type placeBetRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	ChoiceID string `json:"choice_id" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
}

func (h *PoolHandler) placeBet(c *gin.Context) {
	var req placeBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		Error(c, http.StatusBadRequest, "amount must be a decimal string", nil)
		return
	}
	bet, err := h.Ledger.RecordBet(c.Request.Context(), c.Param("id"), strings.TrimSpace(req.UserID), strings.TrimSpace(req.ChoiceID), amount)
	if err != nil {
		DomainError(c, err)
		return
	}
	Ok(c, bet, nil)
}

func (h *PoolHandler) closePool(c *gin.Context) {
	if err := h.Ledger.ClosePool(c.Request.Context(), c.Param("id")); err != nil {
		DomainError(c, err)
		return
	}
	Ok(c, gin.H{"pool_id": c.Param("id"), "status": models.PoolClosed}, nil)
}

type settleRequest struct {
	WinningChoiceID string `json:"winning_choice_id" binding:"required"`
}

func (h *PoolHandler) settle(c *gin.Context) {
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	result, err := h.Engine.Settle(c.Request.Context(), c.Param("id"), strings.TrimSpace(req.WinningChoiceID))
	if err != nil {
		DomainError(c, err)
		return
	}
	Ok(c, result, nil)
}

func parseDecimalOrZero(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return v
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
