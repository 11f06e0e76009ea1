package handler

import (
	"github.com/gin-gonic/gin"

	"storypool/internal/repository"
	"storypool/internal/streak"
)

type StreakHandler struct {
	Repo repository.Repository
}

func (h *StreakHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/users/:id")
	group.GET("/streak", h.get)
	group.GET("/bets", h.bets)
}

func (h *StreakHandler) get(c *gin.Context) {
	st, err := h.Repo.GetUserStreak(c.Request.Context(), c.Param("id"))
	if err != nil {
		DomainError(c, err)
		return
	}
	Ok(c, gin.H{
		"streak":          st,
		"multiplier":      streak.Multiplier(st.CurrentStreak),
		"next_multiplier": streak.Multiplier(st.CurrentStreak + 1),
	}, nil)
}

func (h *StreakHandler) bets(c *gin.Context) {
	bets, err := h.Repo.ListBetsByUser(c.Request.Context(), c.Param("id"), intQuery(c, "limit", 0))
	if err != nil {
		DomainError(c, err)
		return
	}
	Ok(c, bets, map[string]any{"count": len(bets)})
}
