package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storypool/internal/models"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// DomainError maps the core's error taxonomy onto HTTP statuses. Conflict
// (409) marks state-machine rejections so callers can tell "already done"
// from a bad request.
func DomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrPoolNotFound),
		errors.Is(err, models.ErrChoiceNotFound),
		errors.Is(err, models.ErrUserNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, models.ErrInvalidBetAmount):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, models.ErrPoolNotOpen),
		errors.Is(err, models.ErrPoolStillOpen),
		errors.Is(err, models.ErrPoolAlreadyResolved):
		Error(c, http.StatusConflict, err.Error(), nil)
	default:
		Error(c, http.StatusInternalServerError, err.Error(), nil)
	}
}
