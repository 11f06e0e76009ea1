package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"storypool/internal/signal"
)

// StreamHandler pushes odds snapshots over a websocket as they are recorded.
// Subscribers ride the snapshot hub; a client that cannot keep up simply
// misses frames (snapshots are display-only).
type StreamHandler struct {
	Hub    *signal.Hub
	Logger *zap.Logger
}

const streamWriteTimeout = 10 * time.Second

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/pools/:id/stream", h.stream)
	r.GET("/api/v1/stream", h.stream)
}

func (h *StreamHandler) stream(c *gin.Context) {
	poolID := c.Param("id")

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("ws accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ctx := c.Request.Context()
	snaps, cancel := h.Hub.Subscribe(poolID, 32)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, streamWriteTimeout)
			err := wsjson.Write(writeCtx, conn, snap)
			cancelWrite()
			if err != nil {
				return
			}
		}
	}
}
