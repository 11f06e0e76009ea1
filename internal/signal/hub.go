package signal

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"storypool/internal/models"
)

// Hub fans freshly recorded odds snapshots out to subscribers (websocket
// streams, in-process listeners). Publishing never blocks: a slow subscriber
// drops snapshots, which is acceptable because snapshots are display-only.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string][]chan models.OddsSnapshot
	logger  *zap.Logger
	dropped uint64
}

// allPools is the subscription key for a firehose subscriber.
const allPools = ""

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   map[string][]chan models.OddsSnapshot{},
		logger: logger,
	}
}

// Subscribe registers for snapshots of one pool, or every pool when poolID
// is empty. The returned cancel func must be called to release the channel.
func (h *Hub) Subscribe(poolID string, buf int) (<-chan models.OddsSnapshot, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan models.OddsSnapshot, buf)
	h.mu.Lock()
	h.subs[poolID] = append(h.subs[poolID], ch)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		chans := h.subs[poolID]
		for i, c := range chans {
			if c == ch {
				h.subs[poolID] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

func (h *Hub) Publish(snap models.OddsSnapshot) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, key := range []string{snap.PoolID, allPools} {
		for _, ch := range h.subs[key] {
			select {
			case ch <- snap:
			default:
				if atomic.AddUint64(&h.dropped, 1)%100 == 1 && h.logger != nil {
					h.logger.Warn("snapshot hub dropping for slow subscriber",
						zap.String("pool_id", snap.PoolID),
						zap.Uint64("dropped_total", atomic.LoadUint64(&h.dropped)),
					)
				}
			}
		}
	}
}
