package display

import (
	"context"
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/pkg/lifecycle"
)

const hubBuffer = 32

// Hub fans controller notifications out to connected displays.
type Hub struct {
	logger apt.Logger

	mu          sync.RWMutex
	subscribers map[string]chan lifecycle.Notification
}

func NewHub(logger apt.Logger) *Hub {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Hub{
		logger:      logger,
		subscribers: make(map[string]chan lifecycle.Notification),
	}
}

// Notify implements lifecycle.Notifier.
func (h *Hub) Notify(ctx context.Context, n lifecycle.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- n:
		default:
			h.logger.Info("subscriber channel full, dropping notification", "subscriber_id", id)
		}
	}
}

func (h *Hub) Subscribe(id string) <-chan lifecycle.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.subscribers[id]; ok {
		close(old)
	}
	ch := make(chan lifecycle.Notification, hubBuffer)
	h.subscribers[id] = ch
	return ch
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
