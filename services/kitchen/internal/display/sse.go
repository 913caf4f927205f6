package display

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const keepaliveInterval = 30 * time.Second

// Events streams the board, then controller changes and notifications, as SSE.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := uuid.New().String()
	log := h.log(r).With("subscriber_id", subscriberID)
	log.Info("new SSE connection")

	changes := h.ctrl.Subscribe(subscriberID)
	defer h.ctrl.Unsubscribe(subscriberID)

	notifications := h.hub.Subscribe(subscriberID)
	defer h.hub.Unsubscribe(subscriberID)

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	if err := sendSSEEvent(w, "board", h.ctrl.Board(h.now())); err != nil {
		log.Error("failed to send board", "error", err)
	}
	flush(w)

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info("SSE client disconnected")
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flush(w)

		case c, ok := <-changes:
			if !ok {
				log.Info("order change channel closed")
				return
			}
			if err := sendSSEEvent(w, "order-"+string(c.Kind), c); err != nil {
				log.Error("failed to send order change", "error", err)
			}

		case n, ok := <-notifications:
			if !ok {
				log.Info("notification channel closed")
				return
			}
			if err := sendSSEEvent(w, "notification", n); err != nil {
				log.Error("failed to send notification", "error", err)
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flush(w)
	return nil
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
