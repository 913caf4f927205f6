package event

import (
	"encoding/json"
	"time"
)

const (
	// OrderStatusTopic carries order lifecycle events between POS services.
	OrderStatusTopic = "orders.status"
	// OrderEventsStream is the JetStream stream bound to OrderStatusTopic.
	OrderEventsStream = "ORDER_EVENTS"

	EventOrderCreated       = "order.created"
	EventOrderUpdated       = "order.updated"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderRemoved       = "order.removed"
	EventOrderSnapshot      = "order.snapshot"
)

// OrderEvent is published whenever an order changes in the store or on a display.
// Order holds the full representation when the producer has one; consumers
// that receive an event without it resynchronize from the store.
type OrderEvent struct {
	EventType      string          `json:"event_type"`
	OccurredAt     time.Time       `json:"occurred_at"`
	OrderID        int64           `json:"order_id"`
	Status         string          `json:"status,omitempty"`
	PreviousStatus string          `json:"previous_status,omitempty"`
	Source         string          `json:"source,omitempty"`
	Actor          string          `json:"actor,omitempty"`
	Order          json.RawMessage `json:"order,omitempty"`
}

// HasOrder reports whether the event carries a full order payload.
func (e OrderEvent) HasOrder() bool {
	return len(e.Order) > 0 && string(e.Order) != "null"
}
