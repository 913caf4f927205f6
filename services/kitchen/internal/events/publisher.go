package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/pkg/lifecycle"
)

const publishTimeout = 2 * time.Second

// StatusPublisher announces confirmed status changes to other displays.
type StatusPublisher struct {
	publisher events.Publisher
	topic     string
	source    string
	logger    apt.Logger
}

func NewStatusPublisher(publisher events.Publisher, topic, source string, logger apt.Logger) *StatusPublisher {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if topic == "" {
		topic = event.OrderStatusTopic
	}
	return &StatusPublisher{
		publisher: publisher,
		topic:     topic,
		source:    source,
		logger:    logger,
	}
}

func (p *StatusPublisher) OnMutation(ctx context.Context, m lifecycle.Mutation) {
	if m.Outcome != lifecycle.OutcomeConfirmed {
		return
	}

	evt := event.OrderEvent{
		EventType:      event.EventOrderStatusChanged,
		OccurredAt:     m.At.UTC(),
		OrderID:        int64(m.OrderID),
		Status:         m.To.Code(),
		PreviousStatus: m.From.Code(),
		Source:         p.source,
		Actor:          m.Actor,
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	if m.Order != nil {
		order, err := json.Marshal(m.Order)
		if err != nil {
			p.logger.Error("cannot encode order for event", "order_id", m.OrderID, "error", err)
		} else {
			evt.Order = order
		}
	}

	data, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error("cannot encode order event", "order_id", m.OrderID, "error", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.publisher.Publish(pubCtx, p.topic, data); err != nil {
		p.logger.Errorf("Failed to publish %s event: %v", evt.EventType, err)
	}
}
