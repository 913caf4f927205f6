package events

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/pkg/lifecycle"
)

// OrderSubscriber feeds order events from NATS into the controller.
type OrderSubscriber struct {
	subscriber events.Subscriber
	topic      string
	dispatch   *dispatcher
	logger     apt.Logger
}

// NewOrderSubscriber listens on topic; an empty topic means event.OrderStatusTopic.
// Events whose source equals self are ignored.
func NewOrderSubscriber(subscriber events.Subscriber, sink lifecycle.Sink, topic, self string, logger apt.Logger) *OrderSubscriber {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if topic == "" {
		topic = event.OrderStatusTopic
	}
	return &OrderSubscriber{
		subscriber: subscriber,
		topic:      topic,
		dispatch:   newDispatcher(sink, self, logger),
		logger:     logger,
	}
}

func (s *OrderSubscriber) Start(ctx context.Context) error {
	s.logger.Info("Starting OrderSubscriber", "topic", s.topic)

	if err := s.subscriber.Subscribe(ctx, s.topic, s.dispatch.handle); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.topic, err)
	}

	s.logger.Info("OrderSubscriber started successfully")
	return nil
}

// Stop is a no-op; the subscription ends when the connection closes.
func (s *OrderSubscriber) Stop(ctx context.Context) error {
	return nil
}
