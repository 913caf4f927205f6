package pkg

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSStream publishes and consumes on JetStream so order events survive
// subscriber restarts.
type NATSStream struct {
	conn     *nats.Conn
	js       jetstream.JetStream
	stream   jetstream.Stream
	consumer jetstream.Consumer
	consume  jetstream.ConsumeContext
	topic    string
	logger   apt.Logger
}

// NATSStreamConfig configures a NATSStream instance.
type NATSStreamConfig struct {
	URL          string        // NATS server URL
	StreamName   string        // JetStream stream name (e.g., "ORDER_EVENTS")
	Topic        string        // Subject (e.g., "orders.status")
	ConsumerName string        // Durable consumer name for this display
	MaxAge       time.Duration // Event retention; zero keeps one day
	MaxMsgs      int64         // Maximum number of retained messages (0 = unlimited)
	Replay       bool          // Deliver retained events on first subscribe
	Logger       apt.Logger
}

// NewNATSStream connects and ensures the stream and durable consumer exist.
func NewNATSStream(ctx context.Context, cfg NATSStreamConfig) (*NATSStream, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}

	conn, err := nats.Connect(cfg.URL, nats.Name(cfg.ConsumerName), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	streamConfig := jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{cfg.Topic},
		MaxAge:   cfg.MaxAge,
	}
	if cfg.MaxMsgs > 0 {
		streamConfig.MaxMsgs = cfg.MaxMsgs
	}

	stream, err := js.CreateOrUpdateStream(ctx, streamConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.StreamName, err)
	}

	deliver := jetstream.DeliverNewPolicy
	if cfg.Replay {
		deliver = jetstream.DeliverAllPolicy
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          cfg.ConsumerName,
		Durable:       cfg.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: deliver,
		FilterSubject: cfg.Topic,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update consumer %s: %w", cfg.ConsumerName, err)
	}

	return &NATSStream{
		conn:     conn,
		js:       js,
		stream:   stream,
		consumer: consumer,
		topic:    cfg.Topic,
		logger:   logger,
	}, nil
}

func (s *NATSStream) Publish(ctx context.Context, topic string, msg []byte) error {
	if _, err := s.js.Publish(ctx, topic, msg); err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}
	return nil
}

// SubscribeStream consumes new messages; failed handlers trigger redelivery.
func (s *NATSStream) SubscribeStream(ctx context.Context, handler events.HandlerFunc) error {
	cc, err := s.consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(ctx, msg.Data()); err != nil {
			s.logger.Error("stream handler failed, requesting redelivery", "topic", s.topic, "error", err)
			msg.Nak()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return err
	}
	s.consume = cc
	return nil
}

// Subscribe implements events.Subscriber. The topic is fixed by the consumer.
func (s *NATSStream) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	return s.SubscribeStream(ctx, handler)
}

func (s *NATSStream) Close() error {
	if s.consume != nil {
		s.consume.Stop()
	}
	s.conn.Close()
	return nil
}
