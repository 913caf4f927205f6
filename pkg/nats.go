package pkg

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/nats-io/nats.go"
)

// NATSOption customizes a NATS publisher or subscriber.
type NATSOption func(*natsOptions)

type natsOptions struct {
	name   string
	logger apt.Logger
}

// WithNATSName sets the client name reported to the server.
func WithNATSName(name string) NATSOption {
	return func(o *natsOptions) {
		o.name = name
	}
}

// WithNATSLogger sets the logger used for connection and handler errors.
func WithNATSLogger(logger apt.Logger) NATSOption {
	return func(o *natsOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func connectNATS(url string, opts []NATSOption) (*nats.Conn, apt.Logger, error) {
	o := natsOptions{name: "pos", logger: apt.NewNoopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	conn, err := nats.Connect(url,
		nats.Name(o.name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, logger, nil
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, opts ...NATSOption) (*NATSPublisher, error) {
	conn, _, err := connectNATS(url, opts)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	return p.conn.Publish(topic, msg)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

type NATSSubscriber struct {
	conn   *nats.Conn
	logger apt.Logger
}

func NewNATSSubscriber(url string, opts ...NATSOption) (*NATSSubscriber, error) {
	conn, logger, err := connectNATS(url, opts)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: conn, logger: logger}, nil
}

func (s *NATSSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	_, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		if err := handler(ctx, msg.Data); err != nil {
			s.logger.Error("NATS handler failed", "topic", topic, "error", err)
		}
	})
	return err
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
