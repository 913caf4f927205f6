package events

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/pkg/lifecycle"
	"github.com/segmentio/kafka-go"
)

const kafkaRetryDelay = time.Second

// messageReader is the subset of *kafka.Reader the source uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// KafkaSource consumes order events from a Kafka topic as a consumer group.
type KafkaSource struct {
	reader   messageReader
	topic    string
	dispatch *dispatcher
	logger   apt.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewKafkaSource(cfg KafkaConfig, sink lifecycle.Sink, self string, logger apt.Logger) *KafkaSource {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
	})
	return newKafkaSource(reader, cfg.Topic, sink, self, logger)
}

func newKafkaSource(reader messageReader, topic string, sink lifecycle.Sink, self string, logger apt.Logger) *KafkaSource {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &KafkaSource{
		reader:   reader,
		topic:    topic,
		dispatch: newDispatcher(sink, self, logger),
		logger:   logger,
	}
}

func (k *KafkaSource) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cancel != nil {
		return lifecycle.ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	k.cancel = cancel
	k.done = make(chan struct{})

	k.logger.Info("Starting Kafka order consumer", "topic", k.topic)
	go k.run(loopCtx, k.done)
	return nil
}

func (k *KafkaSource) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		msg, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			k.logger.Error("Kafka read failed", "topic", k.topic, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(kafkaRetryDelay):
			}
			continue
		}

		if err := k.dispatch.handle(ctx, msg.Value); err != nil {
			k.logger.Error("cannot handle Kafka order event", "topic", k.topic, "offset", msg.Offset, "error", err)
		}
	}
}

func (k *KafkaSource) Stop(ctx context.Context) error {
	k.mu.Lock()
	cancel, done := k.cancel, k.done
	k.cancel, k.done = nil, nil
	k.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		// Closing the reader also unblocks a pending read.
		k.closeReader()
		return ctx.Err()
	}

	if err := k.closeReader(); err != nil {
		return err
	}
	k.logger.Info("Kafka order consumer stopped")
	return nil
}

func (k *KafkaSource) closeReader() error {
	if err := k.reader.Close(); err != nil {
		k.logger.Error("cannot close Kafka reader", "error", err)
		return err
	}
	return nil
}
