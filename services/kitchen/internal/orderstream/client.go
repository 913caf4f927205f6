package orderstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/pkg/lifecycle"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// Client follows an upstream order stream and feeds it into a sink.
type Client struct {
	addr     string
	status   string
	sink     lifecycle.Sink
	logger   apt.Logger
	dialOpts []grpc.DialOption

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type ClientOption func(*Client)

// WithStatusFilter asks the upstream for one status only.
func WithStatusFilter(status string) ClientOption {
	return func(c *Client) {
		c.status = status
	}
}

// WithDialOptions replaces the default insecure transport options.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(c *Client) {
		c.dialOpts = opts
	}
}

func NewClient(addr string, sink lifecycle.Sink, logger apt.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	c := &Client{
		addr:     addr,
		sink:     sink,
		logger:   logger,
		dialOpts: []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start connects in the background so startup does not block on the upstream.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return lifecycle.ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	c.logger.Info("starting order stream client", "addr", c.addr)
	go c.connectWithRetry(loopCtx, c.done)
	return nil
}

func (c *Client) connectWithRetry(ctx context.Context, done chan struct{}) {
	defer close(done)

	backoff := initialBackoff
	wait := func() bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		return true
	}

	for {
		if ctx.Err() != nil {
			c.logger.Info("order stream client shutdown, stopping connection attempts")
			return
		}

		conn, err := grpc.NewClient(c.addr, c.dialOpts...)
		if err != nil {
			c.logger.Error("failed to create gRPC client", "error", err, "retry_in", backoff.String())
			if !wait() {
				return
			}
			continue
		}

		received, err := c.follow(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Error("order stream interrupted", "error", err, "retry_in", backoff.String())
		}
		if received {
			backoff = initialBackoff
		}
		if !wait() {
			return
		}
	}
}

// follow subscribes and applies events until the stream ends. It reports
// whether any event arrived, which resets the backoff.
func (c *Client) follow(ctx context.Context, conn *grpc.ClientConn) (bool, error) {
	stream, err := conn.NewStream(ctx, &streamDesc, streamMethod)
	if err != nil {
		return false, err
	}

	req, err := structpb.NewStruct(map[string]interface{}{"status": c.status})
	if err != nil {
		return false, err
	}
	if err := stream.SendMsg(req); err != nil {
		return false, err
	}
	if err := stream.CloseSend(); err != nil {
		return false, err
	}

	received := false
	for {
		msg := new(structpb.Struct)
		err := stream.RecvMsg(msg)
		if err == io.EOF {
			c.logger.Info("order stream closed (EOF)")
			return received, nil
		}
		if err != nil {
			return received, err
		}
		if !received {
			c.logger.Info("connected to order stream successfully")
		}
		received = true

		c.handle(ctx, msg)
	}
}

func (c *Client) handle(ctx context.Context, msg *structpb.Struct) {
	evt, err := decodeEvent(msg)
	if err != nil {
		c.logger.Error("cannot decode stream event", "error", err)
		return
	}

	var sinkErr error
	if evt.HasOrder() && evt.EventType != event.EventOrderRemoved {
		var order lifecycle.Order
		if err := json.Unmarshal(evt.Order, &order); err != nil {
			c.logger.Error("cannot decode streamed order", "order_id", evt.OrderID, "error", err)
			sinkErr = c.sink.Refresh(ctx, true)
		} else {
			sinkErr = c.sink.Apply(ctx, order)
		}
	} else {
		sinkErr = c.sink.Refresh(ctx, true)
	}

	if sinkErr != nil && !errors.Is(sinkErr, lifecycle.ErrClosed) {
		c.logger.Error("cannot apply stream event", "order_id", evt.OrderID, "event_type", evt.EventType, "error", sinkErr)
	}
}

// Stop cancels the connection loop and waits for it to exit.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}

	c.logger.Info("stopping order stream client")
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
