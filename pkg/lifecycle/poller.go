package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
)

// DefaultPollInterval matches the kitchen display refresh cadence.
const DefaultPollInterval = 10 * time.Second

var ErrAlreadyStarted = errors.New("source already started")

// Source is a way for the controller to learn about order changes.
type Source interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Poller refreshes a sink on a fixed interval. The first refresh is user
// visible; later ones are silent.
type Poller struct {
	sink     Sink
	interval time.Duration
	logger   apt.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(sink Sink, interval time.Duration, logger apt.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Poller{
		sink:     sink,
		interval: interval,
		logger:   logger,
	}
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Start launches the polling loop. Cancelling ctx or calling Stop ends it.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	p.logger.Info("starting order poller", "interval", p.interval.String())
	go p.run(loopCtx, p.done)
	return nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if err := p.sink.Refresh(ctx, false); err != nil && ctx.Err() == nil {
		p.logger.Error("initial order refresh failed", "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.sink.Refresh(ctx, true); errors.Is(err, ErrClosed) {
				p.logger.Info("controller closed, stopping poller")
				return
			}
		}
	}
}

// Stop ends the loop and waits for it to exit or for ctx to expire.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		p.logger.Info("order poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
