package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/pkg/lifecycle"
)

// dispatcher turns order events into controller calls. Events carrying a
// full order are applied; anything else triggers one silent refresh at a time.
type dispatcher struct {
	sink       lifecycle.Sink
	source     string
	logger     apt.Logger
	refreshing atomic.Bool
}

func newDispatcher(sink lifecycle.Sink, source string, logger apt.Logger) *dispatcher {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &dispatcher{sink: sink, source: source, logger: logger}
}

func (d *dispatcher) handle(ctx context.Context, msg []byte) error {
	var evt event.OrderEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		d.logger.Error("cannot decode order event", "error", err)
		return nil
	}

	if d.source != "" && evt.Source == d.source {
		return nil
	}

	switch evt.EventType {
	case event.EventOrderCreated, event.EventOrderUpdated, event.EventOrderStatusChanged, event.EventOrderSnapshot:
		if evt.HasOrder() {
			return d.apply(ctx, evt)
		}
	case event.EventOrderRemoved:
	default:
		d.logger.Debug("ignoring order event", "event_type", evt.EventType)
		return nil
	}

	return d.refresh(ctx)
}

func (d *dispatcher) apply(ctx context.Context, evt event.OrderEvent) error {
	var order lifecycle.Order
	if err := json.Unmarshal(evt.Order, &order); err != nil {
		d.logger.Error("cannot decode order in event, refreshing", "order_id", evt.OrderID, "error", err)
		return d.refresh(ctx)
	}

	err := d.sink.Apply(ctx, order)
	if errors.Is(err, lifecycle.ErrClosed) {
		return nil
	}
	return err
}

func (d *dispatcher) refresh(ctx context.Context) error {
	if !d.refreshing.CompareAndSwap(false, true) {
		return nil
	}
	defer d.refreshing.Store(false)

	err := d.sink.Refresh(ctx, true)
	if errors.Is(err, lifecycle.ErrClosed) {
		return nil
	}
	return err
}
