package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/pkg/enums/orderstatus"
)

const defaultSubscriberBuffer = 100

var errStaleRefresh = errors.New("stale refresh")

// Store is the authoritative source of orders.
type Store interface {
	ListOrders(ctx context.Context) ([]Order, error)
	// UpdateStatus returns the updated order when the store sends one back.
	UpdateStatus(ctx context.Context, id OrderID, status orderstatus.Status) (*Order, error)
}

// Sink is what change sources feed.
type Sink interface {
	Refresh(ctx context.Context, silent bool) error
	Apply(ctx context.Context, order Order) error
}

type Option func(*Controller)

func WithLogger(logger apt.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

func WithObservers(observers ...MutationObserver) Option {
	return func(c *Controller) {
		for _, o := range observers {
			if o != nil {
				c.observers = append(c.observers, o)
			}
		}
	}
}

// WithStrictTransitions toggles local validation against the status state machine.
func WithStrictTransitions(strict bool) Option {
	return func(c *Controller) {
		c.strict = strict
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func WithSubscriberBuffer(size int) Option {
	return func(c *Controller) {
		if size > 0 {
			c.bufferSize = size
		}
	}
}

// Controller keeps a cached copy of the store's orders, applies optimistic
// status changes and reconciles the cache with the store.
type Controller struct {
	mu     sync.RWMutex
	store  Store
	orders map[OrderID]*Order
	// ids keeps display order as returned by the last applied refresh.
	ids []OrderID

	// pending counts in-flight mutations per order.
	pending      map[OrderID]int
	lastMutation map[OrderID]uint64
	seq          uint64
	refreshGen   uint64
	appliedGen   uint64
	loading      int
	closed       bool

	subMu       sync.RWMutex
	subscribers map[string]chan Change
	bufferSize  int

	strict    bool
	notifier  Notifier
	observers []MutationObserver
	now       func() time.Time
	logger    apt.Logger
	wg        sync.WaitGroup
}

// NewController creates a controller backed by store. Strict transitions are on by default.
func NewController(store Store, opts ...Option) *Controller {
	c := &Controller{
		store:        store,
		orders:       make(map[OrderID]*Order),
		pending:      make(map[OrderID]int),
		lastMutation: make(map[OrderID]uint64),
		subscribers:  make(map[string]chan Change),
		bufferSize:   defaultSubscriberBuffer,
		strict:       true,
		notifier:     Notifiers{},
		now:          time.Now,
		logger:       apt.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Strict reports whether transitions are validated locally.
func (c *Controller) Strict() bool {
	return c.strict
}

// Refresh fetches the full collection and synchronizes the cache with it.
// A silent refresh does not toggle the loading flag and does not notify on failure.
func (c *Controller) Refresh(ctx context.Context, silent bool) error {
	if c.store == nil {
		return ErrNoStore
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.refreshGen++
	gen := c.refreshGen
	startSeq := c.seq
	if !silent {
		c.loading++
	}
	c.mu.Unlock()

	orders, err := c.store.ListOrders(ctx)

	if !silent {
		c.mu.Lock()
		c.loading--
		c.mu.Unlock()
	}

	if err != nil {
		if silent {
			c.logger.Debug("background refresh failed", "error", err)
		} else {
			c.logger.Error("cannot refresh orders", "error", err)
			c.notify(ctx, Notification{Level: LevelError, Message: "Failed to fetch orders"})
		}
		return fmt.Errorf("cannot refresh orders: %w", err)
	}

	err = c.sync(gen, startSeq, orders)
	if errors.Is(err, errStaleRefresh) {
		c.logger.Debug("discarding stale refresh", "generation", gen)
		return nil
	}
	return err
}

// sync merges a fetched collection into the cache. Orders with a pending
// mutation, or mutated after the refresh started, keep their local version.
// Changes are delivered before the lock is released.
func (c *Controller) sync(gen, startSeq uint64, incoming []Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if gen < c.appliedGen {
		return errStaleRefresh
	}
	c.appliedGen = gen

	now := c.now()
	next := make(map[OrderID]*Order, len(incoming))
	ids := make([]OrderID, 0, len(incoming))
	var changes []Change

	for i := range incoming {
		in := incoming[i]
		if _, dup := next[in.ID]; dup {
			continue
		}

		cur, exists := c.orders[in.ID]
		switch {
		case exists && c.protectedLocked(in.ID, startSeq):
			next[in.ID] = cur
		case !exists:
			o := in.Clone()
			next[in.ID] = &o
			changes = append(changes, Change{Kind: ChangeAdded, OrderID: in.ID, Order: clonePtr(o), At: now})
		case !cur.Equal(in):
			o := in.Clone()
			next[in.ID] = &o
			changes = append(changes, Change{
				Kind:     ChangeUpdated,
				OrderID:  in.ID,
				Order:    clonePtr(o),
				Previous: clonePtr(*cur),
				At:       now,
			})
		default:
			next[in.ID] = cur
		}
		ids = append(ids, in.ID)
	}

	for _, id := range c.ids {
		if _, kept := next[id]; kept {
			continue
		}
		if c.protectedLocked(id, startSeq) {
			next[id] = c.orders[id]
			ids = append(ids, id)
			continue
		}
		changes = append(changes, Change{Kind: ChangeRemoved, OrderID: id, Previous: clonePtr(*c.orders[id]), At: now})
	}

	if reordered(c.ids, ids, c.orders, next) {
		changes = append(changes, Change{Kind: ChangeReordered, IDs: append([]OrderID(nil), ids...), At: now})
	}

	c.orders = next
	c.ids = ids
	c.broadcastLocked(changes)
	return nil
}

func (c *Controller) protectedLocked(id OrderID, startSeq uint64) bool {
	return c.pending[id] > 0 || c.lastMutation[id] > startSeq
}

// reordered reports whether the orders present before and after moved relative to each other.
func reordered(before, after []OrderID, old, next map[OrderID]*Order) bool {
	a := make([]OrderID, 0, len(before))
	for _, id := range before {
		if _, ok := next[id]; ok {
			a = append(a, id)
		}
	}
	b := make([]OrderID, 0, len(after))
	for _, id := range after {
		if _, ok := old[id]; ok {
			b = append(b, id)
		}
	}
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}

// ChangeStatus applies status optimistically and confirms it with the store.
// On failure the cache is resynchronized with a silent refresh.
func (c *Controller) ChangeStatus(ctx context.Context, id OrderID, status orderstatus.Status) error {
	m, err := c.begin(ctx, id, status)
	if err != nil || m == nil {
		return err
	}
	return c.complete(ctx, *m)
}

// ChangeStatusAsync applies the optimistic update before returning and
// completes the store round trip in the background.
func (c *Controller) ChangeStatusAsync(ctx context.Context, id OrderID, status orderstatus.Status) <-chan error {
	done := make(chan error, 1)

	m, err := c.begin(ctx, id, status)
	if err != nil || m == nil {
		done <- err
		close(done)
		return done
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		done <- c.complete(ctx, *m)
		close(done)
	}()

	return done
}

// Wait blocks until background mutations started by ChangeStatusAsync finish.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) begin(ctx context.Context, id OrderID, to orderstatus.Status) (*Mutation, error) {
	if c.store == nil {
		return nil, ErrNoStore
	}

	actor := ActorFrom(ctx)

	if orderstatus.ByName(to.Code()) == nil {
		err := fmt.Errorf("%w: %q", ErrUnknownStatus, to.Code())
		c.observe(ctx, Mutation{OrderID: id, To: to, Outcome: OutcomeRejected, Actor: actor, Err: err, At: c.now()})
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}

	cur, exists := c.orders[id]
	if c.strict {
		var rejected error
		switch {
		case !exists:
			rejected = fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
		case cur.Status == to:
			c.mu.Unlock()
			return nil, nil
		case !orderstatus.CanTransition(cur.Status, to):
			rejected = &TransitionError{OrderID: id, From: cur.Status, To: to}
		}
		if rejected != nil {
			m := Mutation{OrderID: id, To: to, Outcome: OutcomeRejected, Actor: actor, Err: rejected, At: c.now()}
			if exists {
				m.From = cur.Status
			}
			c.mu.Unlock()
			c.observe(ctx, m)
			return nil, rejected
		}
	}

	c.seq++
	m := &Mutation{Seq: c.seq, OrderID: id, To: to, Outcome: OutcomeOptimistic, Actor: actor, At: c.now()}
	c.lastMutation[id] = m.Seq
	c.pending[id]++

	var changes []Change
	if exists {
		m.From = cur.Status
		prev := cur.Clone()
		cur.Status = to
		changes = append(changes, Change{
			Kind:       ChangeUpdated,
			OrderID:    id,
			Order:      clonePtr(*cur),
			Previous:   &prev,
			Optimistic: true,
			At:         m.At,
		})
	}
	c.broadcastLocked(changes)
	c.mu.Unlock()

	c.observe(ctx, *m)
	return m, nil
}

func (c *Controller) complete(ctx context.Context, m Mutation) error {
	updated, err := c.store.UpdateStatus(ctx, m.OrderID, m.To)
	if err != nil {
		return c.fail(ctx, m, err)
	}
	c.confirm(ctx, m, updated)
	return nil
}

func (c *Controller) confirm(ctx context.Context, m Mutation, updated *Order) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug("discarding late confirmation", "order_id", m.OrderID)
		return
	}
	c.releaseLocked(m.OrderID)

	var changes []Change
	if updated != nil && updated.ID == m.OrderID && updated.Status.Code() != "" && c.lastMutation[m.OrderID] == m.Seq {
		if cur, ok := c.orders[m.OrderID]; ok && !cur.Equal(*updated) {
			prev := cur.Clone()
			*cur = updated.Clone()
			changes = append(changes, Change{
				Kind:     ChangeUpdated,
				OrderID:  m.OrderID,
				Order:    clonePtr(*cur),
				Previous: &prev,
				At:       c.now(),
			})
		}
	}
	c.broadcastLocked(changes)
	c.mu.Unlock()


	msg, desc := successMessage(m.From, m.To)
	c.notify(ctx, Notification{Level: LevelSuccess, Message: msg, Description: desc, OrderID: m.OrderID})

	m.Outcome = OutcomeConfirmed
	m.Order = updated
	m.At = c.now()
	c.observe(ctx, m)
}

func (c *Controller) fail(ctx context.Context, m Mutation, cause error) error {
	err := fmt.Errorf("cannot update order %d to %s: %w", m.OrderID, m.To, cause)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return err
	}
	c.releaseLocked(m.OrderID)
	c.mu.Unlock()

	c.logger.Error("status update failed", "order_id", m.OrderID, "status", m.To.Code(), "error", cause)
	c.notify(ctx, Notification{Level: LevelError, Message: "Failed to update status", OrderID: m.OrderID})

	m.Outcome = OutcomeFailed
	m.Err = cause
	m.At = c.now()
	c.observe(ctx, m)

	if rerr := c.Refresh(context.WithoutCancel(ctx), true); rerr != nil {
		c.logger.Debug("corrective refresh failed", "order_id", m.OrderID, "error", rerr)
	}
	return err
}

func (c *Controller) releaseLocked(id OrderID) {
	if c.pending[id] <= 1 {
		delete(c.pending, id)
		return
	}
	c.pending[id]--
}

// Apply upserts a full order received from a push source.
// It is ignored while a mutation for the order is in flight.
func (c *Controller) Apply(ctx context.Context, order Order) error {
	if orderstatus.ByName(order.Status.Code()) == nil {
		return fmt.Errorf("order %d: %w: %q", order.ID, ErrUnknownStatus, order.Status.Code())
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.pending[order.ID] > 0 {
		c.mu.Unlock()
		c.logger.Debug("skipping pushed order with pending mutation", "order_id", order.ID)
		return nil
	}

	var change *Change
	now := c.now()
	if cur, ok := c.orders[order.ID]; ok {
		if !cur.Equal(order) {
			prev := cur.Clone()
			*cur = order.Clone()
			change = &Change{Kind: ChangeUpdated, OrderID: order.ID, Order: clonePtr(*cur), Previous: &prev, At: now}
		}
	} else {
		o := order.Clone()
		c.orders[order.ID] = &o
		c.ids = append([]OrderID{order.ID}, c.ids...)
		change = &Change{Kind: ChangeAdded, OrderID: order.ID, Order: clonePtr(o), At: now}
	}
	if change != nil {
		c.broadcastLocked([]Change{*change})
	}
	c.mu.Unlock()
	return nil
}

// Orders returns a copy of the cache in display order.
func (c *Controller) Orders() []Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() []Order {
	result := make([]Order, 0, len(c.ids))
	for _, id := range c.ids {
		if o := c.orders[id]; o != nil {
			result = append(result, o.Clone())
		}
	}
	return result
}

// Get returns a copy of one cached order.
func (c *Controller) Get(id OrderID) (Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.orders[id]
	if !ok {
		return Order{}, false
	}
	return o.Clone(), true
}

// Pending reports whether a mutation for id is in flight.
func (c *Controller) Pending(id OrderID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pending[id] > 0
}

// Loading reports whether a user-initiated refresh is in flight.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading > 0
}

func (c *Controller) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// Subscribe registers a buffered change channel under id.
// Subscribing again with the same id replaces the previous channel.
func (c *Controller) Subscribe(id string) <-chan Change {
	ch := make(chan Change, c.bufferSize)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		close(ch)
		return ch
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()
	if old, ok := c.subscribers[id]; ok {
		close(old)
	}
	c.subscribers[id] = ch
	return ch
}

func (c *Controller) Unsubscribe(id string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if ch, ok := c.subscribers[id]; ok {
		delete(c.subscribers, id)
		close(ch)
	}
}

// broadcastLocked delivers changes in cache order. The caller holds c.mu,
// so c.mu is always taken before c.subMu.
func (c *Controller) broadcastLocked(changes []Change) {
	if len(changes) == 0 {
		return
	}

	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, change := range changes {
		for id, ch := range c.subscribers {
			select {
			case ch <- change:
			default:
				c.logger.Info("subscriber channel full, dropping change", "subscriber_id", id, "order_id", change.OrderID)
			}
		}
	}
}

func (c *Controller) notify(ctx context.Context, n Notification) {
	if n.At.IsZero() {
		n.At = c.now()
	}
	c.notifier.Notify(ctx, n)
}

func (c *Controller) observe(ctx context.Context, m Mutation) {
	for _, o := range c.observers {
		o.OnMutation(ctx, m)
	}
}

// Close stops the controller. Store responses arriving afterwards are discarded.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	c.subMu.Lock()
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
	c.subMu.Unlock()
	c.mu.Unlock()
	return nil
}

func clonePtr(o Order) *Order {
	c := o.Clone()
	return &c
}
