package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/pos/pkg/enums/orderstatus"
	"github.com/appetiteclub/pos/pkg/enums/paymentstatus"
)

// MockStore implements Store for testing
type MockStore struct {
	mu               sync.Mutex
	listCalls        int
	updateCalls      int
	ListOrdersFunc   func(ctx context.Context) ([]Order, error)
	UpdateStatusFunc func(ctx context.Context, id OrderID, status orderstatus.Status) (*Order, error)
}

func (m *MockStore) ListOrders(ctx context.Context) ([]Order, error) {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()
	if m.ListOrdersFunc != nil {
		return m.ListOrdersFunc(ctx)
	}
	return nil, nil
}

func (m *MockStore) UpdateStatus(ctx context.Context, id OrderID, status orderstatus.Status) (*Order, error) {
	m.mu.Lock()
	m.updateCalls++
	m.mu.Unlock()
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return nil, nil
}

func (m *MockStore) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func (m *MockStore) UpdateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCalls
}

// recordingNotifier collects notifications
type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]string, 0, len(r.items))
	for _, n := range r.items {
		msgs = append(msgs, n.Message)
	}
	return msgs
}

// recordingObserver collects mutation outcomes
type recordingObserver struct {
	mu        sync.Mutex
	mutations []Mutation
}

func (r *recordingObserver) OnMutation(ctx context.Context, m Mutation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations = append(r.mutations, m)
}

func (r *recordingObserver) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, 0, len(r.mutations))
	for _, m := range r.mutations {
		out = append(out, m.Outcome)
	}
	return out
}

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newOrder(id OrderID, status orderstatus.Status) Order {
	return Order{
		ID:            id,
		Table:         int64(id) + 100,
		TableNumber:   int(id),
		WaiterName:    "asha",
		Status:        status,
		PaymentStatus: paymentstatus.Statuses.Unpaid,
		Total:         1250,
		CreatedAt:     testNow.Add(-time.Duration(id) * time.Minute),
		Items: []Item{
			{ID: int64(id) * 10, MenuItem: 1, MenuItemName: "Croissant", Price: 625, Quantity: 2},
		},
	}
}

// listOf returns a ListOrdersFunc that serves copies of orders
func listOf(orders ...Order) func(ctx context.Context) ([]Order, error) {
	return func(ctx context.Context) ([]Order, error) {
		out := make([]Order, len(orders))
		for i := range orders {
			out[i] = orders[i].Clone()
		}
		return out, nil
	}
}

func seeded(t interface{ Fatalf(string, ...any) }, store *MockStore, opts ...Option) *Controller {
	c := NewController(store, opts...)
	if err := c.Refresh(context.Background(), true); err != nil {
		t.Fatalf("seed refresh error = %v", err)
	}
	return c
}

func statusOf(c *Controller, id OrderID) orderstatus.Status {
	o, ok := c.Get(id)
	if !ok {
		return orderstatus.Status{}
	}
	return o.Status
}
