package commands

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/pkg/enums/orderstatus"
	"github.com/appetiteclub/pos/pkg/enums/paymentstatus"
	"github.com/appetiteclub/pos/pkg/lifecycle"
	"github.com/appetiteclub/pos/pkg/store"
)

type MockStore struct {
	ListOrdersFunc   func(ctx context.Context) ([]lifecycle.Order, error)
	UpdateStatusFunc func(ctx context.Context, id lifecycle.OrderID, status orderstatus.Status) (*lifecycle.Order, error)
	LoginFunc        func(ctx context.Context, username, password string) (*store.LoginResult, error)
}

func (m *MockStore) ListOrders(ctx context.Context) ([]lifecycle.Order, error) {
	if m.ListOrdersFunc != nil {
		return m.ListOrdersFunc(ctx)
	}
	return nil, nil
}

func (m *MockStore) UpdateStatus(ctx context.Context, id lifecycle.OrderID, status orderstatus.Status) (*lifecycle.Order, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return nil, nil
}

func (m *MockStore) Login(ctx context.Context, username, password string) (*store.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, username, password)
	}
	return nil, store.ErrUnauthorized
}

func sampleOrders() []lifecycle.Order {
	created := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	return []lifecycle.Order{
		{ID: 1, TableNumber: 4, WaiterName: "Ana", Status: orderstatus.Statuses.New, PaymentStatus: paymentstatus.Statuses.Unpaid, Total: 1250, CreatedAt: created},
		{ID: 2, TableNumber: 7, WaiterName: "Luis", Status: orderstatus.Statuses.Ready, PaymentStatus: paymentstatus.Statuses.Paid, Total: 3000, CreatedAt: created.Add(time.Minute)},
		{ID: 3, TableNumber: 9, Status: orderstatus.Statuses.Completed, PaymentStatus: paymentstatus.Statuses.Paid, Total: 800, CreatedAt: created.Add(2 * time.Minute)},
	}
}

type fixture struct {
	store *MockStore
	cfg   store.Config
	out   *bytes.Buffer
	mu    sync.Mutex
}

func newFixture(s *MockStore) *fixture {
	return &fixture{store: s, out: &bytes.Buffer{}}
}

func (f *fixture) run(ctx context.Context, args ...string) error {
	root := NewRoot(Options{
		Config: apt.NewConfig(),
		Logger: apt.NewNoopLogger(),
		Out:    f.out,
		NewStore: func(cfg store.Config, logger apt.Logger) (store.Client, error) {
			f.mu.Lock()
			f.cfg = cfg
			f.mu.Unlock()
			return f.store, nil
		},
		Now: func() time.Time { return time.Date(2026, 10, 18, 18, 0, 0, 0, time.UTC) },
	})
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func TestOrdersCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     []string
		dontWant []string
		wantErr  bool
	}{
		{
			name: "allOrders",
			args: []string{"orders"},
			want: []string{"ID", "STATUS", "Ana", "Luis", "12.50", "3 order(s)"},
		},
		{
			name:     "byStatus",
			args:     []string{"orders", "--status", "ready"},
			want:     []string{"Luis", "1 order(s)"},
			dontWant: []string{"Ana"},
		},
		{
			name:     "bySearch",
			args:     []string{"orders", "--search", "ana"},
			want:     []string{"Ana", "1 order(s)"},
			dontWant: []string{"Luis"},
		},
		{
			name:    "unknownStatus",
			args:    []string{"orders", "--status", "burnt"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(&MockStore{
				ListOrdersFunc: func(ctx context.Context) ([]lifecycle.Order, error) {
					return sampleOrders(), nil
				},
			})

			err := f.run(context.Background(), tt.args...)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			out := f.out.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.dontWant {
				if strings.Contains(out, w) {
					t.Errorf("output should not contain %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestOrdersCommandStoreFailure(t *testing.T) {
	f := newFixture(&MockStore{
		ListOrdersFunc: func(ctx context.Context) ([]lifecycle.Order, error) {
			return nil, errors.New("connection refused")
		},
	})

	err := f.run(context.Background(), "orders")
	if err == nil || !strings.Contains(err.Error(), "cannot load orders") {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestBoardCommand(t *testing.T) {
	f := newFixture(&MockStore{
		ListOrdersFunc: func(ctx context.Context) ([]lifecycle.Order, error) {
			return sampleOrders(), nil
		},
	})

	if err := f.run(context.Background(), "board"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := f.out.String()
	for _, w := range []string{"== NEW (1)", "== READY (1)", "== COMPLETED (1)", "completed today: 1"} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestSetStatusCommand(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantErr   bool
		wantCalls int32
		want      []string
	}{
		{
			name:      "forwardMove",
			args:      []string{"set-status", "1", "ready"},
			wantCalls: 1,
			want:      []string{"Order is ready!", "order 1 is ready"},
		},
		{
			name:      "skipRejectedLocally",
			args:      []string{"set-status", "1", "completed"},
			wantErr:   true,
			wantCalls: 0,
		},
		{
			name:      "forceSkip",
			args:      []string{"set-status", "--force", "1", "completed"},
			wantCalls: 1,
			want:      []string{"order 1 is completed"},
		},
		{
			name:    "badID",
			args:    []string{"set-status", "one", "ready"},
			wantErr: true,
		},
		{
			name:    "badStatus",
			args:    []string{"set-status", "1", "burnt"},
			wantErr: true,
		},
		{
			name:    "missingArgs",
			args:    []string{"set-status", "1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			f := newFixture(&MockStore{
				ListOrdersFunc: func(ctx context.Context) ([]lifecycle.Order, error) {
					return sampleOrders(), nil
				},
				UpdateStatusFunc: func(ctx context.Context, id lifecycle.OrderID, status orderstatus.Status) (*lifecycle.Order, error) {
					atomic.AddInt32(&calls, 1)
					if actor := lifecycle.ActorFrom(ctx); actor != AppName {
						t.Errorf("expected actor %q, got %q", AppName, actor)
					}
					return nil, nil
				},
			})

			err := f.run(context.Background(), tt.args...)
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("expected %d store calls, got %d", tt.wantCalls, got)
			}

			out := f.out.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestSetStatusCommandStoreRejects(t *testing.T) {
	f := newFixture(&MockStore{
		ListOrdersFunc: func(ctx context.Context) ([]lifecycle.Order, error) {
			return sampleOrders(), nil
		},
		UpdateStatusFunc: func(ctx context.Context, id lifecycle.OrderID, status orderstatus.Status) (*lifecycle.Order, error) {
			return nil, &store.StatusError{Method: "PATCH", Path: "/orders/1/", Code: 400}
		},
	})

	if err := f.run(context.Background(), "set-status", "1", "ready"); err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(f.out.String(), "Failed to update status") {
		t.Errorf("expected failure notification, got:\n%s", f.out.String())
	}
}

func TestSignIn(t *testing.T) {
	var gotToken atomic.Value
	f := newFixture(nil)
	f.store = &MockStore{
		LoginFunc: func(ctx context.Context, username, password string) (*store.LoginResult, error) {
			if username != "chef" || password != "1234" {
				return nil, store.ErrUnauthorized
			}
			return &store.LoginResult{Access: "tok-1", Username: "chef", Role: "kitchen"}, nil
		},
		ListOrdersFunc: func(ctx context.Context) ([]lifecycle.Order, error) {
			f.mu.Lock()
			token := f.cfg.Token
			f.mu.Unlock()
			gotToken.Store(token(ctx))
			return sampleOrders(), nil
		},
	}

	if err := f.run(context.Background(), "orders", "--username", "chef", "--pin", "1234", "--url", "http://pos.test/api"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := gotToken.Load(); got != "tok-1" {
		t.Errorf("expected token tok-1, got %v", got)
	}
	if f.cfg.URL != "http://pos.test/api" {
		t.Errorf("expected url flag to reach the store, got %q", f.cfg.URL)
	}

	if err := f.run(context.Background(), "orders", "--username", "chef", "--pin", "bad"); !errors.Is(err, store.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestWatchCommand(t *testing.T) {
	var calls int32
	f := newFixture(&MockStore{
		ListOrdersFunc: func(ctx context.Context) ([]lifecycle.Order, error) {
			orders := sampleOrders()
			if atomic.AddInt32(&calls, 1) > 2 {
				orders[0].Status = orderstatus.Statuses.Ready
				orders = orders[:2]
			}
			return orders, nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := f.run(ctx, "watch", "--interval", "20ms"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := f.out.String()
	for _, w := range []string{"watching 3 order(s)", "~ order 1 new -> ready", "- order 3"} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	f := newFixture(&MockStore{})
	if err := f.run(context.Background(), "version"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(f.out.String(), AppName+" version "+AppVersion) {
		t.Errorf("unexpected output %q", f.out.String())
	}
}
