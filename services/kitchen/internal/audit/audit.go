package audit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/pkg/lifecycle"
	"github.com/google/uuid"
)

const (
	DefaultHistoryLimit = 50
	saveTimeout         = 2 * time.Second
)

// Entry is one recorded step of an order status change.
type Entry struct {
	ID         string            `json:"id" bson:"_id"`
	Seq        uint64            `json:"seq" bson:"seq"`
	OrderID    lifecycle.OrderID `json:"order_id" bson:"order_id"`
	From       string            `json:"from,omitempty" bson:"from,omitempty"`
	To         string            `json:"to" bson:"to"`
	Outcome    string            `json:"outcome" bson:"outcome"`
	Actor      string            `json:"actor,omitempty" bson:"actor,omitempty"`
	Error      string            `json:"error,omitempty" bson:"error,omitempty"`
	OccurredAt time.Time         `json:"occurred_at" bson:"occurred_at"`
}

// Repo persists audit entries.
type Repo interface {
	Save(ctx context.Context, e Entry) error
	ListByOrder(ctx context.Context, orderID lifecycle.OrderID, limit int) ([]Entry, error)
}

// EntryFrom converts a controller mutation into an audit entry.
func EntryFrom(m lifecycle.Mutation) Entry {
	e := Entry{
		ID:         uuid.New().String(),
		Seq:        m.Seq,
		OrderID:    m.OrderID,
		From:       m.From.Code(),
		To:         m.To.Code(),
		Outcome:    string(m.Outcome),
		Actor:      m.Actor,
		OccurredAt: m.At,
	}
	if m.Err != nil {
		e.Error = m.Err.Error()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	return e
}

// Recorder logs every mutation outcome and stores it in a Repo.
type Recorder struct {
	repo   Repo
	logger apt.Logger
}

func NewRecorder(repo Repo, logger apt.Logger) *Recorder {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if repo == nil {
		repo = NewMemoryRepo(0)
	}
	return &Recorder{repo: repo, logger: logger}
}

func (r *Recorder) OnMutation(ctx context.Context, m lifecycle.Mutation) {
	e := EntryFrom(m)

	r.logger.Info("order mutation",
		"order_id", e.OrderID,
		"seq", e.Seq,
		"from", e.From,
		"to", e.To,
		"outcome", e.Outcome,
		"actor", e.Actor,
		"error", e.Error,
	)

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	if err := r.repo.Save(saveCtx, e); err != nil {
		r.logger.Error("cannot save audit entry", "order_id", e.OrderID, "error", err)
	}
}

// History lists the entries of one order, newest first.
func (r *Recorder) History(ctx context.Context, orderID lifecycle.OrderID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return r.repo.ListByOrder(ctx, orderID, limit)
}

// MemoryRepo keeps the most recent entries in memory.
type MemoryRepo struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
}

// NewMemoryRepo keeps at most max entries; zero means 10000.
func NewMemoryRepo(max int) *MemoryRepo {
	if max <= 0 {
		max = 10000
	}
	return &MemoryRepo{max: max}
}

func (r *MemoryRepo) Save(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return errors.New("audit entry id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, e)
	if over := len(r.entries) - r.max; over > 0 {
		r.entries = append([]Entry(nil), r.entries[over:]...)
	}
	return nil
}

func (r *MemoryRepo) ListByOrder(ctx context.Context, orderID lifecycle.OrderID, limit int) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].OrderID == orderID {
			out = append(out, r.entries[i])
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].Seq > out[j].Seq
		}
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
