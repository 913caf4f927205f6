package lifecycle

import (
	"context"
	"time"

	"github.com/appetiteclub/pos/pkg/enums/orderstatus"
)

type ChangeKind string

const (
	ChangeAdded     ChangeKind = "added"
	ChangeUpdated   ChangeKind = "updated"
	ChangeRemoved   ChangeKind = "removed"
	ChangeReordered ChangeKind = "reordered"
)

// Change describes one granular modification of the cache.
// Order is nil for removals and reorders; IDs is set only for reorders.
type Change struct {
	Kind       ChangeKind `json:"kind"`
	OrderID    OrderID    `json:"order_id,omitempty"`
	Order      *Order     `json:"order,omitempty"`
	Previous   *Order     `json:"previous,omitempty"`
	IDs        []OrderID  `json:"ids,omitempty"`
	Optimistic bool       `json:"optimistic,omitempty"`
	At         time.Time  `json:"at"`
}

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a user-facing message raised by the controller.
type Notification struct {
	Level       Level     `json:"level"`
	Message     string    `json:"message"`
	Description string    `json:"description,omitempty"`
	OrderID     OrderID   `json:"order_id,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier surfaces notifications to operators.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// Notifiers fans a notification out to every member.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, n Notification) {
	for _, x := range ns {
		if x != nil {
			x.Notify(ctx, n)
		}
	}
}

type Outcome string

const (
	OutcomeOptimistic Outcome = "optimistic"
	OutcomeConfirmed  Outcome = "confirmed"
	OutcomeFailed     Outcome = "failed"
	OutcomeRejected   Outcome = "rejected"
)

// Mutation records one step of a status change.
type Mutation struct {
	Seq     uint64
	OrderID OrderID
	From    orderstatus.Status
	To      orderstatus.Status
	Outcome Outcome
	Actor   string
	Err     error
	Order   *Order
	At      time.Time
}

// MutationObserver receives every mutation outcome.
type MutationObserver interface {
	OnMutation(ctx context.Context, m Mutation)
}

// MutationObserverFunc adapts a function to MutationObserver.
type MutationObserverFunc func(ctx context.Context, m Mutation)

func (f MutationObserverFunc) OnMutation(ctx context.Context, m Mutation) {
	f(ctx, m)
}

type actorKey struct{}

// WithActor attaches the acting user name to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the acting user name stored in ctx, if any.
func ActorFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

func successMessage(from, to orderstatus.Status) (string, string) {
	switch {
	case orderstatus.IsUndo(from, to):
		return "Order moved back to Ready", ""
	case to == orderstatus.Statuses.Ready:
		return "Order is ready!", "Moving to Ready column"
	case to == orderstatus.Statuses.Completed:
		return "Order completed!", ""
	case to == orderstatus.Statuses.Cancelled:
		return "Order cancelled", ""
	default:
		return "Order status updated to " + to.Code(), ""
	}
}
