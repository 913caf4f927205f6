package lifecycle

import (
	"errors"
	"fmt"

	"github.com/appetiteclub/pos/pkg/enums/orderstatus"
)

var (
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOrderNotFound     = errors.New("order not found")
	ErrClosed            = errors.New("controller closed")
	ErrNoStore           = errors.New("order store not configured")
)

// TransitionError reports a status change the lifecycle does not allow.
type TransitionError struct {
	OrderID OrderID
	From    orderstatus.Status
	To      orderstatus.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %d: cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
