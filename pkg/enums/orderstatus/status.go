package orderstatus

import (
	"fmt"
	"strings"
)

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) String() string {
	return s.Name
}

func (s Status) Label() string {
	if len(s.Name) == 0 {
		return ""
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

// IsZero reports whether s is the zero Status.
func (s Status) IsZero() bool {
	return s.Name == ""
}

type Enum struct {
	New       Status
	Ready     Status
	Completed Status
	Cancelled Status
}

var Statuses = Enum{
	New:       Status{Name: "new"},
	Ready:     Status{Name: "ready"},
	Completed: Status{Name: "completed"},
	Cancelled: Status{Name: "cancelled"},
}

var All = []Status{
	Statuses.New,
	Statuses.Ready,
	Statuses.Completed,
	Statuses.Cancelled,
}

// aliases maps legacy store values onto the four lifecycle states.
var aliases = map[string]Status{
	"preparing": Statuses.New,
}

// forward holds the allowed transitions, including the completed -> ready undo.
var forward = map[Status]map[Status]bool{
	Statuses.New:       {Statuses.Ready: true, Statuses.Cancelled: true},
	Statuses.Ready:     {Statuses.Completed: true, Statuses.Cancelled: true},
	Statuses.Completed: {Statuses.Ready: true},
	Statuses.Cancelled: {},
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

// Parse resolves a raw store value, folding legacy aliases.
func Parse(raw string) (Status, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if s := ByName(name); s != nil {
		return *s, nil
	}
	if s, ok := aliases[name]; ok {
		return s, nil
	}
	return Status{}, fmt.Errorf("unknown order status %q", raw)
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to Status) bool {
	return forward[from][to]
}

// IsUndo reports whether the transition reverts a completion.
func IsUndo(from, to Status) bool {
	return from == Statuses.Completed && to == Statuses.Ready
}

// IsTerminal reports whether no forward transition leaves s.
func IsTerminal(s Status) bool {
	return s == Statuses.Completed || s == Statuses.Cancelled
}

// Next lists the statuses reachable from s, in display order.
func Next(from Status) []Status {
	next := make([]Status, 0, 2)
	for _, s := range All {
		if CanTransition(from, s) {
			next = append(next, s)
		}
	}
	return next
}
