package paymentstatus

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

func (s Status) Label() string {
	if len(s.Name) == 0 {
		return ""
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

type Enum struct {
	Unpaid   Status
	Paid     Status
	Refunded Status
}

var Statuses = Enum{
	Unpaid:   Status{Name: "unpaid"},
	Paid:     Status{Name: "paid"},
	Refunded: Status{Name: "refunded"},
}

var All = []Status{
	Statuses.Unpaid,
	Statuses.Paid,
	Statuses.Refunded,
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

// Parse resolves a raw store value. Empty and "pending" mean unpaid.
func Parse(raw string) (Status, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	switch name {
	case "", "pending":
		return Statuses.Unpaid, nil
	}
	if s := ByName(name); s != nil {
		return *s, nil
	}
	return Status{}, fmt.Errorf("unknown payment status %q", raw)
}
