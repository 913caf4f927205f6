package role

import (
	"strings"
)

type Role struct {
	Name string
}

func (r Role) Code() string {
	return r.Name
}

func (r Role) Label() string {
	if len(r.Name) == 0 {
		return ""
	}
	return strings.ToUpper(r.Name[:1]) + r.Name[1:]
}

type Enum struct {
	Waiter     Role
	Kitchen    Role
	Supervisor Role
	Admin      Role
}

var Roles = Enum{
	Waiter:     Role{Name: "waiter"},
	Kitchen:    Role{Name: "kitchen"},
	Supervisor: Role{Name: "supervisor"},
	Admin:      Role{Name: "admin"},
}

var All = []Role{
	Roles.Waiter,
	Roles.Kitchen,
	Roles.Supervisor,
	Roles.Admin,
}

// ByName returns the role for a given name, or nil if not found
func ByName(name string) *Role {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, r := range All {
		if r.Name == name {
			return &r
		}
	}
	return nil
}

// Allowed reports whether name is one of the given roles. Admin is always allowed.
func Allowed(name string, roles ...Role) bool {
	r := ByName(name)
	if r == nil {
		return false
	}
	if *r == Roles.Admin {
		return true
	}
	for _, want := range roles {
		if *r == want {
			return true
		}
	}
	return false
}
