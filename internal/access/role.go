package access

import "strings"

// Role is the effective role of a caller. Roles are totally ordered:
// RoleUser < RoleManager < RoleAdmin.
type Role int

const (
	RoleUser Role = iota
	RoleManager
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "ADMIN"
	case RoleManager:
		return "MANAGER"
	default:
		return "USER"
	}
}

// AtLeast reports whether r grants at least the privileges of other.
func (r Role) AtLeast(other Role) bool {
	return r >= other
}

// Resolve collapses a raw role set to the highest-privilege effective role.
// Unknown names are ignored and an empty set resolves to RoleUser.
func Resolve(raw []string) Role {
	role := RoleUser
	for _, name := range raw {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "ADMIN":
			return RoleAdmin
		case "MANAGER":
			role = RoleManager
		}
	}
	return role
}
