package access

import (
	"context"

	"github.com/UsamaMalikDev/Task-App/internal/model"
)

type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpDelete Operation = "delete"
)

const (
	ReasonManagerScope      = "manager scope violation"
	ReasonOwnership         = "ownership violation"
	ReasonOrganizationScope = "organization scope violation"
)

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// CanAccess decides whether a caller may perform op on task. All operations
// share one rule per role: admins are unrestricted, managers are bound to their
// organization, users are bound to their organization and to tasks they created.
func CanAccess(role Role, callerID, callerOrgID string, task model.Task, op Operation) Decision {
	switch role {
	case RoleAdmin:
		return allow()
	case RoleManager:
		if task.OrganizationID == callerOrgID {
			return allow()
		}
		return deny(ReasonManagerScope)
	default:
		if task.CreatedBy != callerID {
			return deny(ReasonOwnership)
		}
		if task.OrganizationID != callerOrgID {
			return deny(ReasonOrganizationScope)
		}
		return allow()
	}
}

// Caller is the authenticated identity supplied by the transport layer.
type Caller struct {
	ID             string
	Roles          []string
	OrganizationID string
}

func (c Caller) Role() Role {
	return Resolve(c.Roles)
}

// Can evaluates CanAccess for the caller.
func (c Caller) Can(task model.Task, op Operation) Decision {
	return CanAccess(c.Role(), c.ID, c.OrganizationID, task, op)
}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
