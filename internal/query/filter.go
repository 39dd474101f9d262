// Package query turns caller list requests into scope-restricted filter
// expressions and executes them against a task store page by page.
package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/UsamaMalikDev/Task-App/internal/access"
	"github.com/UsamaMalikDev/Task-App/internal/model"
)

var ErrValidation = errors.New("validation error")

var sortFields = map[string]model.SortField{
	"createdAt":  model.SortCreatedAt,
	"created_at": model.SortCreatedAt,
	"updatedAt":  model.SortUpdatedAt,
	"updated_at": model.SortUpdatedAt,
	"dueDate":    model.SortDueDate,
	"due_date":   model.SortDueDate,
	"priority":   model.SortPriority,
	"status":     model.SortStatus,
	"title":      model.SortTitle,
}

// BuildFilter restricts q to the caller's scope. Admins see every organization,
// managers their own organization, and users the tasks they created within
// their organization. Request filters are ANDed onto the base scope.
func BuildFilter(role access.Role, callerID, callerOrgID string, q model.TaskQuery) (model.TaskFilter, error) {
	var f model.TaskFilter

	switch role {
	case access.RoleAdmin:
	case access.RoleManager:
		f.OrganizationID = &callerOrgID
	default:
		f.OrganizationID = &callerOrgID
		f.OwnerID = &callerID
	}

	if q.Status != "" {
		s := model.Status(q.Status)
		if !s.Valid() {
			return f, fmt.Errorf("%w: unknown status %q", ErrValidation, q.Status)
		}
		f.Status = &s
	}
	if q.Priority != "" {
		p := model.Priority(q.Priority)
		if !p.Valid() {
			return f, fmt.Errorf("%w: unknown priority %q", ErrValidation, q.Priority)
		}
		f.Priority = &p
	}
	if q.AssignedTo != "" {
		v := q.AssignedTo
		f.AssignedTo = &v
	}
	if q.CreatedBy != "" {
		v := q.CreatedBy
		f.CreatedBy = &v
	}
	if q.IsOverdue != nil {
		v := *q.IsOverdue
		f.IsOverdue = &v
	}
	f.Search = strings.TrimSpace(q.Search)

	return f, nil
}

// BuildSort resolves the requested ordering. The default is newest first.
func BuildSort(q model.TaskQuery) (model.Sort, error) {
	s := model.Sort{Field: model.SortCreatedAt, Desc: true}

	if q.SortBy != "" {
		field, ok := sortFields[q.SortBy]
		if !ok {
			return s, fmt.Errorf("%w: unsupported sort field %q", ErrValidation, q.SortBy)
		}
		s.Field = field
	}

	switch strings.ToLower(q.SortOrder) {
	case "", "desc":
		s.Desc = true
	case "asc":
		s.Desc = false
	default:
		return s, fmt.Errorf("%w: sort order must be asc or desc", ErrValidation)
	}
	return s, nil
}
