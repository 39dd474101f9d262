package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/UsamaMalikDev/Task-App/internal/query"
	"github.com/UsamaMalikDev/Task-App/internal/repo"
)

var (
	ErrValidation       = query.ErrValidation
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAllDenied is returned by BulkUpdate when no requested task passed authorization.
	ErrAllDenied = errors.New("no accessible tasks in request")
)

// DeniedError carries the access evaluator's reason for a refused operation.
type DeniedError struct {
	TaskID string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("permission denied on task %s: %s", e.TaskID, e.Reason)
}

func (e *DeniedError) Unwrap() error { return ErrPermissionDenied }

// MissingTasksError lists the ids of a bulk request that do not exist.
type MissingTasksError struct {
	IDs []string
}

func (e *MissingTasksError) Error() string {
	return "tasks not found: " + strings.Join(e.IDs, ", ")
}

func (e *MissingTasksError) Unwrap() error { return repo.ErrorNotFound }
