package model

import "time"

// TaskQuery carries the caller-supplied list parameters.
type TaskQuery struct {
	Status     string `json:"status,omitempty"`
	Priority   string `json:"priority,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`
	CreatedBy  string `json:"created_by,omitempty"`
	IsOverdue  *bool  `json:"is_overdue,omitempty"`
	Search     string `json:"search,omitempty"`
	SortBy     string `json:"sort_by,omitempty"`
	SortOrder  string `json:"sort_order,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Page       int    `json:"page,omitempty"`
	Cursor     string `json:"cursor,omitempty"`
}

type TaskInput struct {
	Title       string    `json:"title" validate:"required,min=1,max=200"`
	Description string    `json:"description" validate:"max=1000"`
	Status      Status    `json:"status" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	Priority    Priority  `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	AssignedTo  string    `json:"assigned_to" validate:"max=200"`
	Tags        []string  `json:"tags" validate:"max=50,dive,max=100"`
}

// TaskPatch holds field-level changes; nil fields are left untouched.
// Organization and creator are not patchable.
type TaskPatch struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=1000"`
	Status      *Status    `json:"status" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	Priority    *Priority  `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *time.Time `json:"due_date"`
	AssignedTo  *string    `json:"assigned_to" validate:"omitempty,max=200"`
	Tags        *[]string  `json:"tags" validate:"omitempty,max=50"`
	CompletedAt *time.Time `json:"completed_at"`
	// Version, when set, must match the stored version.
	Version     *int       `json:"version"`
}

type BulkPatch struct {
	Status     *Status   `json:"status" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	Priority   *Priority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	AssignedTo *string   `json:"assigned_to" validate:"omitempty,max=200"`
}

func (p BulkPatch) Empty() bool {
	return p.Status == nil && p.Priority == nil && p.AssignedTo == nil
}

type BulkUpdateRequest struct {
	TaskIDs []string `json:"task_ids" validate:"required,min=1,max=500,dive,required"`
	BulkPatch
}

type SkippedTask struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type BulkResult struct {
	Updated []Task        `json:"updated"`
	Skipped []SkippedTask `json:"skipped"`
}
