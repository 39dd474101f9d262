package model

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether overdue flagging no longer applies to the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

// Rank orders priorities from low (0) to urgent (3); unknown values rank -1.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	}
	return -1
}

type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         Status     `json:"status"`
	Priority       Priority   `json:"priority"`
	DueDate        time.Time  `json:"due_date"`
	OrganizationID string     `json:"organization_id"`
	CreatedBy      string     `json:"created_by"`
	AssignedTo     string     `json:"assigned_to,omitempty"`
	Tags           []string   `json:"tags"`
	IsOverdue      bool       `json:"is_overdue"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PastDue reports whether the task should carry the overdue flag at now.
func (t Task) PastDue(now time.Time) bool {
	return t.DueDate.Before(now) && !t.Status.IsTerminal()
}

// Position is the keyset of a task in created_at ordering. Cursors encode it.
type Position struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

func (t Task) Position() Position {
	return Position{CreatedAt: t.CreatedAt, ID: t.ID}
}

// TaskFilter is a scope-restricted filter expression. Nil fields do not constrain.
type TaskFilter struct {
	OrganizationID *string   `json:"organization_id,omitempty"`
	OwnerID        *string   `json:"owner_id,omitempty"`
	Status         *Status   `json:"status,omitempty"`
	Priority       *Priority `json:"priority,omitempty"`
	AssignedTo     *string   `json:"assigned_to,omitempty"`
	CreatedBy      *string   `json:"created_by,omitempty"`
	IsOverdue      *bool     `json:"is_overdue,omitempty"`
	Search         string    `json:"search,omitempty"`
	// After restricts results to rows strictly past the position in the sort direction.
	After *Position `json:"after,omitempty"`
}

type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortUpdatedAt SortField = "updated_at"
	SortDueDate   SortField = "due_date"
	SortPriority  SortField = "priority"
	SortStatus    SortField = "status"
	SortTitle     SortField = "title"
)

type Sort struct {
	Field SortField `json:"field"`
	Desc  bool      `json:"desc"`
}

type TaskPage struct {
	Tasks      []Task `json:"tasks"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
	TotalPages *int   `json:"total_pages,omitempty"`
	Total      *int   `json:"total,omitempty"`
}

type Stats struct {
	Total      int `json:"total"`
	Overdue    int `json:"overdue"`
	Completed  int `json:"completed"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Cancelled  int `json:"cancelled"`
}

// OverdueMark identifies a task flagged by an overdue sweep.
type OverdueMark struct {
	ID             string
	OrganizationID string
}
