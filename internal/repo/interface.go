package repo

import (
	"context"
	"errors"
	"time"

	"github.com/UsamaMalikDev/Task-App/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
)

// TaskRepository is the task store contract shared by the PostgreSQL and memory backends.
type TaskRepository interface {
	Create(ctx context.Context, t model.Task) (model.Task, error)
	Get(ctx context.Context, id string) (model.Task, error)
	// GetMany returns the existing tasks among ids; missing ids are omitted.
	GetMany(ctx context.Context, ids []string) ([]model.Task, error)
	Find(ctx context.Context, f model.TaskFilter, s model.Sort, offset, limit int) ([]model.Task, error)
	Count(ctx context.Context, f model.TaskFilter) (int, error)
	// Update replaces the mutable fields of t if its version still matches.
	Update(ctx context.Context, t model.Task) (model.Task, error)
	UpdateMany(ctx context.Context, ids []string, p model.BulkPatch, now time.Time) ([]model.Task, error)
	Delete(ctx context.Context, id string) error
	// MarkOverdue flags every past-due, non-terminal, unflagged task in one statement.
	MarkOverdue(ctx context.Context, now time.Time) ([]model.OverdueMark, error)
	SaveIdempotencyKey(ctx context.Context, key string, resourceID string) error
	GetIdempotencyKey(ctx context.Context, key string) (string, error)
	// GetStats counts tasks of one organization, or of all when organizationID is empty.
	GetStats(ctx context.Context, organizationID string) (model.Stats, error)
	Ping(ctx context.Context) error
}

func orderByIDs(tasks []model.Task, ids []string) []model.Task {
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, seen := index[id]; !seen {
			index[id] = i
		}
	}
	ordered := make([]model.Task, 0, len(tasks))
	slots := make([]*model.Task, len(ids))
	for i := range tasks {
		if pos, ok := index[tasks[i].ID]; ok {
			slots[pos] = &tasks[i]
		}
	}
	for _, t := range slots {
		if t != nil {
			ordered = append(ordered, *t)
		}
	}
	return ordered
}
