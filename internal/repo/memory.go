package repo

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/UsamaMalikDev/Task-App/internal/model"
)

// MemoryTaskRepo keeps tasks in process memory. Natural order is insertion order.
type MemoryTaskRepo struct {
	mu    sync.RWMutex
	tasks map[string]model.Task
	order []string
	keys  map[string]string
	now   func() time.Time
}

var _ TaskRepository = (*MemoryTaskRepo)(nil)

func NewMemoryTaskRepo() *MemoryTaskRepo {
	return &MemoryTaskRepo{
		tasks: make(map[string]model.Task),
		keys:  make(map[string]string),
		now:   time.Now,
	}
}

func clone(t model.Task) model.Task {
	t.Tags = slices.Clone(t.Tags)
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		t.CompletedAt = &at
	}
	return t
}

func (r *MemoryTaskRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, exists := r.tasks[t.ID]; exists {
		return t, ErrorConflict
	}
	now := r.now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	t.Version = 1

	t = clone(t)
	r.tasks[t.ID] = t
	r.order = append(r.order, t.ID)
	return clone(t), nil
}

func (r *MemoryTaskRepo) Get(ctx context.Context, id string) (model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return model.Task{}, ErrorNotFound
	}
	return clone(t), nil
}

func (r *MemoryTaskRepo) GetMany(ctx context.Context, ids []string) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := r.tasks[id]; ok {
			tasks = append(tasks, clone(t))
		}
	}
	return orderByIDs(tasks, ids), nil
}

func (r *MemoryTaskRepo) matching(f model.TaskFilter, s model.Sort) []model.Task {
	var out []model.Task
	for _, id := range r.order {
		t := r.tasks[id]
		if matches(t, f, s) {
			out = append(out, t)
		}
	}
	return out
}

func matches(t model.Task, f model.TaskFilter, s model.Sort) bool {
	if f.OrganizationID != nil && t.OrganizationID != *f.OrganizationID {
		return false
	}
	if f.OwnerID != nil && t.CreatedBy != *f.OwnerID {
		return false
	}
	if f.CreatedBy != nil && t.CreatedBy != *f.CreatedBy {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.AssignedTo != nil && t.AssignedTo != *f.AssignedTo {
		return false
	}
	if f.IsOverdue != nil && t.IsOverdue != *f.IsOverdue {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	if f.After != nil {
		c := comparePosition(t.Position(), *f.After)
		if s.Desc && c >= 0 || !s.Desc && c <= 0 {
			return false
		}
	}
	return true
}

func comparePosition(a, b model.Position) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func compareBy(field model.SortField, a, b model.Task) int {
	switch field {
	case model.SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case model.SortDueDate:
		return a.DueDate.Compare(b.DueDate)
	case model.SortPriority:
		return a.Priority.Rank() - b.Priority.Rank()
	case model.SortStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case model.SortTitle:
		return strings.Compare(a.Title, b.Title)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (r *MemoryTaskRepo) Find(ctx context.Context, f model.TaskFilter, s model.Sort, offset, limit int) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := r.matching(f, s)
	sort.SliceStable(found, func(i, j int) bool {
		c := compareBy(s.Field, found[i], found[j])
		if c == 0 {
			c = strings.Compare(found[i].ID, found[j].ID)
		}
		if s.Desc {
			return c > 0
		}
		return c < 0
	})

	if offset < 0 {
		offset = 0
	}
	out := make([]model.Task, 0, max(limit, 0))
	for i := offset; i < len(found) && len(out) < limit; i++ {
		out = append(out, clone(found[i]))
	}
	return out, nil
}

func (r *MemoryTaskRepo) Count(ctx context.Context, f model.TaskFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matching(f, model.Sort{})), nil
}

func (r *MemoryTaskRepo) Update(ctx context.Context, t model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.tasks[t.ID]
	if !ok {
		return t, ErrorNotFound
	}
	if current.Version != t.Version {
		return t, ErrorConflict
	}

	current.Title = t.Title
	current.Description = t.Description
	current.Status = t.Status
	current.Priority = t.Priority
	current.DueDate = t.DueDate
	current.AssignedTo = t.AssignedTo
	current.Tags = t.Tags
	current.IsOverdue = t.IsOverdue
	current.CompletedAt = t.CompletedAt
	current.Version++
	current.UpdatedAt = r.now().UTC()

	current = clone(current)
	r.tasks[t.ID] = current
	return clone(current), nil
}

func (r *MemoryTaskRepo) UpdateMany(ctx context.Context, ids []string, p model.BulkPatch, now time.Time) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		t, ok := r.tasks[id]
		if !ok {
			continue
		}
		if p.Status != nil {
			t.Status = *p.Status
			if t.Status == model.StatusCompleted && t.CompletedAt == nil {
				at := now
				t.CompletedAt = &at
			}
			t.IsOverdue = t.PastDue(now)
		}
		if p.Priority != nil {
			t.Priority = *p.Priority
		}
		if p.AssignedTo != nil {
			t.AssignedTo = *p.AssignedTo
		}
		t.Version++
		t.UpdatedAt = now
		r.tasks[id] = t
		updated = append(updated, clone(t))
	}
	return orderByIDs(updated, ids), nil
}

func (r *MemoryTaskRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return ErrorNotFound
	}
	delete(r.tasks, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })
	return nil
}

func (r *MemoryTaskRepo) MarkOverdue(ctx context.Context, now time.Time) ([]model.OverdueMark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	marks := make([]model.OverdueMark, 0)
	for _, id := range r.order {
		t := r.tasks[id]
		if t.IsOverdue || !t.PastDue(now) {
			continue
		}
		t.IsOverdue = true
		t.Version++
		t.UpdatedAt = now
		r.tasks[id] = t
		marks = append(marks, model.OverdueMark{ID: t.ID, OrganizationID: t.OrganizationID})
	}
	return marks, nil
}

func (r *MemoryTaskRepo) SaveIdempotencyKey(ctx context.Context, key string, resourceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.keys[key]; !exists {
		r.keys[key] = resourceID
	}
	return nil
}

func (r *MemoryTaskRepo) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.keys[key]
	if !ok {
		return "", ErrorNotFound
	}
	return id, nil
}

func (r *MemoryTaskRepo) GetStats(ctx context.Context, organizationID string) (model.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s model.Stats
	for _, t := range r.tasks {
		if organizationID != "" && t.OrganizationID != organizationID {
			continue
		}
		s.Total++
		if t.IsOverdue {
			s.Overdue++
		}
		switch t.Status {
		case model.StatusCompleted:
			s.Completed++
		case model.StatusPending:
			s.Pending++
		case model.StatusInProgress:
			s.InProgress++
		case model.StatusCancelled:
			s.Cancelled++
		}
	}
	return s, nil
}

func (r *MemoryTaskRepo) Ping(ctx context.Context) error {
	return nil
}
