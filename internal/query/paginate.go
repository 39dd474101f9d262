package query

import (
	"context"
	"fmt"

	"github.com/UsamaMalikDev/Task-App/internal/access"
	"github.com/UsamaMalikDev/Task-App/internal/model"
)

type Limits struct {
	Default int
	Max     int
}

var DefaultLimits = Limits{Default: 20, Max: 100}

// Clamp applies the defaults to a requested limit. Negative limits are rejected.
func (l Limits) Clamp(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, fmt.Errorf("%w: limit must not be negative", ErrValidation)
	case limit == 0:
		return l.Default, nil
	case limit > l.Max:
		return l.Max, nil
	}
	return limit, nil
}

type Mode int

const (
	PageMode Mode = iota
	CursorMode
)

func (m Mode) String() string {
	if m == CursorMode {
		return "cursor"
	}
	return "page"
}

// Pagination selects one of the two mutually exclusive paging modes.
type Pagination struct {
	Mode  Mode            `json:"mode"`
	Page  int             `json:"page,omitempty"`
	After *model.Position `json:"after,omitempty"`
	Limit int             `json:"limit"`
}

func ParsePagination(q model.TaskQuery, limits Limits) (Pagination, error) {
	limit, err := limits.Clamp(q.Limit)
	if err != nil {
		return Pagination{}, err
	}

	if q.Page < 0 {
		return Pagination{}, fmt.Errorf("%w: page must be at least 1", ErrValidation)
	}
	if q.Cursor != "" {
		if q.Page != 0 {
			return Pagination{}, fmt.Errorf("%w: page and cursor are mutually exclusive", ErrValidation)
		}
		pos, err := DecodeCursor(q.Cursor)
		if err != nil {
			return Pagination{}, err
		}
		return Pagination{Mode: CursorMode, After: &pos, Limit: limit}, nil
	}

	page := q.Page
	if page == 0 {
		page = 1
	}
	return Pagination{Mode: PageMode, Page: page, Limit: limit}, nil
}

// Request is a fully resolved list request: scope filter, ordering and paging.
type Request struct {
	Filter     model.TaskFilter `json:"filter"`
	Sort       model.Sort       `json:"sort"`
	Pagination Pagination       `json:"pagination"`
}

func Build(role access.Role, callerID, callerOrgID string, q model.TaskQuery, limits Limits) (Request, error) {
	filter, err := BuildFilter(role, callerID, callerOrgID, q)
	if err != nil {
		return Request{}, err
	}
	sort, err := BuildSort(q)
	if err != nil {
		return Request{}, err
	}
	pg, err := ParsePagination(q, limits)
	if err != nil {
		return Request{}, err
	}
	if pg.Mode == CursorMode && sort.Field != model.SortCreatedAt {
		return Request{}, fmt.Errorf("%w: cursor pagination requires createdAt ordering", ErrValidation)
	}
	return Request{Filter: filter, Sort: sort, Pagination: pg}, nil
}

// Finder is the read side of the task store used by the paginator.
type Finder interface {
	Find(ctx context.Context, f model.TaskFilter, s model.Sort, offset, limit int) ([]model.Task, error)
	Count(ctx context.Context, f model.TaskFilter) (int, error)
}

type Paginator struct {
	finder Finder
}

func NewPaginator(finder Finder) *Paginator {
	return &Paginator{finder: finder}
}

// Paginate executes r. Both modes apply the same filter and ordering before
// slicing, so page and cursor results agree for a fixed data set.
func (p *Paginator) Paginate(ctx context.Context, r Request) (model.TaskPage, error) {
	if r.Pagination.Limit <= 0 {
		return model.TaskPage{}, fmt.Errorf("%w: limit must be positive", ErrValidation)
	}
	if r.Pagination.Mode == CursorMode {
		return p.byCursor(ctx, r)
	}
	return p.byPage(ctx, r)
}

func (p *Paginator) byPage(ctx context.Context, r Request) (model.TaskPage, error) {
	limit := r.Pagination.Limit
	page := r.Pagination.Page
	if page < 1 {
		return model.TaskPage{}, fmt.Errorf("%w: page must be at least 1", ErrValidation)
	}

	total, err := p.finder.Count(ctx, r.Filter)
	if err != nil {
		return model.TaskPage{}, fmt.Errorf("count tasks: %w", err)
	}
	totalPages := (total + limit - 1) / limit

	// Pages past the end are empty. page <= totalPages keeps (page-1)*limit below total.
	tasks := []model.Task{}
	if page <= totalPages {
		tasks, err = p.finder.Find(ctx, r.Filter, r.Sort, (page-1)*limit, limit)
		if err != nil {
			return model.TaskPage{}, fmt.Errorf("find tasks: %w", err)
		}
	}

	result := model.TaskPage{
		Tasks:      tasks,
		HasMore:    page < totalPages,
		Total:      &total,
		TotalPages: &totalPages,
	}
	if result.HasMore && r.Sort.Field == model.SortCreatedAt && len(tasks) > 0 {
		result.NextCursor = EncodeCursor(tasks[len(tasks)-1].Position())
	}
	return result, nil
}

func (p *Paginator) byCursor(ctx context.Context, r Request) (model.TaskPage, error) {
	limit := r.Pagination.Limit
	filter := r.Filter
	filter.After = r.Pagination.After

	tasks, err := p.finder.Find(ctx, filter, r.Sort, 0, limit+1)
	if err != nil {
		return model.TaskPage{}, fmt.Errorf("find tasks: %w", err)
	}

	result := model.TaskPage{Tasks: tasks}
	if len(tasks) > limit {
		result.HasMore = true
		result.Tasks = tasks[:limit]
		result.NextCursor = EncodeCursor(result.Tasks[limit-1].Position())
	}
	return result, nil
}
