package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/UsamaMalikDev/Task-App/internal/model"
)

const taskColumns = `id, title, description, status, priority, due_date, organization_id, created_by,
	assigned_to, tags, is_overdue, completed_at, version, created_at, updated_at`

var sortColumns = map[model.SortField]string{
	model.SortCreatedAt: "created_at",
	model.SortUpdatedAt: "updated_at",
	model.SortDueDate:   "due_date",
	model.SortPriority:  "CASE priority WHEN 'low' THEN 0 WHEN 'medium' THEN 1 WHEN 'high' THEN 2 WHEN 'urgent' THEN 3 END",
	model.SortStatus:    "status",
	model.SortTitle:     "title",
}

// TaskRepo stores tasks in PostgreSQL.
type TaskRepo struct {
	pool *pgxpool.Pool
}

var _ TaskRepository = (*TaskRepo)(nil)

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{
		pool: pool,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (model.Task, error) {
	var (
		t                model.Task
		status, priority string
	)
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &status, &priority, &t.DueDate, &t.OrganizationID, &t.CreatedBy,
		&t.AssignedTo, &t.Tags, &t.IsOverdue, &t.CompletedAt, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	t.Status = model.Status(status)
	t.Priority = model.Priority(priority)
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return t, err
}

func collectTasks(rows pgx.Rows) ([]model.Task, error) {
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, title, description, status, priority, due_date, organization_id, created_by,
			assigned_to, tags, is_overdue, completed_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, $13, $14)
		RETURNING `+taskColumns,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), t.DueDate, t.OrganizationID, t.CreatedBy,
		t.AssignedTo, t.Tags, t.IsOverdue, t.CompletedAt, t.CreatedAt, t.UpdatedAt,
	)
	created, err := scanTask(row)
	return created, r.mapError(err)
}

func (r *TaskRepo) Get(ctx context.Context, id string) (model.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrorNotFound
	}
	return t, err
}

func (r *TaskRepo) GetMany(ctx context.Context, ids []string) ([]model.Task, error) {
	if len(ids) == 0 {
		return []model.Task{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ANY($1::text[])`, ids)
	if err != nil {
		return nil, err
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}
	return orderByIDs(tasks, ids), nil
}

// whereClause renders f as a SQL predicate. Placeholders start at $1 and the
// returned args are positional.
func whereClause(f model.TaskFilter, s model.Sort) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(format string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}

	if f.OrganizationID != nil {
		add("organization_id = $%d", *f.OrganizationID)
	}
	if f.OwnerID != nil {
		add("created_by = $%d", *f.OwnerID)
	}
	if f.CreatedBy != nil {
		add("created_by = $%d", *f.CreatedBy)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.Priority != nil {
		add("priority = $%d", string(*f.Priority))
	}
	if f.AssignedTo != nil {
		add("assigned_to = $%d", *f.AssignedTo)
	}
	if f.IsOverdue != nil {
		add("is_overdue = $%d", *f.IsOverdue)
	}
	if f.Search != "" {
		add("(title ILIKE $%[1]d OR description ILIKE $%[1]d)", "%"+escapeLike(f.Search)+"%")
	}
	if f.After != nil {
		op := ">"
		if s.Desc {
			op = "<"
		}
		args = append(args, f.After.CreatedAt, f.After.ID)
		conds = append(conds, fmt.Sprintf("(created_at, id) %s ($%d, $%d)", op, len(args)-1, len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(s model.Sort) string {
	col, ok := sortColumns[s.Field]
	if !ok {
		col = sortColumns[model.SortCreatedAt]
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id %s", col, dir, dir)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *TaskRepo) Find(ctx context.Context, f model.TaskFilter, s model.Sort, offset, limit int) ([]model.Task, error) {
	if offset < 0 {
		offset = 0
	}
	where, args := whereClause(f, s)
	args = append(args, limit, offset)
	query := `SELECT ` + taskColumns + ` FROM tasks` + where + orderClause(s) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (r *TaskRepo) Count(ctx context.Context, f model.TaskFilter) (int, error) {
	where, args := whereClause(f, model.Sort{})
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM tasks`+where, args...).Scan(&n)
	return n, err
}

func (r *TaskRepo) Update(ctx context.Context, t model.Task) (model.Task, error) {
	if t.Tags == nil {
		t.Tags = []string{}
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5, due_date = $6, assigned_to = $7,
			tags = $8, is_overdue = $9, completed_at = $10, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $11
		RETURNING `+taskColumns,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), t.DueDate, t.AssignedTo,
		t.Tags, t.IsOverdue, t.CompletedAt, t.Version,
	)
	updated, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.Get(ctx, t.ID); errors.Is(getErr, ErrorNotFound) {
			return t, ErrorNotFound
		}
		return t, ErrorConflict
	}
	return updated, r.mapError(err)
}

func (r *TaskRepo) UpdateMany(ctx context.Context, ids []string, p model.BulkPatch, now time.Time) ([]model.Task, error) {
	if len(ids) == 0 {
		return []model.Task{}, nil
	}
	var status, priority *string
	if p.Status != nil {
		v := string(*p.Status)
		status = &v
	}
	if p.Priority != nil {
		v := string(*p.Priority)
		priority = &v
	}

	rows, err := r.pool.Query(ctx, `
		UPDATE tasks SET
			status       = COALESCE($2::text, status),
			priority     = COALESCE($3::text, priority),
			assigned_to  = COALESCE($4::text, assigned_to),
			completed_at = CASE WHEN $2::text = 'completed' THEN COALESCE(completed_at, $5::timestamptz) ELSE completed_at END,
			is_overdue   = CASE
				WHEN $2::text IN ('completed', 'cancelled') THEN false
				WHEN $2::text IS NOT NULL THEN due_date < $5::timestamptz
				ELSE is_overdue END,
			version      = version + 1,
			updated_at   = $5::timestamptz
		WHERE id = ANY($1::text[])
		RETURNING `+taskColumns,
		ids, status, priority, p.AssignedTo, now,
	)
	if err != nil {
		return nil, err
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}
	return orderByIDs(tasks, ids), nil
}

func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrorNotFound
	}
	return nil
}

func (r *TaskRepo) MarkOverdue(ctx context.Context, now time.Time) ([]model.OverdueMark, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE tasks
		SET is_overdue = true, version = version + 1, updated_at = $1
		WHERE due_date < $1
			AND status NOT IN ('completed', 'cancelled')
			AND is_overdue = false
		RETURNING id, organization_id
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	marks := make([]model.OverdueMark, 0)
	for rows.Next() {
		var m model.OverdueMark
		if err := rows.Scan(&m.ID, &m.OrganizationID); err != nil {
			return nil, err
		}
		marks = append(marks, m)
	}
	return marks, rows.Err()
}

func (r *TaskRepo) SaveIdempotencyKey(ctx context.Context, key string, resourceID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key, resource_id) VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`, key, resourceID)
	return err
}

func (r *TaskRepo) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		SELECT resource_id from idempotency_keys WHERE key = $1
	`, key).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrorNotFound
	}
	return id, err
}

func (r *TaskRepo) GetStats(ctx context.Context, organizationID string) (model.Stats, error) {
	var s model.Stats
	err := r.pool.QueryRow(ctx, `
		SELECT count(*),
			count(*) FILTER (WHERE is_overdue),
			count(*) FILTER (WHERE status = 'completed'),
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'in_progress'),
			count(*) FILTER (WHERE status = 'cancelled')
		FROM tasks
		WHERE $1::text = '' OR organization_id = $1::text
	`, organizationID).Scan(&s.Total, &s.Overdue, &s.Completed, &s.Pending, &s.InProgress, &s.Cancelled)
	return s, err
}

func (r *TaskRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *TaskRepo) mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" { // unique_violation
			return ErrorConflict
		}
	}
	return err
}
