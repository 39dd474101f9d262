package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/UsamaMalikDev/Task-App/internal/access"
	"github.com/UsamaMalikDev/Task-App/internal/cache"
	"github.com/UsamaMalikDev/Task-App/internal/model"
	"github.com/UsamaMalikDev/Task-App/internal/query"
	"github.com/UsamaMalikDev/Task-App/internal/repo"
)

type Options struct {
	Limits   query.Limits
	CacheTTL time.Duration
}

type TaskService struct {
	repo      repo.TaskRepository
	cache     *cache.Cache[model.TaskPage]
	paginator *query.Paginator
	limits    query.Limits
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewTaskService(r repo.TaskRepository, c *cache.Cache[model.TaskPage], logger *zap.Logger, opts Options) *TaskService {
	if opts.Limits.Default <= 0 || opts.Limits.Max <= 0 {
		opts.Limits = query.DefaultLimits
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = cache.New[model.TaskPage](opts.CacheTTL, logger)
	}
	return &TaskService{
		repo:      r,
		cache:     c,
		paginator: query.NewPaginator(r),
		limits:    opts.Limits,
		ttl:       opts.CacheTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// listKey is the part of a list request that determines its result.
type listKey struct {
	Role     string        `json:"role"`
	CallerID string        `json:"caller_id"`
	Request  query.Request `json:"request"`
}

func (s *TaskService) List(ctx context.Context, caller access.Caller, q model.TaskQuery) (model.TaskPage, error) {
	role := caller.Role()
	req, err := query.Build(role, caller.ID, caller.OrganizationID, q, s.limits)
	if err != nil {
		return model.TaskPage{}, err
	}

	scope := caller.OrganizationID
	if role == access.RoleAdmin {
		scope = cache.GlobalScope
	}
	key, err := cache.ListKey(scope, listKey{Role: role.String(), CallerID: caller.ID, Request: req})
	if err != nil {
		return model.TaskPage{}, err
	}

	if page, ok := s.cache.Get(key); ok {
		s.logger.Debug("task list cache hit", zap.String("key", key))
		return page, nil
	}

	// Read before querying: a mutation that invalidates while the query runs
	// must keep this page out of the cache.
	gen := s.cache.Generation()
	page, err := s.paginator.Paginate(ctx, req)
	if err != nil {
		return model.TaskPage{}, err
	}
	if s.cache.SetIfGeneration(key, page, s.ttl, gen) {
		s.logger.Debug("task list cached", zap.String("key", key), zap.Int("tasks", len(page.Tasks)))
	}
	return page, nil
}

func (s *TaskService) Get(ctx context.Context, caller access.Caller, id string) (model.Task, error) {
	return s.load(ctx, caller, id, access.OpRead)
}

func (s *TaskService) Create(ctx context.Context, caller access.Caller, in model.TaskInput, idempKey string) (model.Task, error) {
	if caller.OrganizationID == "" {
		return model.Task{}, fmt.Errorf("%w: caller organization is required", ErrValidation)
	}

	// A repeated idempotency key returns the task created by the first request.
	if idempKey != "" {
		idempKey = caller.OrganizationID + ":" + caller.ID + ":" + idempKey
		existingID, err := s.repo.GetIdempotencyKey(ctx, idempKey)
		switch {
		case err == nil:
			return s.repo.Get(ctx, existingID)
		case !errors.Is(err, repo.ErrorNotFound):
			return model.Task{}, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	now := s.now().UTC()
	t := model.Task{
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Status:         in.Status,
		Priority:       in.Priority,
		DueDate:        in.DueDate,
		OrganizationID: caller.OrganizationID,
		CreatedBy:      caller.ID,
		AssignedTo:     in.AssignedTo,
		Tags:           in.Tags,
	}
	if t.Status == "" {
		t.Status = model.StatusPending
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if t.Status == model.StatusCompleted {
		t.CompletedAt = &now
	}
	t.IsOverdue = t.PastDue(now)

	if err := s.validate(t); err != nil {
		return t, err
	}

	created, err := s.repo.Create(ctx, t)
	if err != nil {
		return created, fmt.Errorf("create task: %w", err)
	}

	if idempKey != "" {
		if err := s.repo.SaveIdempotencyKey(ctx, idempKey, created.ID); err != nil {
			s.logger.Error("save idempotency key", zap.String("task_id", created.ID), zap.Error(err))
		}
	}

	s.InvalidateOrganizations(created.OrganizationID)
	return created, nil
}

func (s *TaskService) Update(ctx context.Context, caller access.Caller, id string, patch model.TaskPatch) (model.Task, error) {
	t, err := s.load(ctx, caller, id, access.OpWrite)
	if err != nil {
		return t, err
	}
	if patch.Version != nil && *patch.Version != t.Version {
		return t, repo.ErrorConflict
	}

	now := s.now().UTC()
	applyPatch(&t, patch, now)
	if err := s.validate(t); err != nil {
		return t, err
	}

	updated, err := s.repo.Update(ctx, t)
	if err != nil {
		return updated, fmt.Errorf("update task %s: %w", id, err)
	}

	s.InvalidateOrganizations(updated.OrganizationID)
	return updated, nil
}

// applyPatch copies the set fields of p onto t. A first transition to
// completed stamps the completion time; an explicit completion time is kept
// only for tasks that do not end up completed.
func applyPatch(t *model.Task, p model.TaskPatch, now time.Time) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.AssignedTo != nil {
		t.AssignedTo = *p.AssignedTo
	}
	if p.Tags != nil {
		t.Tags = *p.Tags
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Status != nil {
		t.Status = *p.Status
	}

	if t.Status == model.StatusCompleted {
		if t.CompletedAt == nil {
			t.CompletedAt = &now
		}
	} else if p.CompletedAt != nil {
		at := *p.CompletedAt
		t.CompletedAt = &at
	}

	if p.Status != nil || p.DueDate != nil {
		t.IsOverdue = t.PastDue(now)
	}
}

func (s *TaskService) Delete(ctx context.Context, caller access.Caller, id string) error {
	t, err := s.load(ctx, caller, id, access.OpDelete)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	s.InvalidateOrganizations(t.OrganizationID)
	return nil
}

// BulkUpdate applies p to every requested task the caller may write. Every id
// must exist. Tasks the caller may not write are reported as skipped.
func (s *TaskService) BulkUpdate(ctx context.Context, caller access.Caller, ids []string, p model.BulkPatch) (model.BulkResult, error) {
	if p.Empty() {
		return model.BulkResult{}, fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if p.Status != nil && !p.Status.Valid() {
		return model.BulkResult{}, fmt.Errorf("%w: unknown status %q", ErrValidation, *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return model.BulkResult{}, fmt.Errorf("%w: unknown priority %q", ErrValidation, *p.Priority)
	}

	ids = dedupe(ids)
	if len(ids) == 0 {
		return model.BulkResult{}, fmt.Errorf("%w: no task ids", ErrValidation)
	}

	tasks, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return model.BulkResult{}, fmt.Errorf("load tasks: %w", err)
	}
	if len(tasks) != len(ids) {
		return model.BulkResult{}, &MissingTasksError{IDs: missing(ids, tasks)}
	}

	role := caller.Role()
	allowed := make([]string, 0, len(tasks))
	skipped := make([]model.SkippedTask, 0)
	for _, t := range tasks {
		d := access.CanAccess(role, caller.ID, caller.OrganizationID, t, access.OpWrite)
		if !d.Allowed {
			s.logDenied(caller, role, t.ID, access.OpWrite, d.Reason)
			skipped = append(skipped, model.SkippedTask{ID: t.ID, Reason: d.Reason})
			continue
		}
		allowed = append(allowed, t.ID)
	}
	if len(allowed) == 0 {
		return model.BulkResult{Updated: []model.Task{}, Skipped: skipped}, ErrAllDenied
	}

	updated, err := s.repo.UpdateMany(ctx, allowed, p, s.now().UTC())
	if err != nil {
		return model.BulkResult{}, fmt.Errorf("bulk update: %w", err)
	}

	orgs := make([]string, 0, len(updated))
	for _, t := range updated {
		orgs = append(orgs, t.OrganizationID)
	}
	s.InvalidateOrganizations(orgs...)

	s.logger.Info("bulk update applied",
		zap.String("caller_id", caller.ID),
		zap.Int("updated", len(updated)),
		zap.Int("skipped", len(skipped)),
	)
	return model.BulkResult{Updated: updated, Skipped: skipped}, nil
}

// Stats counts tasks in the caller's organization, or globally for admins.
func (s *TaskService) Stats(ctx context.Context, caller access.Caller) (model.Stats, error) {
	org := caller.OrganizationID
	if caller.Role() == access.RoleAdmin {
		org = ""
	}
	return s.repo.GetStats(ctx, org)
}

func (s *TaskService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// InvalidateOrganizations drops cached lists of each organization and every
// global list.
func (s *TaskService) InvalidateOrganizations(orgs ...string) {
	seen := make(map[string]struct{}, len(orgs)+1)
	for _, scope := range append(orgs, cache.GlobalScope) {
		if _, ok := seen[scope]; ok {
			continue
		}
		seen[scope] = struct{}{}

		removed, err := s.cache.DeletePattern(cache.ScopePattern(scope))
		if err != nil {
			s.logger.Error("cache invalidation failed", zap.String("scope", scope), zap.Error(err))
			continue
		}
		s.logger.Debug("cache invalidated", zap.String("scope", scope), zap.Int("removed", removed))
	}
}

func (s *TaskService) load(ctx context.Context, caller access.Caller, id string, op access.Operation) (model.Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrorNotFound) {
			return t, err
		}
		return t, fmt.Errorf("load task %s: %w", id, err)
	}

	role := caller.Role()
	if d := access.CanAccess(role, caller.ID, caller.OrganizationID, t, op); !d.Allowed {
		s.logDenied(caller, role, id, op, d.Reason)
		return model.Task{}, &DeniedError{TaskID: id, Reason: d.Reason}
	}
	return t, nil
}

func (s *TaskService) logDenied(caller access.Caller, role access.Role, taskID string, op access.Operation, reason string) {
	s.logger.Warn("access denied",
		zap.String("caller_id", caller.ID),
		zap.Stringer("role", role),
		zap.String("organization_id", caller.OrganizationID),
		zap.String("task_id", taskID),
		zap.String("operation", string(op)),
		zap.String("reason", reason),
	)
}

func (s *TaskService) validate(t model.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, t.Priority)
	}
	if t.DueDate.IsZero() {
		return fmt.Errorf("%w: due date is required", ErrValidation)
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missing(ids []string, found []model.Task) []string {
	present := make(map[string]struct{}, len(found))
	for _, t := range found {
		present[t.ID] = struct{}{}
	}
	var out []string
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
