package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/UsamaMalikDev/Task-App/internal/access"
	"github.com/UsamaMalikDev/Task-App/internal/model"
	"github.com/UsamaMalikDev/Task-App/internal/repo"
	"github.com/UsamaMalikDev/Task-App/internal/service"
	"github.com/UsamaMalikDev/Task-App/internal/worker"
	"github.com/UsamaMalikDev/Task-App/pkg/respond"
)

// Sweeper runs one overdue sweep on demand.
type Sweeper interface {
	RunOnce(ctx context.Context) (worker.RunRecord, error)
}

type TaskHandler struct {
	service  *service.TaskService
	sweeper  Sweeper
	validate *validator.Validate
	logger   *zap.Logger
}

func NewTaskHandler(srv *service.TaskService, sweeper Sweeper, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service:  srv,
		sweeper:  sweeper,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	if r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return
	}

	var req model.TaskInput
	if !h.decode(w, r, &req) {
		return
	}

	idempKey := r.Header.Get("Idempotency-Key")
	task, err := h.service.Create(r.Context(), caller, req, idempKey)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/tasks/"+task.ID)
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := taskID(r)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	task, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	q, err := parseTaskQuery(r.URL.Query())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	page, err := h.service.List(r.Context(), caller, q)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, page)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := taskID(r)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	var req model.TaskPatch
	if !h.decode(w, r, &req) {
		return
	}

	task, err := h.service.Update(r.Context(), caller, id, req)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := taskID(r)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), caller, id); err != nil {
		h.handleErrors(w, r, err)
		return
	}

	respond.Message(w, r, http.StatusOK, "task deleted")
}

func (h *TaskHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req model.BulkUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	for i, id := range req.TaskIDs {
		parsed, err := parseID(id)
		if err != nil {
			h.handleErrors(w, r, err)
			return
		}
		req.TaskIDs[i] = parsed
	}

	result, err := h.service.BulkUpdate(r.Context(), caller, req.TaskIDs, req.BulkPatch)
	if errors.Is(err, service.ErrAllDenied) {
		respond.ErrorWithDetails(w, r, http.StatusForbidden, err.Error(), map[string]any{"skipped": result.Skipped})
		return
	}
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusOK, result)
}

func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), caller)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, stats)
}

// Sweep triggers the overdue sweep outside the timer. Admin only.
func (h *TaskHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if caller.Role() != access.RoleAdmin {
		respond.Error(w, r, http.StatusForbidden, "admin role required")
		return
	}
	if h.sweeper == nil {
		respond.Error(w, r, http.StatusServiceUnavailable, "overdue sweep unavailable")
		return
	}

	record, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, record)
}

func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		respond.JSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *TaskHandler) caller(w http.ResponseWriter, r *http.Request) (access.Caller, bool) {
	caller, ok := access.CallerFrom(r.Context())
	if !ok {
		respond.Error(w, r, http.StatusUnauthorized, "missing caller identity")
	}
	return caller, ok
}

// decode reads a JSON body into dst and validates it.
func (h *TaskHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Debug("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("validation error: %v", err))
		return false
	}
	return true
}

func (h *TaskHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	var (
		denied     *service.DeniedError
		missingErr *service.MissingTasksError
	)
	switch {
	case errors.As(err, &missingErr):
		respond.ErrorWithDetails(w, r, http.StatusNotFound, "not found", map[string]any{"missing_ids": missingErr.IDs})
	case errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.As(err, &denied):
		respond.ErrorWithDetails(w, r, http.StatusForbidden, "permission denied", map[string]string{"reason": denied.Reason})
	case errors.Is(err, service.ErrPermissionDenied), errors.Is(err, service.ErrAllDenied):
		respond.Error(w, r, http.StatusForbidden, "permission denied")
	case errors.Is(err, repo.ErrorConflict):
		respond.Error(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("internal error", zap.Error(err), zap.String("path", r.URL.Path))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}

func taskID(r *http.Request) (string, error) {
	return parseID(chi.URLParam(r, "id"))
}

func parseID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid task id %q", service.ErrValidation, raw)
	}
	return id.String(), nil
}

// first returns the first non-empty value among the given parameter names.
func first(values url.Values, names ...string) string {
	for _, name := range names {
		if v := values.Get(name); v != "" {
			return v
		}
	}
	return ""
}

func parseTaskQuery(values url.Values) (model.TaskQuery, error) {
	q := model.TaskQuery{
		Status:     values.Get("status"),
		Priority:   values.Get("priority"),
		AssignedTo: first(values, "assignedTo", "assigned_to"),
		CreatedBy:  first(values, "createdBy", "created_by"),
		Search:     values.Get("search"),
		SortBy:     first(values, "sortBy", "sort_by"),
		SortOrder:  first(values, "sortOrder", "sort_order"),
		Cursor:     values.Get("cursor"),
	}

	if raw := first(values, "isOverdue", "is_overdue"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return q, fmt.Errorf("%w: isOverdue must be a boolean", service.ErrValidation)
		}
		q.IsOverdue = &v
	}

	var err error
	if q.Limit, err = intParam(values, "limit"); err != nil {
		return q, err
	}
	if q.Page, err = intParam(values, "page"); err != nil {
		return q, err
	}
	if values.Has("page") && q.Page < 1 {
		return q, fmt.Errorf("%w: page must be at least 1", service.ErrValidation)
	}
	return q, nil
}

func intParam(values url.Values, name string) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", service.ErrValidation, name)
	}
	return n, nil
}
