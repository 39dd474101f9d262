package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/UsamaMalikDev/Task-App/internal/model"
)

// MockTaskRepository is a testify mock of repo.TaskRepository.
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Create(ctx context.Context, t model.Task) (model.Task, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskRepository) Get(ctx context.Context, id string) (model.Task, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskRepository) GetMany(ctx context.Context, ids []string) ([]model.Task, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockTaskRepository) Find(ctx context.Context, f model.TaskFilter, s model.Sort, offset, limit int) ([]model.Task, error) {
	args := m.Called(ctx, f, s, offset, limit)
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockTaskRepository) Count(ctx context.Context, f model.TaskFilter) (int, error) {
	args := m.Called(ctx, f)
	return args.Int(0), args.Error(1)
}

func (m *MockTaskRepository) Update(ctx context.Context, t model.Task) (model.Task, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskRepository) UpdateMany(ctx context.Context, ids []string, p model.BulkPatch, now time.Time) ([]model.Task, error) {
	args := m.Called(ctx, ids, p, now)
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockTaskRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTaskRepository) MarkOverdue(ctx context.Context, now time.Time) ([]model.OverdueMark, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]model.OverdueMark), args.Error(1)
}

func (m *MockTaskRepository) SaveIdempotencyKey(ctx context.Context, key string, resourceID string) error {
	args := m.Called(ctx, key, resourceID)
	return args.Error(0)
}

func (m *MockTaskRepository) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockTaskRepository) GetStats(ctx context.Context, organizationID string) (model.Stats, error) {
	args := m.Called(ctx, organizationID)
	return args.Get(0).(model.Stats), args.Error(1)
}

func (m *MockTaskRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
