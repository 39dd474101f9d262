package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/UsamaMalikDev/Task-App/internal/model"
	"github.com/UsamaMalikDev/Task-App/internal/repo"
	"github.com/UsamaMalikDev/Task-App/internal/testutil"
)

type recordingInvalidator struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recordingInvalidator) InvalidateOrganizations(orgs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, orgs)
}

func (r *recordingInvalidator) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

type failingStore struct {
	calls int
}

func (f *failingStore) MarkOverdue(ctx context.Context, now time.Time) ([]model.OverdueMark, error) {
	f.calls++
	return nil, errors.New("connection reset")
}

func (f *failingStore) GetStats(ctx context.Context, organizationID string) (model.Stats, error) {
	return model.Stats{}, nil
}

func createTask(t *testing.T, store repo.TaskRepository, org string, status model.Status, due time.Time) model.Task {
	t.Helper()
	created, err := store.Create(context.Background(), model.Task{
		Title:          "task",
		Status:         status,
		Priority:       model.PriorityMedium,
		DueDate:        due,
		OrganizationID: org,
		CreatedBy:      "alice",
	})
	require.NoError(t, err)
	return created
}

func TestOverdueScheduler_RunOnce(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryTaskRepo()
	invalidator := &recordingInvalidator{}
	yesterday := time.Now().Add(-24 * time.Hour)

	late := createTask(t, store, "org-a", model.StatusPending, yesterday)
	lateElsewhere := createTask(t, store, "org-b", model.StatusInProgress, yesterday)
	done := createTask(t, store, "org-a", model.StatusCompleted, yesterday)
	cancelled := createTask(t, store, "org-a", model.StatusCancelled, yesterday)
	future := createTask(t, store, "org-a", model.StatusPending, time.Now().Add(24*time.Hour))

	scheduler := NewOverdueScheduler(store, invalidator, zap.NewNop(), time.Hour)

	record, err := scheduler.RunOnce(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{late.ID, lateElsewhere.ID}, record.TaskIDs)
	assert.ElementsMatch(t, []string{"org-a", "org-b"}, record.Organizations)
	require.NotNil(t, record.Stats)
	assert.Equal(t, 5, record.Stats.Total)
	assert.Equal(t, 2, record.Stats.Overdue)
	assert.Equal(t, StateIdle, scheduler.State())

	for _, tc := range []struct {
		task model.Task
		want bool
	}{
		{late, true}, {lateElsewhere, true}, {done, false}, {cancelled, false}, {future, false},
	} {
		got, err := store.Get(ctx, tc.task.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.IsOverdue, "task %s in status %s", got.ID, got.Status)
	}

	t.Run("second run selects nothing", func(t *testing.T) {
		record, err := scheduler.RunOnce(ctx)
		require.NoError(t, err)
		assert.Empty(t, record.TaskIDs)
		assert.Nil(t, record.Stats)
		assert.Len(t, invalidator.Calls(), 1, "empty run has no side effects")
	})
}

func TestOverdueScheduler_Failure(t *testing.T) {
	store := &failingStore{}
	scheduler := NewOverdueScheduler(store, nil, zap.NewNop(), time.Hour)

	_, err := scheduler.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, scheduler.State())

	scheduler.tick(context.Background())
	assert.Equal(t, 2, store.calls, "a failed tick does not stop later ticks")
}

func TestOverdueScheduler_StartStop(t *testing.T) {
	store := repo.NewMemoryTaskRepo()
	invalidator := &recordingInvalidator{}
	late := createTask(t, store, "org-a", model.StatusPending, time.Now().Add(-time.Hour))

	scheduler := NewOverdueScheduler(store, invalidator, zap.NewNop(), 20*time.Millisecond)
	scheduler.Start(context.Background())

	flagged := testutil.WaitForCondition(t, 2*time.Second, func() bool {
		got, err := store.Get(context.Background(), late.ID)
		return err == nil && got.IsOverdue
	})

	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	assert.True(t, flagged, "task should be flagged by a tick")
	assert.Equal(t, [][]string{{"org-a"}}, invalidator.Calls())

	// Stop is safe to call twice.
	scheduler.Stop()
}

func TestOverdueScheduler_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scheduler := NewOverdueScheduler(repo.NewMemoryTaskRepo(), nil, zap.NewNop(), time.Hour)
	scheduler.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		scheduler.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler loop ignored context cancellation")
	}
}

func TestOverdueScheduler_Postgres(t *testing.T) {
	pool, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	testutil.TruncateTables(t, pool)
	yesterday := time.Now().Add(-24 * time.Hour)
	ids := testutil.SeedTasks(t, pool,
		testutil.SeedTask{OrganizationID: "org-a", CreatedBy: "alice", DueDate: yesterday},
		testutil.SeedTask{OrganizationID: "org-a", CreatedBy: "alice", Status: "completed", DueDate: yesterday},
		testutil.SeedTask{OrganizationID: "org-b", CreatedBy: "bob"},
	)

	scheduler := NewOverdueScheduler(repo.NewTaskRepo(pool), nil, zap.NewNop(), time.Hour)

	record, err := scheduler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0]}, record.TaskIDs)

	record, err = scheduler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, record.TaskIDs)

	var overdue int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM tasks WHERE is_overdue").Scan(&overdue))
	assert.Equal(t, 1, overdue)
}
