package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UsamaMalikDev/Task-App/internal/model"
	"github.com/UsamaMalikDev/Task-App/internal/repo"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newTask(org, owner, title string) model.Task {
	return model.Task{
		Title:          title,
		Status:         model.StatusPending,
		Priority:       model.PriorityMedium,
		DueDate:        base.Add(48 * time.Hour),
		OrganizationID: org,
		CreatedBy:      owner,
	}
}

// testRepository runs the shared behaviour checks against a fresh store per subtest.
func testRepository(t *testing.T, fresh func(t *testing.T) repo.TaskRepository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		r := fresh(t)
		created, err := r.Create(ctx, newTask("org-a", "alice", "Write report"))
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, 1, created.Version)
		assert.NotNil(t, created.Tags)

		got, err := r.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Write report", got.Title)
		assert.Equal(t, "org-a", got.OrganizationID)

		_, err = r.Get(ctx, "missing")
		assert.ErrorIs(t, err, repo.ErrorNotFound)
	})

	t.Run("get many keeps request order", func(t *testing.T) {
		r := fresh(t)
		a, err := r.Create(ctx, newTask("org-a", "alice", "A"))
		require.NoError(t, err)
		b, err := r.Create(ctx, newTask("org-a", "alice", "B"))
		require.NoError(t, err)

		tasks, err := r.GetMany(ctx, []string{b.ID, "missing", a.ID})
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, b.ID, tasks[0].ID)
		assert.Equal(t, a.ID, tasks[1].ID)
	})

	t.Run("find applies filter and sort", func(t *testing.T) {
		r := fresh(t)
		seed := []model.Task{
			newTask("org-a", "alice", "Deploy service"),
			newTask("org-a", "bob", "Review deploy plan"),
			newTask("org-a", "alice", "Lunch"),
			newTask("org-b", "alice", "Deploy elsewhere"),
		}
		seed[0].Priority = model.PriorityUrgent
		seed[1].Priority = model.PriorityLow
		seed[2].Priority = model.PriorityHigh
		for i := range seed {
			seed[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
			_, err := r.Create(ctx, seed[i])
			require.NoError(t, err)
		}

		org := "org-a"
		n, err := r.Count(ctx, model.TaskFilter{OrganizationID: &org})
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		owner := "alice"
		n, err = r.Count(ctx, model.TaskFilter{OrganizationID: &org, OwnerID: &owner})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		found, err := r.Find(ctx, model.TaskFilter{OrganizationID: &org, Search: "DEPLOY"},
			model.Sort{Field: model.SortCreatedAt}, 0, 10)
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "Deploy service", found[0].Title)
		assert.Equal(t, "Review deploy plan", found[1].Title)

		found, err = r.Find(ctx, model.TaskFilter{OrganizationID: &org},
			model.Sort{Field: model.SortPriority, Desc: true}, 0, 10)
		require.NoError(t, err)
		require.Len(t, found, 3)
		assert.Equal(t, model.PriorityUrgent, found[0].Priority)
		assert.Equal(t, model.PriorityHigh, found[1].Priority)
		assert.Equal(t, model.PriorityLow, found[2].Priority)

		found, err = r.Find(ctx, model.TaskFilter{}, model.Sort{Field: model.SortCreatedAt, Desc: true}, 1, 2)
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "Lunch", found[0].Title)
	})

	t.Run("find tolerates out of range offsets", func(t *testing.T) {
		r := fresh(t)
		for _, title := range []string{"one", "two"} {
			_, err := r.Create(ctx, newTask("org-a", "alice", title))
			require.NoError(t, err)
		}
		sortBy := model.Sort{Field: model.SortCreatedAt}

		found, err := r.Find(ctx, model.TaskFilter{}, sortBy, -40, 10)
		require.NoError(t, err)
		assert.Len(t, found, 2)

		found, err = r.Find(ctx, model.TaskFilter{}, sortBy, 1000, 10)
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("after position breaks created_at ties by id", func(t *testing.T) {
		r := fresh(t)
		for _, id := range []string{"task-b", "task-a", "task-c"} {
			task := newTask("org-a", "alice", id)
			task.ID = id
			task.CreatedAt = base
			_, err := r.Create(ctx, task)
			require.NoError(t, err)
		}

		desc := model.Sort{Field: model.SortCreatedAt, Desc: true}
		found, err := r.Find(ctx, model.TaskFilter{After: &model.Position{CreatedAt: base, ID: "task-c"}}, desc, 0, 10)
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "task-b", found[0].ID)
		assert.Equal(t, "task-a", found[1].ID)

		asc := model.Sort{Field: model.SortCreatedAt}
		found, err = r.Find(ctx, model.TaskFilter{After: &model.Position{CreatedAt: base, ID: "task-a"}}, asc, 0, 10)
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "task-b", found[0].ID)
		assert.Equal(t, "task-c", found[1].ID)
	})

	t.Run("update checks version", func(t *testing.T) {
		r := fresh(t)
		created, err := r.Create(ctx, newTask("org-a", "alice", "Original"))
		require.NoError(t, err)

		created.Title = "Renamed"
		updated, err := r.Update(ctx, created)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Title)
		assert.Equal(t, 2, updated.Version)

		created.Title = "Stale"
		_, err = r.Update(ctx, created)
		assert.ErrorIs(t, err, repo.ErrorConflict)

		created.ID = "missing"
		_, err = r.Update(ctx, created)
		assert.ErrorIs(t, err, repo.ErrorNotFound)
	})

	t.Run("update many", func(t *testing.T) {
		r := fresh(t)
		overdue := newTask("org-a", "alice", "Late")
		overdue.DueDate = base.Add(-time.Hour)
		overdue.IsOverdue = true
		a, err := r.Create(ctx, overdue)
		require.NoError(t, err)
		b, err := r.Create(ctx, newTask("org-b", "bob", "On time"))
		require.NoError(t, err)

		now := base.Add(time.Minute)
		updated, err := r.UpdateMany(ctx, []string{a.ID, "missing", b.ID},
			model.BulkPatch{Status: ptr(model.StatusCompleted), AssignedTo: ptr("carol")}, now)
		require.NoError(t, err)
		require.Len(t, updated, 2)
		for _, task := range updated {
			assert.Equal(t, model.StatusCompleted, task.Status)
			assert.Equal(t, "carol", task.AssignedTo)
			assert.False(t, task.IsOverdue)
			require.NotNil(t, task.CompletedAt)
			assert.True(t, task.CompletedAt.Equal(now))
			assert.Equal(t, 2, task.Version)
		}

		later := now.Add(time.Hour)
		updated, err = r.UpdateMany(ctx, []string{a.ID}, model.BulkPatch{Status: ptr(model.StatusCompleted)}, later)
		require.NoError(t, err)
		require.Len(t, updated, 1)
		assert.True(t, updated[0].CompletedAt.Equal(now), "completion time is kept")
	})

	t.Run("mark overdue", func(t *testing.T) {
		r := fresh(t)
		late := newTask("org-a", "alice", "Late")
		late.DueDate = base.Add(-24 * time.Hour)
		lateDone := late
		lateDone.Status = model.StatusCompleted
		lateOther := newTask("org-b", "bob", "Late elsewhere")
		lateOther.DueDate = base.Add(-time.Hour)

		a, err := r.Create(ctx, late)
		require.NoError(t, err)
		_, err = r.Create(ctx, lateDone)
		require.NoError(t, err)
		c, err := r.Create(ctx, lateOther)
		require.NoError(t, err)
		_, err = r.Create(ctx, newTask("org-a", "alice", "Future"))
		require.NoError(t, err)

		marks, err := r.MarkOverdue(ctx, base)
		require.NoError(t, err)
		assert.ElementsMatch(t, []model.OverdueMark{
			{ID: a.ID, OrganizationID: "org-a"},
			{ID: c.ID, OrganizationID: "org-b"},
		}, marks)

		got, err := r.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, got.IsOverdue)

		marks, err = r.MarkOverdue(ctx, base)
		require.NoError(t, err)
		assert.Empty(t, marks)
	})

	t.Run("delete", func(t *testing.T) {
		r := fresh(t)
		created, err := r.Create(ctx, newTask("org-a", "alice", "Temp"))
		require.NoError(t, err)

		require.NoError(t, r.Delete(ctx, created.ID))
		_, err = r.Get(ctx, created.ID)
		assert.ErrorIs(t, err, repo.ErrorNotFound)
		assert.ErrorIs(t, r.Delete(ctx, created.ID), repo.ErrorNotFound)
	})

	t.Run("idempotency keys", func(t *testing.T) {
		r := fresh(t)
		_, err := r.GetIdempotencyKey(ctx, "k1")
		assert.ErrorIs(t, err, repo.ErrorNotFound)

		require.NoError(t, r.SaveIdempotencyKey(ctx, "k1", "task-1"))
		require.NoError(t, r.SaveIdempotencyKey(ctx, "k1", "task-2"))

		id, err := r.GetIdempotencyKey(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "task-1", id)
	})

	t.Run("stats", func(t *testing.T) {
		r := fresh(t)
		done := newTask("org-a", "alice", "Done")
		done.Status = model.StatusCompleted
		late := newTask("org-a", "alice", "Late")
		late.IsOverdue = true
		for _, task := range []model.Task{done, late, newTask("org-b", "bob", "Other")} {
			_, err := r.Create(ctx, task)
			require.NoError(t, err)
		}

		s, err := r.GetStats(ctx, "org-a")
		require.NoError(t, err)
		assert.Equal(t, model.Stats{Total: 2, Overdue: 1, Completed: 1, Pending: 1}, s)

		s, err = r.GetStats(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 3, s.Total)
		assert.Equal(t, 2, s.Pending)
	})
}
