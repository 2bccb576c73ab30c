package views

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peaknext/projectflow/internal/backend"
	"github.com/peaknext/projectflow/internal/cache"
	"github.com/peaknext/projectflow/internal/domain"
	"github.com/peaknext/projectflow/internal/mutation"
)

const viewer = "user-1"

type harness struct {
	store   *cache.Store
	backend *backend.Memory
	engine  *mutation.Engine
	project *domain.Project
	status  []*domain.Status
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	p := domain.NewProject("dept-1", "Launch", viewer)
	statuses := []*domain.Status{
		domain.NewStatus(p.ID, "To Do", 1, domain.StatusNotStarted),
		domain.NewStatus(p.ID, "Doing", 2, domain.StatusInProgress),
		domain.NewStatus(p.ID, "Done", 3, domain.StatusDone),
	}
	be := backend.NewMemory()
	be.SeedProject(p, statuses)

	store := cache.New()
	return &harness{
		store:   store,
		backend: be,
		engine:  mutation.New(store, be, viewer),
		project: p,
		status:  statuses,
	}
}

func (h *harness) seedTask(t *testing.T, name, statusID string, mutate func(*domain.Task)) *domain.Task {
	t.Helper()
	task := domain.NewTask(h.project.ID, statusID, name, viewer)
	if mutate != nil {
		mutate(task)
	}
	h.backend.SeedTask(task)
	return task
}

func TestDueHelpers(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	soon := now.Add(24 * time.Hour)
	far := now.Add(96 * time.Hour)

	open := &domain.Task{DueDate: &past}
	assert.True(t, IsOverdue(open, now))
	assert.False(t, IsDueSoon(open, now, DefaultDueSoonWindow))

	open.DueDate = &soon
	assert.False(t, IsOverdue(open, now))
	assert.True(t, IsDueSoon(open, now, DefaultDueSoonWindow))

	open.DueDate = &far
	assert.False(t, IsDueSoon(open, now, DefaultDueSoonWindow))

	closed := &domain.Task{DueDate: &past, IsClosed: true}
	assert.False(t, IsOverdue(closed, now))

	undated := &domain.Task{}
	assert.False(t, IsOverdue(undated, now))
	assert.False(t, IsDueSoon(undated, now, DefaultDueSoonWindow))
}

func TestBoardGroupsByStatusInOrder(t *testing.T) {
	h := newHarness(t)
	h.seedTask(t, "a", h.status[0].ID, nil)
	h.seedTask(t, "b", h.status[2].ID, nil)

	binding := BindBoard(h.store, h.backend, h.project.ID)
	require.NoError(t, binding.Fetch(context.Background()))

	v, err := h.store.Read(binding.Key)
	require.NoError(t, err)
	board := v.(*Board)

	require.NotNil(t, board.Project)
	require.Len(t, board.Columns, 3)
	assert.Equal(t, "To Do", board.Columns[0].Status.Name)
	assert.Len(t, board.Columns[0].Tasks, 1)
	assert.Len(t, board.Columns[1].Tasks, 0)
	assert.Len(t, board.Columns[2].Tasks, 1)
}

func TestBoardReflectsOptimisticMove(t *testing.T) {
	h := newHarness(t)
	task := h.seedTask(t, "a", h.status[0].ID, nil)

	binding := BindBoard(h.store, h.backend, h.project.ID)
	require.NoError(t, binding.Fetch(context.Background()))

	doingID := h.status[1].ID
	_, err := h.engine.UpdateTask(context.Background(), task.ID, domain.UpdateTaskInput{StatusID: &doingID})
	require.NoError(t, err)

	v, err := h.store.Read(binding.Key)
	require.NoError(t, err)
	board := v.(*Board)
	assert.Empty(t, board.Columns[0].Tasks)
	require.Len(t, board.Columns[1].Tasks, 1)
	assert.Equal(t, task.ID, board.Columns[1].Tasks[0].ID)
}

func TestTaskListPartitionsPinned(t *testing.T) {
	h := newHarness(t)
	pinnedTask := h.seedTask(t, "pin me", h.status[0].ID, nil)
	h.seedTask(t, "plain", h.status[0].ID, nil)
	require.NoError(t, h.backend.PinTask(context.Background(), viewer, pinnedTask.ID))

	pid := h.project.ID
	binding := BindTaskList(h.store, h.backend, viewer, domain.TaskFilter{ProjectID: &pid})
	require.NoError(t, binding.Fetch(context.Background()))

	v, err := h.store.Read(binding.Key)
	require.NoError(t, err)
	list := v.(*TaskList)

	require.Len(t, list.Pinned, 1)
	assert.Equal(t, pinnedTask.ID, list.Pinned[0].ID)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "plain", list.Items[0].Name)
}

func TestTaskListHidesClosedByDefault(t *testing.T) {
	h := newHarness(t)
	open := h.seedTask(t, "open", h.status[0].ID, nil)
	h.seedTask(t, "closed", h.status[2].ID, func(task *domain.Task) {
		ct := domain.CloseCompleted
		task.IsClosed = true
		task.CloseType = &ct
	})

	pid := h.project.ID
	binding := BindTaskList(h.store, h.backend, viewer, domain.TaskFilter{ProjectID: &pid})
	require.NoError(t, binding.Fetch(context.Background()))

	v, err := h.store.Read(binding.Key)
	require.NoError(t, err)
	list := v.(*TaskList)
	require.Len(t, list.Items, 1)
	assert.Equal(t, open.ID, list.Items[0].ID)
}

func TestSortForDisplay(t *testing.T) {
	early := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC)
	tasks := []*domain.Task{
		{Name: "undated low", Priority: 3},
		{Name: "late urgent", Priority: 1, DueDate: &late},
		{Name: "early urgent", Priority: 1, DueDate: &early},
		{Name: "undated urgent", Priority: 1},
	}

	sortForDisplay(tasks)

	names := make([]string, len(tasks))
	for i, task := range tasks {
		names[i] = task.Name
	}
	assert.Equal(t, []string{"early urgent", "late urgent", "undated urgent", "undated low"}, names)
}

func TestTaskDetailShape(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	task := h.seedTask(t, "parent", h.status[1].ID, nil)
	h.seedTask(t, "child", h.status[0].ID, func(sub *domain.Task) {
		sub.ParentTaskID = &task.ID
	})

	checked := true
	item1, err := h.backend.CreateChecklistItem(ctx, task.ID, domain.ChecklistItemInput{Name: "one", Order: 1})
	require.NoError(t, err)
	_, err = h.backend.UpdateChecklistItem(ctx, task.ID, item1.ID, domain.ChecklistItemUpdate{IsChecked: &checked})
	require.NoError(t, err)
	_, err = h.backend.CreateChecklistItem(ctx, task.ID, domain.ChecklistItemInput{Name: "two", Order: 2})
	require.NoError(t, err)
	_, err = h.backend.CreateComment(ctx, task.ID, domain.CommentInput{Content: "hello", AuthorUserID: viewer})
	require.NoError(t, err)
	require.NoError(t, h.backend.PinTask(ctx, viewer, task.ID))

	binding := BindTaskDetail(h.store, h.backend, viewer, task.ID)
	require.NoError(t, binding.Fetch(ctx))

	// The subtask arrives via another view's fetch.
	board := BindBoard(h.store, h.backend, h.project.ID)
	require.NoError(t, board.Fetch(ctx))

	v, err := h.store.Read(binding.Key)
	require.NoError(t, err)
	detail := v.(*TaskDetail)

	assert.Equal(t, task.ID, detail.Task.ID)
	require.NotNil(t, detail.Status)
	assert.Equal(t, "Doing", detail.Status.Name)
	assert.Equal(t, 1, detail.ChecklistProgress.Completed)
	assert.Equal(t, 2, detail.ChecklistProgress.Total)
	require.Len(t, detail.Comments, 1)
	assert.True(t, detail.IsPinned)
	assert.Equal(t, 1, detail.SubtaskCount)
}

func TestTaskDetailMissingTask(t *testing.T) {
	h := newHarness(t)
	binding := BindTaskDetail(h.store, h.backend, viewer, "ghost")

	_, err := h.store.Read(binding.Key)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDashboardStatsAndWindows(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	overdue := now.Add(-2 * time.Hour)
	soon := now.Add(12 * time.Hour)

	h.seedTask(t, "mine overdue", h.status[0].ID, func(task *domain.Task) {
		task.AssigneeUserIDs = []string{viewer}
		task.SyncAssigneeMirror()
		task.DueDate = &overdue
	})
	h.seedTask(t, "mine soon", h.status[0].ID, func(task *domain.Task) {
		task.AssigneeUserIDs = []string{viewer}
		task.SyncAssigneeMirror()
		task.DueDate = &soon
	})
	h.seedTask(t, "someone else's", h.status[0].ID, func(task *domain.Task) {
		task.CreatedBy = "user-2"
		task.AssigneeUserIDs = []string{"user-2"}
		task.SyncAssigneeMirror()
	})

	binding := BindDashboard(h.store, h.backend, viewer, DashboardOptions{
		MyCreated: PageWindow{Limit: 1},
	}, func() time.Time { return now })
	require.NoError(t, binding.Fetch(context.Background()))

	v, err := h.store.Read(binding.Key)
	require.NoError(t, err)
	d := v.(*Dashboard)

	assert.Equal(t, 2, d.Stats.AssignedTasks)
	assert.Equal(t, 2, d.Stats.CreatedTasks)
	assert.Equal(t, 1, d.Stats.OverdueTasks)
	assert.Equal(t, 1, d.Stats.DueSoonTasks)

	assert.Equal(t, 2, d.MyCreatedTotal)
	assert.Len(t, d.MyCreated, 1) // window limit
	assert.Len(t, d.AssignedToMe, 2)
}

func TestPageWindowSlice(t *testing.T) {
	tasks := []*domain.Task{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	assert.Len(t, PageWindow{}.slice(tasks), 3)
	assert.Len(t, PageWindow{Limit: 2}.slice(tasks), 2)
	got := PageWindow{Offset: 1, Limit: 5}.slice(tasks)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Empty(t, PageWindow{Offset: 9}.slice(tasks))
}

func TestDepartmentTasksRollup(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	h.seedTask(t, "open", h.status[0].ID, nil)
	h.seedTask(t, "done", h.status[2].ID, func(task *domain.Task) {
		ct := domain.CloseCompleted
		task.IsClosed = true
		task.CloseType = &ct
	})

	binding := BindDepartmentTasks(h.store, h.backend, "dept-1", domain.TaskFilter{}, func() time.Time { return now })
	require.NoError(t, binding.Fetch(context.Background()))

	v, err := h.store.Read(binding.Key)
	require.NoError(t, err)
	dept := v.(*DepartmentTasks)

	require.Len(t, dept.Groups, 1)
	g := dept.Groups[0]
	assert.Equal(t, h.project.ID, g.Project.ID)
	assert.Equal(t, 2, g.Stats.TotalTasks)
	assert.Equal(t, 1, g.Stats.CompletedTasks)
	// Display tasks honor the default filter, which hides closed tasks.
	assert.Len(t, g.Tasks, 1)

	assert.Equal(t, 1, dept.Stats.TotalProjects)
	assert.Equal(t, 1, dept.Stats.ActiveProjects)
	assert.InDelta(t, 0.5, dept.Stats.CompletionRate, 1e-9)
}

func TestIngestDropsVanishedTasks(t *testing.T) {
	h := newHarness(t)
	kept := h.seedTask(t, "kept", h.status[0].ID, nil)

	binding := BindBoard(h.store, h.backend, h.project.ID)
	require.NoError(t, binding.Fetch(context.Background()))

	// A task another client deleted: present in the cache, absent from the
	// next fetch.
	ghost := domain.NewTask(h.project.ID, h.status[0].ID, "ghost", viewer)
	h.store.PutTask(ghost)

	require.NoError(t, binding.Fetch(context.Background()))

	assert.Nil(t, h.store.GetTask(ghost.ID))
	assert.NotNil(t, h.store.GetTask(kept.ID))
}

func TestProjectProgressUsesCachedBoard(t *testing.T) {
	h := newHarness(t)
	task := h.seedTask(t, "a", h.status[0].ID, nil)

	// No board cached yet: falls back to the server-side value.
	res, err := ProjectProgress(context.Background(), h.store, h.backend, h.project.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, res.Progress, 1e-9)
	assert.Equal(t, 0, res.TotalTasks) // fallback carries only the ratio

	board := BindBoard(h.store, h.backend, h.project.ID)
	require.NoError(t, board.Fetch(context.Background()))

	// With the board cached, the ratio reflects unreconciled local state.
	doingID := h.status[1].ID
	_, err = h.engine.UpdateTask(context.Background(), task.ID, domain.UpdateTaskInput{StatusID: &doingID})
	require.NoError(t, err)

	res, err = ProjectProgress(context.Background(), h.store, h.backend, h.project.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, res.Progress, 1e-9)
	assert.Equal(t, 1, res.TotalTasks)
}

func TestRefetcherRefreshesStaleMountedViews(t *testing.T) {
	h := newHarness(t)
	task := h.seedTask(t, "a", h.status[0].ID, nil)

	binding := BindBoard(h.store, h.backend, h.project.ID)
	require.NoError(t, binding.Fetch(context.Background()))
	h.store.Mount(binding.Key)

	r := NewRefetcher(h.store, nil)
	r.Register(binding)

	// A successful mutation marks the board stale.
	name := "renamed"
	_, err := h.engine.UpdateTask(context.Background(), task.ID, domain.UpdateTaskInput{Name: &name})
	require.NoError(t, err)
	require.True(t, h.store.IsStale(binding.Key))

	r.RefreshStale(context.Background())
	assert.False(t, h.store.IsStale(binding.Key))
}

func TestRefetcherSkipsUnmounted(t *testing.T) {
	h := newHarness(t)
	binding := BindBoard(h.store, h.backend, h.project.ID)

	r := NewRefetcher(h.store, nil)
	r.Register(binding)

	// Bound but never mounted: stale, yet not refetched.
	require.True(t, h.store.IsStale(binding.Key))
	r.RefreshStale(context.Background())
	assert.True(t, h.store.IsStale(binding.Key))
}
