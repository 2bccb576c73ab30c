package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peaknext/projectflow/internal/domain"
)

func newTestSQLite(t *testing.T) (*SQLite, *domain.Project, []*domain.Status) {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	p := domain.NewProject("dept-1", "Launch", "user-1")
	statuses := []*domain.Status{
		domain.NewStatus(p.ID, "To Do", 1, domain.StatusNotStarted),
		domain.NewStatus(p.ID, "Doing", 2, domain.StatusInProgress),
		domain.NewStatus(p.ID, "Done", 3, domain.StatusDone),
	}
	require.NoError(t, s.SeedProject(p, statuses))
	return s, p, statuses
}

func TestSQLiteTaskRoundTrip(t *testing.T) {
	s, p, statuses := newTestSQLite(t)
	ctx := context.Background()

	due := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)
	diff := 3
	created, err := s.CreateTask(ctx, domain.CreateTaskInput{
		Name:            "Write migration",
		Description:     "with rollback",
		ProjectID:       p.ID,
		StatusID:        statuses[0].ID,
		Difficulty:      &diff,
		DueDate:         &due,
		AssigneeUserIDs: []string{"user-2", "user-3"},
		CreatedBy:       "user-1",
	})
	require.NoError(t, err)

	got, err := s.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write migration", got.Name)
	assert.Equal(t, []string{"user-2", "user-3"}, got.AssigneeUserIDs)
	require.NotNil(t, got.AssigneeUserID)
	assert.Equal(t, "user-2", *got.AssigneeUserID)
	require.NotNil(t, got.Difficulty)
	assert.Equal(t, 3, *got.Difficulty)
	require.NotNil(t, got.DueDate)
	assert.True(t, got.DueDate.Equal(due))
	assert.Equal(t, "user-1", got.CreatedBy)
}

func TestSQLiteCreateTaskRejectsForeignStatus(t *testing.T) {
	s, p, _ := newTestSQLite(t)

	_, err := s.CreateTask(context.Background(), domain.CreateTaskInput{
		Name: "t", ProjectID: p.ID, StatusID: "not-here",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSQLiteProgressPersisted(t *testing.T) {
	s, p, statuses := newTestSQLite(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, domain.CreateTaskInput{
		Name: "t", ProjectID: p.ID, StatusID: statuses[1].ID,
	})
	require.NoError(t, err)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, got.Progress, 1e-9)

	_, err = s.CloseTask(ctx, task.ID, domain.CloseTaskInput{Type: domain.CloseCompleted, ClosedBy: "user-1"})
	require.NoError(t, err)

	got, err = s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.Progress, 1e-9)
}

func TestSQLiteCloseRecordsActorAndComment(t *testing.T) {
	s, p, statuses := newTestSQLite(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, domain.CreateTaskInput{
		Name: "t", ProjectID: p.ID, StatusID: statuses[0].ID,
	})
	require.NoError(t, err)

	closed, err := s.CloseTask(ctx, task.ID, domain.CloseTaskInput{
		Type: domain.CloseAborted, Comment: "superseded", ClosedBy: "user-4",
	})
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)
	require.NotNil(t, closed.ClosedBy)
	assert.Equal(t, "user-4", *closed.ClosedBy)

	comments, err := s.ListComments(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "superseded", comments[0].Content)
	assert.Equal(t, "user-4", comments[0].UserID)
}

func TestSQLiteUpdateTaskPartial(t *testing.T) {
	s, p, statuses := newTestSQLite(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, domain.CreateTaskInput{
		Name: "before", ProjectID: p.ID, StatusID: statuses[0].ID,
	})
	require.NoError(t, err)

	name := "after"
	prio := 1
	got, err := s.UpdateTask(ctx, task.ID, domain.UpdateTaskInput{Name: &name, Priority: &prio})
	require.NoError(t, err)
	assert.Equal(t, "after", got.Name)
	assert.Equal(t, 1, got.Priority)
	assert.Equal(t, statuses[0].ID, got.StatusID)
}

func TestSQLiteDeleteTaskSoft(t *testing.T) {
	s, p, statuses := newTestSQLite(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, domain.CreateTaskInput{
		Name: "t", ProjectID: p.ID, StatusID: statuses[0].ID,
	})
	require.NoError(t, err)
	require.NoError(t, s.DeleteTask(ctx, task.ID))

	_, err = s.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	tasks, err := s.ListTasks(ctx, domain.TaskFilter{ProjectID: &p.ID})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestSQLiteDeletedTaskIsTerminal(t *testing.T) {
	s, p, statuses := newTestSQLite(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, domain.CreateTaskInput{
		Name: "t", ProjectID: p.ID, StatusID: statuses[0].ID,
	})
	require.NoError(t, err)
	require.NoError(t, s.DeleteTask(ctx, task.ID))

	_, err = s.CloseTask(ctx, task.ID, domain.CloseTaskInput{Type: domain.CloseCompleted})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = s.DeleteTask(ctx, task.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteChecklistAndComments(t *testing.T) {
	s, p, statuses := newTestSQLite(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, domain.CreateTaskInput{
		Name: "t", ProjectID: p.ID, StatusID: statuses[0].ID,
	})
	require.NoError(t, err)

	item, err := s.CreateChecklistItem(ctx, task.ID, domain.ChecklistItemInput{Name: "step 1", Order: 1})
	require.NoError(t, err)

	checked := true
	updated, err := s.UpdateChecklistItem(ctx, task.ID, item.ID, domain.ChecklistItemUpdate{IsChecked: &checked})
	require.NoError(t, err)
	assert.True(t, updated.IsChecked)

	items, err := s.ListChecklist(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsChecked)

	require.NoError(t, s.DeleteChecklistItem(ctx, task.ID, item.ID))
	items, err = s.ListChecklist(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	c, err := s.CreateComment(ctx, task.ID, domain.CommentInput{
		Content: "ping @user-2", MentionedUserIDs: []string{"user-2"}, AuthorUserID: "user-1",
	})
	require.NoError(t, err)

	comments, err := s.ListComments(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, c.ID, comments[0].ID)
	assert.Equal(t, []string{"user-2"}, comments[0].MentionedUserIDs)
}

func TestSQLitePinnedTasks(t *testing.T) {
	s, p, statuses := newTestSQLite(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, domain.CreateTaskInput{
		Name: "t", ProjectID: p.ID, StatusID: statuses[0].ID,
	})
	require.NoError(t, err)

	require.NoError(t, s.PinTask(ctx, "user-1", task.ID))
	// Pinning twice is a no-op, not an error.
	require.NoError(t, s.PinTask(ctx, "user-1", task.ID))

	pinned, err := s.ListPinnedTasks(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{task.ID}, pinned)

	require.NoError(t, s.UnpinTask(ctx, "user-1", task.ID))
	pinned, err = s.ListPinnedTasks(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, pinned)
}
