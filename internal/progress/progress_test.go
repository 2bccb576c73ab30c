package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/peaknext/projectflow/internal/domain"
)

func threeStatuses(projectID string) []*domain.Status {
	return []*domain.Status{
		domain.NewStatus(projectID, "To Do", 1, domain.StatusNotStarted),
		domain.NewStatus(projectID, "Doing", 2, domain.StatusInProgress),
		domain.NewStatus(projectID, "Done", 3, domain.StatusDone),
	}
}

func taskAt(statuses []*domain.Status, order, difficulty int) *domain.Task {
	t := domain.NewTask("p1", statuses[order-1].ID, "task", "u1")
	t.Difficulty = &difficulty
	return t
}

func closeAs(t *domain.Task, ct domain.CloseType) *domain.Task {
	now := time.Now()
	t.IsClosed = true
	t.CloseType = &ct
	t.ClosedAt = &now
	return t
}

func TestCompute_EmptyTaskList(t *testing.T) {
	res := Compute(nil, threeStatuses("p1"))
	assert.Equal(t, 0.0, res.Progress)
	assert.Equal(t, 0, res.TotalTasks)
}

func TestCompute_SingleCompletedTask(t *testing.T) {
	statuses := []*domain.Status{domain.NewStatus("p1", "Only", 1, domain.StatusDone)}
	task := closeAs(taskAt(statuses, 1, 1), domain.CloseCompleted)

	res := Compute([]*domain.Task{task}, statuses)
	assert.Equal(t, 1.0, res.Progress)
	assert.Equal(t, 1, res.CompletedTasks)
}

func TestCompute_SingleAbortedTask(t *testing.T) {
	statuses := []*domain.Status{domain.NewStatus("p1", "Only", 1, domain.StatusDone)}
	task := closeAs(taskAt(statuses, 1, 1), domain.CloseAborted)

	// Achieved 0 over a max weight of 1x1: the aborted task still counts in
	// the denominator.
	res := Compute([]*domain.Task{task}, statuses)
	assert.Equal(t, 0.0, res.Progress)
	assert.Equal(t, 1, res.AbortedTasks)
	assert.Equal(t, 1, res.TotalWeight)
}

func TestCompute_MixedOpenAndCompleted(t *testing.T) {
	statuses := threeStatuses("p1")
	completed := closeAs(taskAt(statuses, 3, 1), domain.CloseCompleted)
	open := taskAt(statuses, 1, 3)

	// (1x3 + 3x1) / (1x3 + 3x3) = 6/12.
	res := Compute([]*domain.Task{completed, open}, statuses)
	assert.InDelta(t, 0.5, res.Progress, 1e-9)
	assert.Equal(t, 6, res.AchievedWeight)
	assert.Equal(t, 12, res.TotalWeight)
	assert.Equal(t, 1, res.OpenTasks)
	assert.Equal(t, 1, res.CompletedTasks)
}

func TestCompute_DefaultDifficulty(t *testing.T) {
	statuses := threeStatuses("p1")
	task := domain.NewTask("p1", statuses[1].ID, "no difficulty set", "u1")

	// Difficulty defaults to 1, so the open task at order 2 achieves 2/3.
	res := Compute([]*domain.Task{task}, statuses)
	assert.InDelta(t, 2.0/3.0, res.Progress, 1e-9)
}

func TestCompute_InvalidDifficultyFallsBack(t *testing.T) {
	statuses := threeStatuses("p1")
	bad := 9
	task := domain.NewTask("p1", statuses[0].ID, "bad difficulty", "u1")
	task.Difficulty = &bad

	res := Compute([]*domain.Task{task}, statuses)
	assert.Equal(t, 3, res.TotalWeight)
}

func TestCompute_IgnoresSoftDeleted(t *testing.T) {
	statuses := threeStatuses("p1")
	now := time.Now()
	deleted := taskAt(statuses, 3, 5)
	deleted.DeletedAt = &now

	res := Compute([]*domain.Task{deleted}, statuses)
	assert.Equal(t, 0, res.TotalTasks)
	assert.Equal(t, 0.0, res.Progress)
}

func TestCompute_UnknownStatusCountsAsFirstOrder(t *testing.T) {
	statuses := threeStatuses("p1")
	task := domain.NewTask("p1", "missing-status", "orphan", "u1")

	res := Compute([]*domain.Task{task}, statuses)
	assert.InDelta(t, 1.0/3.0, res.Progress, 1e-9)
}
