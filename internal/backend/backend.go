// Package backend defines the authoritative-server collaborator. The cache
// and mutation engine only ever talk to this interface; all durability is the
// backend's problem.
package backend

import (
	"context"

	"github.com/peaknext/projectflow/internal/domain"
)

type Backend interface {
	// Mutations. Each returns the server's canonical entity.
	CreateTask(ctx context.Context, in domain.CreateTaskInput) (*domain.Task, error)
	UpdateTask(ctx context.Context, taskID string, in domain.UpdateTaskInput) (*domain.Task, error)
	CloseTask(ctx context.Context, taskID string, in domain.CloseTaskInput) (*domain.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	PinTask(ctx context.Context, userID, taskID string) error
	UnpinTask(ctx context.Context, userID, taskID string) error

	CreateChecklistItem(ctx context.Context, taskID string, in domain.ChecklistItemInput) (*domain.ChecklistItem, error)
	UpdateChecklistItem(ctx context.Context, taskID, itemID string, in domain.ChecklistItemUpdate) (*domain.ChecklistItem, error)
	DeleteChecklistItem(ctx context.Context, taskID, itemID string) error
	CreateComment(ctx context.Context, taskID string, in domain.CommentInput) (*domain.Comment, error)

	// Reads, used by view bindings on fetch/refetch.
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
	ListTasks(ctx context.Context, f domain.TaskFilter) ([]*domain.Task, error)
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)
	ListProjects(ctx context.Context, f domain.ProjectFilter) ([]*domain.Project, error)
	ListStatuses(ctx context.Context, projectID string) ([]*domain.Status, error)
	ListChecklist(ctx context.Context, taskID string) ([]*domain.ChecklistItem, error)
	ListComments(ctx context.Context, taskID string) ([]*domain.Comment, error)
	ListPinnedTasks(ctx context.Context, userID string) ([]string, error)
}
