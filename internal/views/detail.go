package views

import (
	"context"
	"fmt"

	"github.com/peaknext/projectflow/internal/backend"
	"github.com/peaknext/projectflow/internal/cache"
	"github.com/peaknext/projectflow/internal/domain"
)

// TaskDetail is the single-task view: the task itself plus its status,
// checklist, comments, pin state, and subtask count.
type TaskDetail struct {
	Task              *domain.Task            `json:"task"`
	Status            *domain.Status          `json:"status,omitempty"`
	Checklist         []*domain.ChecklistItem `json:"checklist"`
	ChecklistProgress ChecklistProgress       `json:"checklistProgress"`
	Comments          []*domain.Comment       `json:"comments"`
	IsPinned          bool                    `json:"isPinned"`
	SubtaskCount      int                     `json:"subtaskCount"`
}

type ChecklistProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// BindTaskDetail registers the detail view for a task. The projection reads
// from the canonical tables, so an optimistic update to the task is visible
// here the moment it lands.
func BindTaskDetail(store *cache.Store, be backend.Backend, viewerID, taskID string) Binding {
	key := cache.TaskDetailKey(taskID)

	store.Bind(key, func(r *cache.Reader) (any, error) {
		t := r.Task(taskID)
		if t == nil {
			return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
		}
		d := &TaskDetail{
			Task:      t,
			Checklist: r.Checklist(taskID),
			Comments:  r.Comments(taskID),
			IsPinned:  r.IsPinned(viewerID, taskID),
		}
		if t.ProjectID != "" {
			d.Status = domain.StatusByID(r.Statuses(t.ProjectID), t.StatusID)
		}
		for _, item := range d.Checklist {
			d.ChecklistProgress.Total++
			if item.IsChecked {
				d.ChecklistProgress.Completed++
			}
		}
		d.SubtaskCount = len(r.Tasks(domain.TaskFilter{ParentTaskID: &taskID, IncludeClosed: true}))
		return d, nil
	})

	return Binding{
		Key: key,
		Fetch: func(ctx context.Context) error {
			gen := store.BeginFetch(key)
			t, err := be.GetTask(ctx, taskID)
			if err != nil {
				return err
			}
			checklist, err := be.ListChecklist(ctx, taskID)
			if err != nil {
				return err
			}
			comments, err := be.ListComments(ctx, taskID)
			if err != nil {
				return err
			}
			pinned, err := be.ListPinnedTasks(ctx, viewerID)
			if err != nil {
				return err
			}
			var statuses []*domain.Status
			if t.ProjectID != "" {
				if statuses, err = be.ListStatuses(ctx, t.ProjectID); err != nil {
					return err
				}
			}
			store.CompleteFetch(key, gen, func(tx *cache.Tx) {
				tx.PutTask(t)
				tx.SetChecklist(taskID, checklist)
				tx.SetComments(taskID, comments)
				tx.SetPinnedList(viewerID, pinned)
				if statuses != nil {
					tx.SetStatuses(t.ProjectID, statuses)
				}
			})
			return nil
		},
	}
}
