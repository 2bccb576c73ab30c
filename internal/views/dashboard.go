package views

import (
	"context"
	"time"

	"github.com/peaknext/projectflow/internal/backend"
	"github.com/peaknext/projectflow/internal/cache"
	"github.com/peaknext/projectflow/internal/domain"
)

// Dashboard is the viewer-centric summary: tasks the viewer created, tasks
// assigned to the viewer, and aggregate counters. Each task list has its own
// pagination window.
type Dashboard struct {
	Stats             DashboardStats `json:"stats"`
	MyCreated         []*domain.Task `json:"myCreated"`
	MyCreatedTotal    int            `json:"myCreatedTotal"`
	AssignedToMe      []*domain.Task `json:"assignedToMe"`
	AssignedToMeTotal int            `json:"assignedToMeTotal"`
}

type DashboardStats struct {
	AssignedTasks int `json:"assignedTasks"`
	CreatedTasks  int `json:"createdTasks"`
	OverdueTasks  int `json:"overdueTasks"`
	DueSoonTasks  int `json:"dueSoonTasks"`
	PinnedTasks   int `json:"pinnedTasks"`
}

// PageWindow is an offset/limit pair; Limit <= 0 means no limit.
type PageWindow struct {
	Offset int
	Limit  int
}

func (w PageWindow) slice(tasks []*domain.Task) []*domain.Task {
	if w.Offset >= len(tasks) {
		return nil
	}
	tasks = tasks[w.Offset:]
	if w.Limit > 0 && w.Limit < len(tasks) {
		tasks = tasks[:w.Limit]
	}
	return tasks
}

type DashboardOptions struct {
	MyCreated    PageWindow
	AssignedToMe PageWindow
}

// BindDashboard registers the dashboard view for the viewer.
func BindDashboard(store *cache.Store, be backend.Backend, viewerID string, opts DashboardOptions, now func() time.Time) Binding {
	key := cache.DashboardKey(viewerID)

	store.Bind(key, func(r *cache.Reader) (any, error) {
		created := r.Tasks(domain.TaskFilter{CreatedBy: &viewerID})
		assigned := r.Tasks(domain.TaskFilter{AssigneeUserID: &viewerID})
		sortForDisplay(created)
		sortForDisplay(assigned)

		d := &Dashboard{
			MyCreatedTotal:    len(created),
			AssignedToMeTotal: len(assigned),
			MyCreated:         opts.MyCreated.slice(created),
			AssignedToMe:      opts.AssignedToMe.slice(assigned),
		}
		d.Stats.CreatedTasks = len(created)
		d.Stats.AssignedTasks = len(assigned)
		at := now()
		for _, t := range assigned {
			if IsOverdue(t, at) {
				d.Stats.OverdueTasks++
			}
			if IsDueSoon(t, at, DefaultDueSoonWindow) {
				d.Stats.DueSoonTasks++
			}
		}
		d.Stats.PinnedTasks = len(r.PinnedTaskIDs(viewerID))
		return d, nil
	})

	return Binding{
		Key: key,
		Fetch: func(ctx context.Context) error {
			gen := store.BeginFetch(key)
			created, err := be.ListTasks(ctx, domain.TaskFilter{CreatedBy: &viewerID})
			if err != nil {
				return err
			}
			assigned, err := be.ListTasks(ctx, domain.TaskFilter{AssigneeUserID: &viewerID})
			if err != nil {
				return err
			}
			pinned, err := be.ListPinnedTasks(ctx, viewerID)
			if err != nil {
				return err
			}
			store.CompleteFetch(key, gen, func(tx *cache.Tx) {
				for _, t := range created {
					tx.PutTask(t)
				}
				for _, t := range assigned {
					tx.PutTask(t)
				}
				tx.SetPinnedList(viewerID, pinned)
			})
			return nil
		},
	}
}
