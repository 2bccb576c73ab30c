package views

import (
	"context"

	"github.com/peaknext/projectflow/internal/backend"
	"github.com/peaknext/projectflow/internal/cache"
	"github.com/peaknext/projectflow/internal/domain"
)

// TaskList is the flat list shape: the viewer's pinned tasks first, then the
// rest in display order.
type TaskList struct {
	Pinned []*domain.Task `json:"pinned"`
	Items  []*domain.Task `json:"items"`
}

// BindTaskList registers a flat task listing for the given filter.
func BindTaskList(store *cache.Store, be backend.Backend, viewerID string, f domain.TaskFilter) Binding {
	key := cache.TaskListKey(f)

	store.Bind(key, func(r *cache.Reader) (any, error) {
		list := &TaskList{
			Pinned: make([]*domain.Task, 0),
			Items:  make([]*domain.Task, 0),
		}
		for _, t := range r.Tasks(f) {
			if r.IsPinned(viewerID, t.ID) {
				list.Pinned = append(list.Pinned, t)
			} else {
				list.Items = append(list.Items, t)
			}
		}
		sortForDisplay(list.Pinned)
		sortForDisplay(list.Items)
		return list, nil
	})

	return Binding{
		Key: key,
		Fetch: func(ctx context.Context) error {
			gen := store.BeginFetch(key)
			tasks, err := be.ListTasks(ctx, f)
			if err != nil {
				return err
			}
			pinned, err := be.ListPinnedTasks(ctx, viewerID)
			if err != nil {
				return err
			}
			store.CompleteFetch(key, gen, func(tx *cache.Tx) {
				for _, t := range tasks {
					tx.PutTask(t)
				}
				tx.SetPinnedList(viewerID, pinned)
			})
			return nil
		},
	}
}
