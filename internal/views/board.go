package views

import (
	"context"

	"github.com/peaknext/projectflow/internal/backend"
	"github.com/peaknext/projectflow/internal/cache"
	"github.com/peaknext/projectflow/internal/domain"
)

// Board is the kanban shape: one column per status, in status order.
type Board struct {
	Project *domain.Project `json:"project"`
	Columns []BoardColumn   `json:"columns"`
}

type BoardColumn struct {
	Status *domain.Status `json:"status"`
	Tasks  []*domain.Task `json:"tasks"`
}

// BindBoard registers the board view for one project and returns its binding.
func BindBoard(store *cache.Store, be backend.Backend, projectID string) Binding {
	key := cache.ProjectBoardKey(projectID)

	store.Bind(key, func(r *cache.Reader) (any, error) {
		board := &Board{Project: r.Project(projectID)}
		if board.Project == nil {
			return board, nil
		}
		tasks := r.ProjectTasks(projectID)
		byStatus := make(map[string][]*domain.Task)
		for _, t := range tasks {
			byStatus[t.StatusID] = append(byStatus[t.StatusID], t)
		}
		for _, s := range r.Statuses(projectID) {
			col := BoardColumn{Status: s, Tasks: byStatus[s.ID]}
			sortForDisplay(col.Tasks)
			board.Columns = append(board.Columns, col)
		}
		return board, nil
	})

	return Binding{
		Key: key,
		Fetch: func(ctx context.Context) error {
			gen := store.BeginFetch(key)
			project, err := be.GetProject(ctx, projectID)
			if err != nil {
				return err
			}
			statuses, err := be.ListStatuses(ctx, projectID)
			if err != nil {
				return err
			}
			tasks, err := be.ListTasks(ctx, domain.TaskFilter{
				ProjectID:     &projectID,
				IncludeClosed: true,
			})
			if err != nil {
				return err
			}
			store.CompleteFetch(key, gen, func(tx *cache.Tx) {
				tx.PutProject(project)
				tx.SetStatuses(projectID, statuses)
				ingestProjectTasks(tx, projectID, tasks)
			})
			return nil
		},
	}
}
