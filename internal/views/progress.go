package views

import (
	"context"

	"github.com/peaknext/projectflow/internal/backend"
	"github.com/peaknext/projectflow/internal/cache"
	"github.com/peaknext/projectflow/internal/progress"
)

// ProjectProgress is a hybrid read: when the project's tasks are cached (a
// board was fetched), the ratio is recomputed locally so it reflects
// unreconciled optimistic changes; otherwise it falls back to the
// server-cached value on the project.
func ProjectProgress(ctx context.Context, store *cache.Store, be backend.Backend, projectID string) (progress.Result, error) {
	var (
		res      progress.Result
		computed bool
	)
	store.View(func(tx *cache.Tx) {
		tasks := tx.ProjectTasks(projectID)
		statuses := tx.Statuses(projectID)
		if len(tasks) > 0 && len(statuses) > 0 {
			res = progress.Compute(tasks, statuses)
			computed = true
		}
	})
	if computed {
		return res, nil
	}

	p, err := be.GetProject(ctx, projectID)
	if err != nil {
		return progress.Result{}, err
	}
	store.PutProject(p)
	return progress.Result{Progress: p.Progress}, nil
}
