// Package views declares the per-view query bindings: which cache key a view
// reads, how the raw entity collections are shaped for display, and how the
// view's data is fetched from the backend. Bindings are pure projections over
// the cache; every write flows through the mutation engine or the refetch
// path.
package views

import (
	"context"
	"sort"
	"time"

	"github.com/peaknext/projectflow/internal/cache"
	"github.com/peaknext/projectflow/internal/domain"
)

// DefaultDueSoonWindow marks tasks due within this horizon as "due soon".
const DefaultDueSoonWindow = 48 * time.Hour

// Binding ties a cache key to the fetch that fills it. Mounting and reading
// go through the store; Fetch is invoked on first mount and whenever the
// entry goes stale.
type Binding struct {
	Key   cache.Key
	Fetch func(ctx context.Context) error
}

func IsOverdue(t *domain.Task, now time.Time) bool {
	return t.DueDate != nil && !t.IsClosed && t.DueDate.Before(now)
}

func IsDueSoon(t *domain.Task, now time.Time, window time.Duration) bool {
	if t.DueDate == nil || t.IsClosed || t.DueDate.Before(now) {
		return false
	}
	return t.DueDate.Sub(now) <= window
}

// sortForDisplay orders tasks by priority (urgent first), then due date
// (undated last), then name.
func sortForDisplay(tasks []*domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return a.Name < b.Name
		case a.DueDate == nil:
			return false
		case b.DueDate == nil:
			return true
		case !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		}
		return a.Name < b.Name
	})
}

// ingestProjectTasks replaces the cached task set of one project with the
// fetched set. Tasks that vanished server-side are dropped; no merge logic,
// the server is authoritative post-refetch.
func ingestProjectTasks(tx *cache.Tx, projectID string, fetched []*domain.Task) {
	seen := make(map[string]struct{}, len(fetched))
	for _, t := range fetched {
		seen[t.ID] = struct{}{}
		tx.PutTask(t)
	}
	for _, t := range tx.ProjectTasks(projectID) {
		if _, ok := seen[t.ID]; !ok {
			tx.RemoveTask(t.ID)
		}
	}
}
