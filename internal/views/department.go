package views

import (
	"context"
	"time"

	"github.com/peaknext/projectflow/internal/backend"
	"github.com/peaknext/projectflow/internal/cache"
	"github.com/peaknext/projectflow/internal/domain"
)

// DepartmentTasks is the department-grouped table shape: every project of the
// department with its tasks, per-project stats, and a department rollup.
type DepartmentTasks struct {
	DepartmentID string          `json:"departmentId"`
	Stats        DepartmentStats `json:"stats"`
	Groups       []ProjectGroup  `json:"groups"`
}

type ProjectGroup struct {
	Project  *domain.Project  `json:"project"`
	Statuses []*domain.Status `json:"statuses"`
	Tasks    []*domain.Task   `json:"tasks"`
	Stats    ProjectStats     `json:"stats"`
}

type ProjectStats struct {
	TotalTasks     int `json:"totalTasks"`
	CompletedTasks int `json:"completedTasks"`
	OverdueTasks   int `json:"overdueTasks"`
	DueSoonTasks   int `json:"dueSoonTasks"`
}

type DepartmentStats struct {
	TotalTasks     int     `json:"totalTasks"`
	CompletedTasks int     `json:"completedTasks"`
	OverdueTasks   int     `json:"overdueTasks"`
	DueSoonTasks   int     `json:"dueSoonTasks"`
	TotalProjects  int     `json:"totalProjects"`
	ActiveProjects int     `json:"activeProjects"`
	CompletionRate float64 `json:"completionRate"`
}

// BindDepartmentTasks registers the department view. The filter narrows which
// tasks are displayed per group; stats always cover the full task set so the
// rollup does not shift with the filter.
func BindDepartmentTasks(store *cache.Store, be backend.Backend, departmentID string, f domain.TaskFilter, now func() time.Time) Binding {
	key := cache.DepartmentTasksKey(departmentID, f)

	store.Bind(key, func(r *cache.Reader) (any, error) {
		view := &DepartmentTasks{DepartmentID: departmentID}
		projects := r.Projects(domain.ProjectFilter{DepartmentID: &departmentID})
		at := now()
		for _, p := range projects {
			all := r.ProjectTasks(p.ID)
			stats := projectStats(all, at)

			display := f
			display.ProjectID = &p.ID
			tasks := r.Tasks(display)
			sortForDisplay(tasks)

			view.Groups = append(view.Groups, ProjectGroup{
				Project:  p,
				Statuses: r.Statuses(p.ID),
				Tasks:    tasks,
				Stats:    stats,
			})

			view.Stats.TotalTasks += stats.TotalTasks
			view.Stats.CompletedTasks += stats.CompletedTasks
			view.Stats.OverdueTasks += stats.OverdueTasks
			view.Stats.DueSoonTasks += stats.DueSoonTasks
			view.Stats.TotalProjects++
			if p.Status == domain.ProjectActive {
				view.Stats.ActiveProjects++
			}
		}
		if view.Stats.TotalTasks > 0 {
			view.Stats.CompletionRate = float64(view.Stats.CompletedTasks) / float64(view.Stats.TotalTasks)
		}
		return view, nil
	})

	return Binding{
		Key: key,
		Fetch: func(ctx context.Context) error {
			gen := store.BeginFetch(key)
			projects, err := be.ListProjects(ctx, domain.ProjectFilter{DepartmentID: &departmentID})
			if err != nil {
				return err
			}
			type projectData struct {
				statuses []*domain.Status
				tasks    []*domain.Task
			}
			data := make(map[string]projectData, len(projects))
			for _, p := range projects {
				statuses, err := be.ListStatuses(ctx, p.ID)
				if err != nil {
					return err
				}
				pid := p.ID
				tasks, err := be.ListTasks(ctx, domain.TaskFilter{
					ProjectID:     &pid,
					IncludeClosed: true,
				})
				if err != nil {
					return err
				}
				data[p.ID] = projectData{statuses: statuses, tasks: tasks}
			}
			store.CompleteFetch(key, gen, func(tx *cache.Tx) {
				for _, p := range projects {
					tx.PutProject(p)
					tx.SetStatuses(p.ID, data[p.ID].statuses)
					ingestProjectTasks(tx, p.ID, data[p.ID].tasks)
				}
			})
			return nil
		},
	}
}

func projectStats(tasks []*domain.Task, now time.Time) ProjectStats {
	var st ProjectStats
	for _, t := range tasks {
		st.TotalTasks++
		if t.IsClosed && t.CloseType != nil && *t.CloseType == domain.CloseCompleted {
			st.CompletedTasks++
		}
		if IsOverdue(t, now) {
			st.OverdueTasks++
		}
		if IsDueSoon(t, now, DefaultDueSoonWindow) {
			st.DueSoonTasks++
		}
	}
	return st
}
