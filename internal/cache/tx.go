package cache

import (
	"github.com/peaknext/projectflow/internal/domain"
)

// Tx is a view over the canonical tables, valid only inside Apply/View/ingest
// callbacks. All values are cloned at the boundary in both directions.
type Tx struct {
	s     *Store
	dirty map[string]struct{}
}

func (tx *Tx) markDirty(deps ...string) {
	if tx.dirty == nil {
		panic("cache: write inside a read-only transaction")
	}
	for _, d := range deps {
		tx.dirty[d] = struct{}{}
	}
}

// Reads.

func (tx *Tx) Task(id string) *domain.Task {
	return tx.s.tasks[id].Clone()
}

func (tx *Tx) TasksMatching(f domain.TaskFilter) []*domain.Task {
	var out []*domain.Task
	for _, t := range tx.s.tasks {
		if f.Matches(t) {
			out = append(out, t.Clone())
		}
	}
	sortTasks(out)
	return out
}

// ProjectTasks returns every non-deleted task of a project, closed included.
// This is the progress calculator's input.
func (tx *Tx) ProjectTasks(projectID string) []*domain.Task {
	return tx.TasksMatching(domain.TaskFilter{
		ProjectID:     &projectID,
		IncludeClosed: true,
	})
}

func (tx *Tx) Project(id string) *domain.Project {
	return tx.s.projects[id].Clone()
}

func (tx *Tx) ProjectsMatching(f domain.ProjectFilter) []*domain.Project {
	var out []*domain.Project
	for _, p := range tx.s.projects {
		if f.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	sortProjects(out)
	return out
}

func (tx *Tx) Statuses(projectID string) []*domain.Status {
	src := tx.s.statuses[projectID]
	out := make([]*domain.Status, len(src))
	for i, s := range src {
		out[i] = s.Clone()
	}
	return out
}

func (tx *Tx) Checklist(taskID string) []*domain.ChecklistItem {
	src := tx.s.checklists[taskID]
	out := make([]*domain.ChecklistItem, len(src))
	for i, c := range src {
		out[i] = c.Clone()
	}
	return out
}

func (tx *Tx) HasChecklist(taskID string) bool {
	_, ok := tx.s.checklists[taskID]
	return ok
}

func (tx *Tx) Comments(taskID string) []*domain.Comment {
	src := tx.s.comments[taskID]
	out := make([]*domain.Comment, len(src))
	for i, c := range src {
		out[i] = c.Clone()
	}
	return out
}

func (tx *Tx) HasComments(taskID string) bool {
	_, ok := tx.s.comments[taskID]
	return ok
}

func (tx *Tx) IsPinned(viewerID, taskID string) bool {
	_, ok := tx.s.pinned[viewerID][taskID]
	return ok
}

func (tx *Tx) PinnedTaskIDs(viewerID string) []string {
	set := tx.s.pinned[viewerID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Writes.

func (tx *Tx) PutTask(t *domain.Task) {
	tx.s.tasks[t.ID] = t.Clone()
	tx.markDirty("task/"+t.ID, "tasks")
}

func (tx *Tx) RemoveTask(id string) {
	if _, ok := tx.s.tasks[id]; !ok {
		return
	}
	delete(tx.s.tasks, id)
	delete(tx.s.checklists, id)
	delete(tx.s.comments, id)
	tx.markDirty("task/"+id, "tasks", "checklist/"+id, "comments/"+id)
}

func (tx *Tx) PutProject(p *domain.Project) {
	tx.s.projects[p.ID] = p.Clone()
	tx.markDirty("project/"+p.ID, "projects")
}

func (tx *Tx) RemoveProject(id string) {
	if _, ok := tx.s.projects[id]; !ok {
		return
	}
	delete(tx.s.projects, id)
	delete(tx.s.statuses, id)
	tx.markDirty("project/"+id, "projects", "statuses/"+id)
}

func (tx *Tx) SetStatuses(projectID string, statuses []*domain.Status) {
	cloned := make([]*domain.Status, len(statuses))
	for i, s := range statuses {
		cloned[i] = s.Clone()
	}
	tx.s.statuses[projectID] = cloned
	tx.markDirty("statuses/" + projectID)
}

func (tx *Tx) SetChecklist(taskID string, items []*domain.ChecklistItem) {
	cloned := make([]*domain.ChecklistItem, len(items))
	for i, c := range items {
		cloned[i] = c.Clone()
	}
	tx.s.checklists[taskID] = cloned
	tx.markDirty("checklist/" + taskID)
}

func (tx *Tx) DeleteChecklist(taskID string) {
	if _, ok := tx.s.checklists[taskID]; !ok {
		return
	}
	delete(tx.s.checklists, taskID)
	tx.markDirty("checklist/" + taskID)
}

func (tx *Tx) SetComments(taskID string, comments []*domain.Comment) {
	cloned := make([]*domain.Comment, len(comments))
	for i, c := range comments {
		cloned[i] = c.Clone()
	}
	tx.s.comments[taskID] = cloned
	tx.markDirty("comments/" + taskID)
}

func (tx *Tx) DeleteComments(taskID string) {
	if _, ok := tx.s.comments[taskID]; !ok {
		return
	}
	delete(tx.s.comments, taskID)
	tx.markDirty("comments/" + taskID)
}

func (tx *Tx) SetPinned(viewerID, taskID string, pinned bool) {
	set := tx.s.pinned[viewerID]
	if set == nil {
		set = make(map[string]struct{})
		tx.s.pinned[viewerID] = set
	}
	if pinned {
		set[taskID] = struct{}{}
	} else {
		delete(set, taskID)
	}
	tx.markDirty("pinned/" + viewerID)
}

func (tx *Tx) SetPinnedList(viewerID string, taskIDs []string) {
	set := make(map[string]struct{}, len(taskIDs))
	for _, id := range taskIDs {
		set[id] = struct{}{}
	}
	tx.s.pinned[viewerID] = set
	tx.markDirty("pinned/" + viewerID)
}

// Reader is the projection-facing view. It records every entity namespace a
// projection touches, so the store can tell which entries contain which
// entities.
type Reader struct {
	tx   *Tx
	deps map[string]struct{}
}

func (r *Reader) dep(d string) {
	r.deps[d] = struct{}{}
}

func (r *Reader) Task(id string) *domain.Task {
	r.dep("task/" + id)
	return r.tx.Task(id)
}

func (r *Reader) Tasks(f domain.TaskFilter) []*domain.Task {
	r.dep("tasks")
	return r.tx.TasksMatching(f)
}

func (r *Reader) ProjectTasks(projectID string) []*domain.Task {
	r.dep("tasks")
	return r.tx.ProjectTasks(projectID)
}

func (r *Reader) Project(id string) *domain.Project {
	r.dep("project/" + id)
	return r.tx.Project(id)
}

func (r *Reader) Projects(f domain.ProjectFilter) []*domain.Project {
	r.dep("projects")
	return r.tx.ProjectsMatching(f)
}

func (r *Reader) Statuses(projectID string) []*domain.Status {
	r.dep("statuses/" + projectID)
	return r.tx.Statuses(projectID)
}

func (r *Reader) Checklist(taskID string) []*domain.ChecklistItem {
	r.dep("checklist/" + taskID)
	return r.tx.Checklist(taskID)
}

func (r *Reader) Comments(taskID string) []*domain.Comment {
	r.dep("comments/" + taskID)
	return r.tx.Comments(taskID)
}

func (r *Reader) IsPinned(viewerID, taskID string) bool {
	r.dep("pinned/" + viewerID)
	return r.tx.IsPinned(viewerID, taskID)
}

func (r *Reader) PinnedTaskIDs(viewerID string) []string {
	r.dep("pinned/" + viewerID)
	return r.tx.PinnedTaskIDs(viewerID)
}
