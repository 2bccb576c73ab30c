package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/peaknext/projectflow/internal/domain"
	"github.com/peaknext/projectflow/internal/progress"
)

// Memory is an in-memory Backend. It is the reference collaborator for tests
// and local development, and the place failure scenarios are injected.
type Memory struct {
	mu         sync.Mutex
	tasks      map[string]*domain.Task
	projects   map[string]*domain.Project
	statuses   map[string][]*domain.Status
	checklists map[string][]*domain.ChecklistItem
	comments   map[string][]*domain.Comment
	pinned     map[string]map[string]struct{}

	failNext error
}

func NewMemory() *Memory {
	return &Memory{
		tasks:      make(map[string]*domain.Task),
		projects:   make(map[string]*domain.Project),
		statuses:   make(map[string][]*domain.Status),
		checklists: make(map[string][]*domain.ChecklistItem),
		comments:   make(map[string][]*domain.Comment),
		pinned:     make(map[string]map[string]struct{}),
	}
}

// FailNext makes the next mutation fail with err, then clears itself.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *Memory) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

// Seeding, used by tests and the CLI demo.

func (m *Memory) SeedProject(p *domain.Project, statuses []*domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p.Clone()
	cloned := make([]*domain.Status, len(statuses))
	for i, s := range statuses {
		cloned[i] = s.Clone()
	}
	m.statuses[p.ID] = cloned
	return nil
}

func (m *Memory) SeedTask(t *domain.Task) {
	m.mu.Lock()
	m.tasks[t.ID] = t.Clone()
	m.mu.Unlock()
	m.recomputeProgress(t.ProjectID)
}

// recomputeProgress is the authoritative server-side recomputation, using the
// same formula package as the client-side prediction.
func (m *Memory) recomputeProgress(projectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recomputeProgressLocked(projectID)
}

func (m *Memory) recomputeProgressLocked(projectID string) {
	p, ok := m.projects[projectID]
	if !ok {
		return
	}
	var tasks []*domain.Task
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			tasks = append(tasks, t)
		}
	}
	res := progress.Compute(tasks, m.statuses[projectID])
	now := time.Now()
	p.Progress = res.Progress
	p.ProgressUpdatedAt = &now
}

func (m *Memory) CreateTask(ctx context.Context, in domain.CreateTaskInput) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	if _, ok := m.projects[in.ProjectID]; !ok {
		return nil, fmt.Errorf("%w: project %s", domain.ErrNotFound, in.ProjectID)
	}
	if domain.StatusByID(m.statuses[in.ProjectID], in.StatusID) == nil {
		return nil, fmt.Errorf("%w: status %s does not belong to project %s", domain.ErrValidation, in.StatusID, in.ProjectID)
	}

	t := domain.NewTask(in.ProjectID, in.StatusID, in.Name, in.CreatedBy)
	t.Description = in.Description
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	t.Difficulty = in.Difficulty
	t.StartDate = in.StartDate
	t.DueDate = in.DueDate
	t.AssigneeUserIDs = append([]string(nil), in.AssigneeUserIDs...)
	t.ParentTaskID = in.ParentTaskID
	t.SyncAssigneeMirror()
	m.tasks[t.ID] = t
	m.recomputeProgressLocked(t.ProjectID)
	return t.Clone(), nil
}

func (m *Memory) UpdateTask(ctx context.Context, taskID string, in domain.UpdateTaskInput) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	t, ok := m.tasks[taskID]
	if !ok || t.DeletedAt != nil {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	if t.IsClosed {
		return nil, fmt.Errorf("%w: task %s is closed", domain.ErrValidation, taskID)
	}
	if in.StatusID != nil && domain.StatusByID(m.statuses[t.ProjectID], *in.StatusID) == nil {
		return nil, fmt.Errorf("%w: status %s does not belong to project %s", domain.ErrValidation, *in.StatusID, t.ProjectID)
	}
	in.ApplyTo(t)
	t.UpdatedAt = time.Now()
	m.recomputeProgressLocked(t.ProjectID)
	return t.Clone(), nil
}

func (m *Memory) CloseTask(ctx context.Context, taskID string, in domain.CloseTaskInput) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	t, ok := m.tasks[taskID]
	if !ok || t.DeletedAt != nil {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	if t.IsClosed {
		return nil, fmt.Errorf("%w: task %s already closed", domain.ErrValidation, taskID)
	}
	now := time.Now()
	ct := in.Type
	t.IsClosed = true
	t.CloseType = &ct
	t.ClosedAt = &now
	t.UpdatedAt = now
	if in.ClosedBy != "" {
		closedBy := in.ClosedBy
		t.ClosedBy = &closedBy
	}
	if in.Comment != "" {
		c := domain.NewComment(taskID, in.ClosedBy, in.Comment, nil)
		m.comments[taskID] = append([]*domain.Comment{c}, m.comments[taskID]...)
	}
	m.recomputeProgressLocked(t.ProjectID)
	return t.Clone(), nil
}

func (m *Memory) DeleteTask(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	t, ok := m.tasks[taskID]
	if !ok || t.DeletedAt != nil {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	now := time.Now()
	t.DeletedAt = &now
	m.recomputeProgressLocked(t.ProjectID)
	return nil
}

func (m *Memory) PinTask(ctx context.Context, userID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, ok := m.tasks[taskID]; !ok {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	if m.pinned[userID] == nil {
		m.pinned[userID] = make(map[string]struct{})
	}
	m.pinned[userID][taskID] = struct{}{}
	return nil
}

func (m *Memory) UnpinTask(ctx context.Context, userID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	delete(m.pinned[userID], taskID)
	return nil
}

func (m *Memory) CreateChecklistItem(ctx context.Context, taskID string, in domain.ChecklistItemInput) (*domain.ChecklistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	if _, ok := m.tasks[taskID]; !ok {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	item := domain.NewChecklistItem(taskID, in.Name, in.Order)
	m.checklists[taskID] = append(m.checklists[taskID], item)
	return item.Clone(), nil
}

func (m *Memory) UpdateChecklistItem(ctx context.Context, taskID, itemID string, in domain.ChecklistItemUpdate) (*domain.ChecklistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	for _, item := range m.checklists[taskID] {
		if item.ID == itemID {
			in.ApplyTo(item)
			return item.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: checklist item %s", domain.ErrNotFound, itemID)
}

func (m *Memory) DeleteChecklistItem(ctx context.Context, taskID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	items := m.checklists[taskID]
	for i, item := range items {
		if item.ID == itemID {
			m.checklists[taskID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: checklist item %s", domain.ErrNotFound, itemID)
}

func (m *Memory) CreateComment(ctx context.Context, taskID string, in domain.CommentInput) (*domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	if _, ok := m.tasks[taskID]; !ok {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	c := domain.NewComment(taskID, in.AuthorUserID, in.Content, in.MentionedUserIDs)
	m.comments[taskID] = append([]*domain.Comment{c}, m.comments[taskID]...)
	return c.Clone(), nil
}

func (m *Memory) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.DeletedAt != nil {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	return t.Clone(), nil
}

func (m *Memory) ListTasks(ctx context.Context, f domain.TaskFilter) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Task
	for _, t := range m.tasks {
		if f.Matches(t) {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (m *Memory) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok || p.DeletedAt != nil {
		return nil, fmt.Errorf("%w: project %s", domain.ErrNotFound, projectID)
	}
	return p.Clone(), nil
}

func (m *Memory) ListProjects(ctx context.Context, f domain.ProjectFilter) ([]*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Project
	for _, p := range m.projects {
		if f.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (m *Memory) ListStatuses(ctx context.Context, projectID string) ([]*domain.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.statuses[projectID]
	out := make([]*domain.Status, len(src))
	for i, s := range src {
		out[i] = s.Clone()
	}
	return out, nil
}

func (m *Memory) ListChecklist(ctx context.Context, taskID string) ([]*domain.ChecklistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.checklists[taskID]
	out := make([]*domain.ChecklistItem, len(src))
	for i, c := range src {
		out[i] = c.Clone()
	}
	return out, nil
}

func (m *Memory) ListComments(ctx context.Context, taskID string) ([]*domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.comments[taskID]
	out := make([]*domain.Comment, len(src))
	for i, c := range src {
		out[i] = c.Clone()
	}
	return out, nil
}

func (m *Memory) ListPinnedTasks(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.pinned[userID]))
	for id := range m.pinned[userID] {
		out = append(out, id)
	}
	return out, nil
}
