package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type CloseType string

const (
	CloseCompleted CloseType = "COMPLETED"
	CloseAborted   CloseType = "ABORTED"
)

const (
	PriorityUrgent = 1
	PriorityLowest = 4

	DifficultyMin = 1
	DifficultyMax = 5
)

// TempIDPrefix marks locally assigned identifiers that have not been
// confirmed by the server yet.
const TempIDPrefix = "temp-"

type Task struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ProjectID   string     `json:"projectId"`
	StatusID    string     `json:"statusId"`
	Priority    int        `json:"priority"`
	Difficulty  *int       `json:"difficulty,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`

	// AssigneeUserIDs is the authoritative multi-assignee set, ordered by
	// assignment time. AssigneeUserID is the legacy single-assignee field and
	// always mirrors the first entry (nil when the set is empty).
	AssigneeUserIDs []string `json:"assigneeUserIds"`
	AssigneeUserID  *string  `json:"assigneeUserId,omitempty"`

	ParentTaskID *string    `json:"parentTaskId,omitempty"`
	CreatedBy    string     `json:"createdBy"`
	IsClosed     bool       `json:"isClosed"`
	CloseType    *CloseType `json:"closeType,omitempty"`
	ClosedAt     *time.Time `json:"closedAt,omitempty"`
	ClosedBy     *string    `json:"closedBy,omitempty"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func NewTask(projectID, statusID, name, createdBy string) *Task {
	now := time.Now()
	return &Task{
		ID:              uuid.New().String(),
		Name:            name,
		ProjectID:       projectID,
		StatusID:        statusID,
		Priority:        PriorityLowest,
		AssigneeUserIDs: make([]string, 0),
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// HasTempID reports whether the task still carries a locally assigned id.
func (t *Task) HasTempID() bool {
	return strings.HasPrefix(t.ID, TempIDPrefix)
}

// SyncAssigneeMirror re-derives the legacy single-assignee field from the
// multi-assignee set.
func (t *Task) SyncAssigneeMirror() {
	if len(t.AssigneeUserIDs) == 0 {
		t.AssigneeUserID = nil
		return
	}
	first := t.AssigneeUserIDs[0]
	t.AssigneeUserID = &first
}

// Clone returns a deep copy. Cached tasks are cloned on the way in and out of
// the store so callers never alias store-owned state.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.AssigneeUserIDs = append([]string(nil), t.AssigneeUserIDs...)
	c.AssigneeUserID = clonePtr(t.AssigneeUserID)
	c.Difficulty = clonePtr(t.Difficulty)
	c.StartDate = clonePtr(t.StartDate)
	c.DueDate = clonePtr(t.DueDate)
	c.ParentTaskID = clonePtr(t.ParentTaskID)
	c.CloseType = clonePtr(t.CloseType)
	c.ClosedAt = clonePtr(t.ClosedAt)
	c.ClosedBy = clonePtr(t.ClosedBy)
	c.DeletedAt = clonePtr(t.DeletedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type TaskFilter struct {
	ProjectID      *string
	AssigneeUserID *string
	StatusID       *string
	Priority       *int
	ParentTaskID   *string
	CreatedBy      *string
	IncludeClosed  bool
	IncludeDeleted bool
	Search         string
}

// Matches reports whether the task passes the filter. Soft-deleted and closed
// tasks are excluded from default listings.
func (f TaskFilter) Matches(t *Task) bool {
	if t.DeletedAt != nil && !f.IncludeDeleted {
		return false
	}
	if t.IsClosed && !f.IncludeClosed {
		return false
	}
	if f.ProjectID != nil && t.ProjectID != *f.ProjectID {
		return false
	}
	if f.AssigneeUserID != nil && !containsString(t.AssigneeUserIDs, *f.AssigneeUserID) {
		return false
	}
	if f.StatusID != nil && t.StatusID != *f.StatusID {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.ParentTaskID != nil && (t.ParentTaskID == nil || *t.ParentTaskID != *f.ParentTaskID) {
		return false
	}
	if f.CreatedBy != nil && t.CreatedBy != *f.CreatedBy {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Name), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
