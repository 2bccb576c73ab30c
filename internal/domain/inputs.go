package domain

import (
	"strings"
	"time"
)

type CreateTaskInput struct {
	Name            string
	Description     string
	ProjectID       string
	StatusID        string
	Priority        *int
	Difficulty      *int
	StartDate       *time.Time
	DueDate         *time.Time
	AssigneeUserIDs []string
	ParentTaskID    *string
	CreatedBy       string
}

// UpdateTaskInput carries a partial update; nil fields are left untouched.
type UpdateTaskInput struct {
	Name            *string
	Description     *string
	StatusID        *string
	Priority        *int
	Difficulty      *int
	StartDate       *time.Time
	DueDate         *time.Time
	AssigneeUserIDs *[]string
}

// ApplyTo writes the input's set fields onto the task. Only deterministic
// fields are written; server-computed side effects (timestamps, history) are
// left for reconciliation.
func (in UpdateTaskInput) ApplyTo(t *Task) {
	if in.Name != nil {
		t.Name = *in.Name
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.StatusID != nil {
		t.StatusID = *in.StatusID
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.Difficulty != nil {
		t.Difficulty = clonePtr(in.Difficulty)
	}
	if in.StartDate != nil {
		t.StartDate = clonePtr(in.StartDate)
	}
	if in.DueDate != nil {
		t.DueDate = clonePtr(in.DueDate)
	}
	if in.AssigneeUserIDs != nil {
		t.AssigneeUserIDs = append([]string(nil), (*in.AssigneeUserIDs)...)
	}
	t.SyncAssigneeMirror()
}

// AffectsProgress reports whether the update changes completion semantics and
// therefore requires a progress cascade.
func (in UpdateTaskInput) AffectsProgress() bool {
	return in.StatusID != nil || in.Difficulty != nil
}

type CloseTaskInput struct {
	Type     CloseType
	Comment  string
	ClosedBy string
}

type ChecklistItemInput struct {
	Name  string
	Order int
}

// ChecklistItemUpdate carries a partial checklist-item update.
type ChecklistItemUpdate struct {
	Name      *string
	IsChecked *bool
}

func (in ChecklistItemUpdate) ApplyTo(item *ChecklistItem) {
	if in.Name != nil {
		item.Name = *in.Name
	}
	if in.IsChecked != nil {
		item.IsChecked = *in.IsChecked
	}
}

type CommentInput struct {
	Content          string
	MentionedUserIDs []string
	AuthorUserID     string
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
