package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChecklistItem struct {
	ID        string `json:"id"`
	TaskID    string `json:"taskId"`
	Name      string `json:"name"`
	IsChecked bool   `json:"isChecked"`
	Order     int    `json:"order"`
}

func NewChecklistItem(taskID, name string, order int) *ChecklistItem {
	return &ChecklistItem{
		ID:     uuid.New().String(),
		TaskID: taskID,
		Name:   name,
		Order:  order,
	}
}

func (c *ChecklistItem) Clone() *ChecklistItem {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}

type Comment struct {
	ID               string    `json:"id"`
	TaskID           string    `json:"taskId"`
	UserID           string    `json:"userId"`
	Content          string    `json:"content"`
	MentionedUserIDs []string  `json:"mentionedUserIds"`
	CreatedAt        time.Time `json:"createdAt"`
}

func NewComment(taskID, userID, content string, mentioned []string) *Comment {
	return &Comment{
		ID:               uuid.New().String(),
		TaskID:           taskID,
		UserID:           userID,
		Content:          content,
		MentionedUserIDs: append([]string(nil), mentioned...),
		CreatedAt:        time.Now(),
	}
}

func (c *Comment) Clone() *Comment {
	if c == nil {
		return nil
	}
	v := *c
	v.MentionedUserIDs = append([]string(nil), c.MentionedUserIDs...)
	return &v
}

type User struct {
	ID              string  `json:"id"`
	FullName        string  `json:"fullName"`
	Email           string  `json:"email"`
	ProfileImageURL *string `json:"profileImageUrl,omitempty"`
	Role            string  `json:"role"`
	DepartmentID    string  `json:"departmentId,omitempty"`

	// AdditionalRoles maps departmentID -> role for users acting in more than
	// one department.
	AdditionalRoles map[string]string `json:"additionalRoles,omitempty"`
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.ProfileImageURL = clonePtr(u.ProfileImageURL)
	if u.AdditionalRoles != nil {
		c.AdditionalRoles = make(map[string]string, len(u.AdditionalRoles))
		for k, v := range u.AdditionalRoles {
			c.AdditionalRoles[k] = v
		}
	}
	return &c
}
