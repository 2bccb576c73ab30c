package domain

import (
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "ACTIVE"
	ProjectCompleted ProjectStatus = "COMPLETED"
	ProjectOnHold    ProjectStatus = "ON_HOLD"
	ProjectArchived  ProjectStatus = "ARCHIVED"
)

type Project struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	DepartmentID string        `json:"departmentId"`
	Status       ProjectStatus `json:"status"`
	Color        string        `json:"color,omitempty"`
	OwnerUserID  string        `json:"ownerUserId"`
	StartDate    *time.Time    `json:"startDate,omitempty"`
	EndDate      *time.Time    `json:"endDate,omitempty"`

	// Progress is a derived 0..1 completion ratio. The server recomputes it on
	// structural changes; clients predict it after local mutations.
	Progress          float64    `json:"progress"`
	ProgressUpdatedAt *time.Time `json:"progressUpdatedAt,omitempty"`

	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func NewProject(departmentID, name, ownerUserID string) *Project {
	now := time.Now()
	return &Project{
		ID:           uuid.New().String(),
		Name:         name,
		DepartmentID: departmentID,
		Status:       ProjectActive,
		OwnerUserID:  ownerUserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	c.StartDate = clonePtr(p.StartDate)
	c.EndDate = clonePtr(p.EndDate)
	c.ProgressUpdatedAt = clonePtr(p.ProgressUpdatedAt)
	c.DeletedAt = clonePtr(p.DeletedAt)
	return &c
}

type ProjectFilter struct {
	DepartmentID  *string
	DepartmentIDs []string // scope filter, empty means unrestricted
	Status        *ProjectStatus
	Search        string
}

func (f ProjectFilter) Matches(p *Project) bool {
	if p.DeletedAt != nil {
		return false
	}
	if f.DepartmentID != nil && p.DepartmentID != *f.DepartmentID {
		return false
	}
	if len(f.DepartmentIDs) > 0 && !containsString(f.DepartmentIDs, p.DepartmentID) {
		return false
	}
	if f.Status != nil && p.Status != *f.Status {
		return false
	}
	if f.Search != "" && !containsFold(p.Name, f.Search) && !containsFold(p.Description, f.Search) {
		return false
	}
	return true
}
