package domain

import "github.com/google/uuid"

// StatusType is the coarse stage classification used for progress weighting
// and for picking close-confirmation wording.
type StatusType string

const (
	StatusNotStarted StatusType = "NOT_STARTED"
	StatusInProgress StatusType = "IN_PROGRESS"
	StatusDone       StatusType = "DONE"
)

// Status is a named, colored, ordered stage belonging to exactly one project.
// Order is 1-based within the project's status list.
type Status struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"projectId"`
	Name      string     `json:"name"`
	Color     string     `json:"color,omitempty"`
	Order     int        `json:"order"`
	Type      StatusType `json:"type"`
}

func NewStatus(projectID, name string, order int, typ StatusType) *Status {
	return &Status{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Name:      name,
		Order:     order,
		Type:      typ,
	}
}

func (s *Status) Clone() *Status {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// StatusByID looks a status up in a project's ordered status list.
func StatusByID(statuses []*Status, id string) *Status {
	for _, s := range statuses {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// MaxStatusOrder returns the highest order in the list, at least 1.
func MaxStatusOrder(statuses []*Status) int {
	max := 1
	for _, s := range statuses {
		if s.Order > max {
			max = s.Order
		}
	}
	return max
}
