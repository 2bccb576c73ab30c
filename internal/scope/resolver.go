// Package scope resolves the organizational visibility of a user: which
// mission groups, divisions, and departments their roles let them see.
// Views use the scope only as a listing filter; nothing here enforces access.
package scope

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/peaknext/projectflow/internal/domain"
)

// ScopeType names the broadest level a scope was derived from.
type ScopeType string

const (
	ScopeAll          ScopeType = "all"
	ScopeMissionGroup ScopeType = "missionGroup"
	ScopeDivision     ScopeType = "division"
	ScopeDepartment   ScopeType = "department"
)

// Scope lists every organizational unit the user can see. A unit's parents
// are always included so callers can render the hierarchy around it.
type Scope struct {
	Type            ScopeType `json:"type"`
	IsAdmin         bool      `json:"isAdmin"`
	MissionGroupIDs []string  `json:"missionGroupIds"`
	DivisionIDs     []string  `json:"divisionIds"`
	DepartmentIDs   []string  `json:"departmentIds"`
}

// ProjectFilter narrows a project listing to the scope. Admins get an
// unrestricted filter.
func (s *Scope) ProjectFilter() domain.ProjectFilter {
	if s.IsAdmin {
		return domain.ProjectFilter{}
	}
	return domain.ProjectFilter{DepartmentIDs: append([]string(nil), s.DepartmentIDs...)}
}

// CanSeeDepartment reports whether the department is inside the scope.
func (s *Scope) CanSeeDepartment(departmentID string) bool {
	if s.IsAdmin {
		return true
	}
	for _, id := range s.DepartmentIDs {
		if id == departmentID {
			return true
		}
	}
	return false
}

type Resolver interface {
	ResolveScope(ctx context.Context, userID string) (*Scope, error)
}

// Role levels, most privileged last.
const (
	RoleUser   = "USER"
	RoleMember = "MEMBER"
	RoleHead   = "HEAD"
	RoleLeader = "LEADER"
	RoleChief  = "CHIEF"
	RoleAdmin  = "ADMIN"
)

func roleLevel(role string) int {
	switch strings.ToUpper(role) {
	case RoleUser:
		return 1
	case RoleMember:
		return 2
	case RoleHead:
		return 3
	case RoleLeader:
		return 4
	case RoleChief:
		return 5
	case RoleAdmin:
		return 6
	}
	return 0
}

// Department is one leaf of the org tree with its parent chain.
type Department struct {
	ID             string
	DivisionID     string
	MissionGroupID string
}

// Directory is an in-memory Resolver over a fixed org tree and user set.
type Directory struct {
	mu          sync.RWMutex
	users       map[string]*domain.User
	departments map[string]Department
}

func NewDirectory() *Directory {
	return &Directory{
		users:       make(map[string]*domain.User),
		departments: make(map[string]Department),
	}
}

func (d *Directory) AddDepartment(dept Department) {
	d.mu.Lock()
	d.departments[dept.ID] = dept
	d.mu.Unlock()
}

func (d *Directory) AddUser(u *domain.User) {
	d.mu.Lock()
	d.users[u.ID] = u.Clone()
	d.mu.Unlock()
}

// ResolveScope expands the user's roles hierarchically: CHIEF sees the whole
// mission group, LEADER the whole division, HEAD/MEMBER/USER only their
// department. When a department carries both a primary and an additional
// role, the higher one wins. ADMIN sees everything.
func (d *Directory) ResolveScope(_ context.Context, userID string) (*Scope, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}

	if strings.ToUpper(u.Role) == RoleAdmin {
		s := &Scope{Type: ScopeAll, IsAdmin: true}
		mgs := make(map[string]struct{})
		divs := make(map[string]struct{})
		for _, dept := range d.departments {
			s.DepartmentIDs = append(s.DepartmentIDs, dept.ID)
			mgs[dept.MissionGroupID] = struct{}{}
			divs[dept.DivisionID] = struct{}{}
		}
		s.MissionGroupIDs = sortedKeys(mgs)
		s.DivisionIDs = sortedKeys(divs)
		sort.Strings(s.DepartmentIDs)
		return s, nil
	}

	// departmentID -> effective role, primary overlaid with additional roles.
	roleByDept := make(map[string]string)
	if u.DepartmentID != "" {
		roleByDept[u.DepartmentID] = u.Role
	}
	for deptID, role := range u.AdditionalRoles {
		if cur, ok := roleByDept[deptID]; !ok || roleLevel(role) > roleLevel(cur) {
			roleByDept[deptID] = role
		}
	}

	mgs := make(map[string]struct{})
	divs := make(map[string]struct{})
	depts := make(map[string]struct{})

	for deptID, role := range roleByDept {
		dept, ok := d.departments[deptID]
		if !ok {
			continue
		}
		switch strings.ToUpper(role) {
		case RoleChief:
			mgs[dept.MissionGroupID] = struct{}{}
			for _, other := range d.departments {
				if other.MissionGroupID == dept.MissionGroupID {
					divs[other.DivisionID] = struct{}{}
					depts[other.ID] = struct{}{}
				}
			}
		case RoleLeader:
			mgs[dept.MissionGroupID] = struct{}{}
			divs[dept.DivisionID] = struct{}{}
			for _, other := range d.departments {
				if other.DivisionID == dept.DivisionID {
					depts[other.ID] = struct{}{}
				}
			}
		default:
			// Department-bound roles still surface their parents so the
			// hierarchy renders around the department.
			mgs[dept.MissionGroupID] = struct{}{}
			divs[dept.DivisionID] = struct{}{}
			depts[dept.ID] = struct{}{}
		}
	}

	s := &Scope{
		Type:            ScopeDepartment,
		MissionGroupIDs: sortedKeys(mgs),
		DivisionIDs:     sortedKeys(divs),
		DepartmentIDs:   sortedKeys(depts),
	}
	switch {
	case len(s.DepartmentIDs) > 0:
		s.Type = ScopeDepartment
	case len(s.DivisionIDs) > 0:
		s.Type = ScopeDivision
	case len(s.MissionGroupIDs) > 0:
		s.Type = ScopeMissionGroup
	}
	return s, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
