package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/peaknext/projectflow/internal/domain"
)

// Key is a hierarchical cache key, most specific segment last. Prefix
// relationships drive bulk invalidation: invalidating ("projects", id)
// also hits ("projects", id, "board").
type Key []string

func K(parts ...string) Key {
	return Key(parts)
}

func (k Key) String() string {
	return strings.Join(k, "/")
}

func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}

// Key namespaces.
var (
	TasksPrefix       = Key{"tasks"}
	TaskListsPrefix   = Key{"tasks", "list"}
	ProjectsPrefix    = Key{"projects"}
	DepartmentsPrefix = Key{"departments"}
	DashboardPrefix   = Key{"dashboard"}
)

func TaskListKey(f domain.TaskFilter) Key {
	return Key{"tasks", "list", encodeTaskFilter(f)}
}

func TaskDetailKey(id string) Key {
	return Key{"tasks", "detail", id}
}

func TaskChecklistKey(id string) Key {
	return Key{"tasks", "detail", id, "checklists"}
}

func TaskCommentsKey(id string) Key {
	return Key{"tasks", "detail", id, "comments"}
}

func ProjectDetailKey(id string) Key {
	return Key{"projects", id}
}

func ProjectBoardKey(id string) Key {
	return Key{"projects", id, "board"}
}

func DepartmentTasksKey(departmentID string, f domain.TaskFilter) Key {
	return Key{"departments", departmentID, "tasks", encodeTaskFilter(f)}
}

func DashboardKey(viewerID string) Key {
	return Key{"dashboard", viewerID}
}

// encodeTaskFilter canonicalizes filter parameters into one deterministic key
// segment so that equal filters always address the same entry.
func encodeTaskFilter(f domain.TaskFilter) string {
	pairs := make([]string, 0, 8)
	add := func(k, v string) { pairs = append(pairs, k+"="+v) }

	if f.ProjectID != nil {
		add("project", *f.ProjectID)
	}
	if f.AssigneeUserID != nil {
		add("assignee", *f.AssigneeUserID)
	}
	if f.StatusID != nil {
		add("status", *f.StatusID)
	}
	if f.Priority != nil {
		add("priority", fmt.Sprintf("%d", *f.Priority))
	}
	if f.ParentTaskID != nil {
		add("parent", *f.ParentTaskID)
	}
	if f.CreatedBy != nil {
		add("createdBy", *f.CreatedBy)
	}
	if f.IncludeClosed {
		add("includeClosed", "true")
	}
	if f.IncludeDeleted {
		add("includeDeleted", "true")
	}
	if f.Search != "" {
		add("search", f.Search)
	}
	if len(pairs) == 0 {
		return "-"
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}
