package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/peaknext/projectflow/internal/domain"
	"github.com/peaknext/projectflow/internal/progress"
)

// SQLite is a Backend persisted in a local SQLite database. It is the
// reference durable collaborator for the CLI; the cache itself stays purely
// transient.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			department_id TEXT NOT NULL,
			status TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			owner_user_id TEXT NOT NULL,
			start_date TEXT,
			end_date TEXT,
			progress REAL NOT NULL DEFAULT 0,
			progress_updated_at TEXT,
			deleted_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS statuses (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			ord INTEGER NOT NULL,
			type TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			project_id TEXT NOT NULL,
			status_id TEXT NOT NULL,
			priority INTEGER NOT NULL,
			difficulty INTEGER,
			start_date TEXT,
			due_date TEXT,
			assignee_user_ids TEXT NOT NULL DEFAULT '[]',
			parent_task_id TEXT,
			created_by TEXT NOT NULL DEFAULT '',
			is_closed INTEGER NOT NULL DEFAULT 0,
			close_type TEXT,
			closed_at TEXT,
			closed_by TEXT,
			deleted_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
		CREATE TABLE IF NOT EXISTS checklist_items (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			name TEXT NOT NULL,
			is_checked INTEGER NOT NULL DEFAULT 0,
			ord INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			mentioned_user_ids TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS pinned_tasks (
			user_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			PRIMARY KEY (user_id, task_id)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

func timePtrStr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func strPtrTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

const taskColumns = `id, name, description, project_id, status_id, priority, difficulty,
	start_date, due_date, assignee_user_ids, parent_task_id, created_by,
	is_closed, close_type, closed_at, closed_by, deleted_at, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*domain.Task, error) {
	var (
		t                                      domain.Task
		difficulty                             sql.NullInt64
		startDate, dueDate, closedAt           sql.NullString
		deletedAt, createdAt, updatedAt        sql.NullString
		assignees, closeType, parent, closedBy sql.NullString
	)
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.ProjectID, &t.StatusID,
		&t.Priority, &difficulty, &startDate, &dueDate, &assignees, &parent,
		&t.CreatedBy, &t.IsClosed, &closeType, &closedAt, &closedBy,
		&deletedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if difficulty.Valid {
		d := int(difficulty.Int64)
		t.Difficulty = &d
	}
	t.StartDate = strPtrTime(startDate)
	t.DueDate = strPtrTime(dueDate)
	t.ClosedAt = strPtrTime(closedAt)
	t.DeletedAt = strPtrTime(deletedAt)
	if created := strPtrTime(createdAt); created != nil {
		t.CreatedAt = *created
	}
	if updated := strPtrTime(updatedAt); updated != nil {
		t.UpdatedAt = *updated
	}
	if assignees.Valid && assignees.String != "" {
		if err := json.Unmarshal([]byte(assignees.String), &t.AssigneeUserIDs); err != nil {
			return nil, fmt.Errorf("decode assignees for task %s: %w", t.ID, err)
		}
	}
	if t.AssigneeUserIDs == nil {
		t.AssigneeUserIDs = make([]string, 0)
	}
	if parent.Valid {
		v := parent.String
		t.ParentTaskID = &v
	}
	if closeType.Valid {
		ct := domain.CloseType(closeType.String)
		t.CloseType = &ct
	}
	if closedBy.Valid {
		v := closedBy.String
		t.ClosedBy = &v
	}
	t.SyncAssigneeMirror()
	return &t, nil
}

func (s *SQLite) saveTask(t *domain.Task) error {
	assignees, err := json.Marshal(t.AssigneeUserIDs)
	if err != nil {
		return err
	}
	var closeType any
	if t.CloseType != nil {
		closeType = string(*t.CloseType)
	}
	_, err = s.db.Exec(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, description=excluded.description,
			status_id=excluded.status_id, priority=excluded.priority,
			difficulty=excluded.difficulty, start_date=excluded.start_date,
			due_date=excluded.due_date, assignee_user_ids=excluded.assignee_user_ids,
			parent_task_id=excluded.parent_task_id,
			is_closed=excluded.is_closed, close_type=excluded.close_type,
			closed_at=excluded.closed_at, closed_by=excluded.closed_by,
			deleted_at=excluded.deleted_at, updated_at=excluded.updated_at`,
		t.ID, t.Name, t.Description, t.ProjectID, t.StatusID, t.Priority,
		nullInt(t.Difficulty), timePtrStr(t.StartDate), timePtrStr(t.DueDate),
		string(assignees), nullStr(t.ParentTaskID), t.CreatedBy, t.IsClosed,
		closeType, timePtrStr(t.ClosedAt), nullStr(t.ClosedBy),
		timePtrStr(t.DeletedAt),
		t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func (s *SQLite) getTask(taskID string) (*domain.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	return t, err
}

// SeedProject writes a project and its status list, used by the CLI to set up
// demo data.
func (s *SQLite) SeedProject(p *domain.Project, statuses []*domain.Status) error {
	if err := s.saveProject(p); err != nil {
		return err
	}
	for _, st := range statuses {
		_, err := s.db.Exec(`
			INSERT INTO statuses (id, project_id, name, color, ord, type)
			VALUES (?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET name=excluded.name, color=excluded.color,
				ord=excluded.ord, type=excluded.type`,
			st.ID, st.ProjectID, st.Name, st.Color, st.Order, string(st.Type))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) saveProject(p *domain.Project) error {
	_, err := s.db.Exec(`
		INSERT INTO projects (id, name, description, department_id, status, color,
			owner_user_id, start_date, end_date, progress, progress_updated_at,
			deleted_at, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, description=excluded.description,
			department_id=excluded.department_id, status=excluded.status,
			color=excluded.color, progress=excluded.progress,
			progress_updated_at=excluded.progress_updated_at,
			deleted_at=excluded.deleted_at, updated_at=excluded.updated_at`,
		p.ID, p.Name, p.Description, p.DepartmentID, string(p.Status), p.Color,
		p.OwnerUserID, timePtrStr(p.StartDate), timePtrStr(p.EndDate),
		p.Progress, timePtrStr(p.ProgressUpdatedAt), timePtrStr(p.DeletedAt),
		p.CreatedAt.Format(time.RFC3339Nano), p.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

func (s *SQLite) recomputeProgress(projectID string) error {
	tasks, err := s.listProjectTasks(projectID)
	if err != nil {
		return err
	}
	statuses, err := s.ListStatuses(context.Background(), projectID)
	if err != nil {
		return err
	}
	res := progress.Compute(tasks, statuses)
	now := time.Now().Format(time.RFC3339Nano)
	_, err = s.db.Exec(`UPDATE projects SET progress = ?, progress_updated_at = ? WHERE id = ?`,
		res.Progress, now, projectID)
	return err
}

func (s *SQLite) listProjectTasks(projectID string) ([]*domain.Task, error) {
	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateTask(ctx context.Context, in domain.CreateTaskInput) (*domain.Task, error) {
	statuses, err := s.ListStatuses(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if domain.StatusByID(statuses, in.StatusID) == nil {
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
	if err := s.saveTask(t); err != nil {
		return nil, err
	}
	if err := s.recomputeProgress(t.ProjectID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLite) UpdateTask(ctx context.Context, taskID string, in domain.UpdateTaskInput) (*domain.Task, error) {
	t, err := s.getTask(taskID)
	if err != nil {
		return nil, err
	}
	if t.DeletedAt != nil {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	if t.IsClosed {
		return nil, fmt.Errorf("%w: task %s is closed", domain.ErrValidation, taskID)
	}
	if in.StatusID != nil {
		statuses, err := s.ListStatuses(ctx, t.ProjectID)
		if err != nil {
			return nil, err
		}
		if domain.StatusByID(statuses, *in.StatusID) == nil {
			return nil, fmt.Errorf("%w: status %s does not belong to project %s", domain.ErrValidation, *in.StatusID, t.ProjectID)
		}
	}
	in.ApplyTo(t)
	t.UpdatedAt = time.Now()
	if err := s.saveTask(t); err != nil {
		return nil, err
	}
	if err := s.recomputeProgress(t.ProjectID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLite) CloseTask(ctx context.Context, taskID string, in domain.CloseTaskInput) (*domain.Task, error) {
	t, err := s.getTask(taskID)
	if err != nil {
		return nil, err
	}
	if t.DeletedAt != nil {
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
	if err := s.saveTask(t); err != nil {
		return nil, err
	}
	if in.Comment != "" {
		if _, err := s.CreateComment(ctx, taskID, domain.CommentInput{
			Content:      in.Comment,
			AuthorUserID: in.ClosedBy,
		}); err != nil {
			return nil, err
		}
	}
	if err := s.recomputeProgress(t.ProjectID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLite) DeleteTask(ctx context.Context, taskID string) error {
	t, err := s.getTask(taskID)
	if err != nil {
		return err
	}
	if t.DeletedAt != nil {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	now := time.Now()
	t.DeletedAt = &now
	if err := s.saveTask(t); err != nil {
		return err
	}
	return s.recomputeProgress(t.ProjectID)
}

func (s *SQLite) PinTask(ctx context.Context, userID, taskID string) error {
	if _, err := s.getTask(taskID); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO pinned_tasks (user_id, task_id) VALUES (?,?)`,
		userID, taskID)
	return err
}

func (s *SQLite) UnpinTask(ctx context.Context, userID, taskID string) error {
	_, err := s.db.Exec(`DELETE FROM pinned_tasks WHERE user_id = ? AND task_id = ?`,
		userID, taskID)
	return err
}

func (s *SQLite) CreateChecklistItem(ctx context.Context, taskID string, in domain.ChecklistItemInput) (*domain.ChecklistItem, error) {
	if _, err := s.getTask(taskID); err != nil {
		return nil, err
	}
	item := domain.NewChecklistItem(taskID, in.Name, in.Order)
	_, err := s.db.Exec(`INSERT INTO checklist_items (id, task_id, name, is_checked, ord) VALUES (?,?,?,?,?)`,
		item.ID, item.TaskID, item.Name, item.IsChecked, item.Order)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *SQLite) UpdateChecklistItem(ctx context.Context, taskID, itemID string, in domain.ChecklistItemUpdate) (*domain.ChecklistItem, error) {
	row := s.db.QueryRow(`SELECT id, task_id, name, is_checked, ord FROM checklist_items WHERE id = ? AND task_id = ?`,
		itemID, taskID)
	var item domain.ChecklistItem
	if err := row.Scan(&item.ID, &item.TaskID, &item.Name, &item.IsChecked, &item.Order); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: checklist item %s", domain.ErrNotFound, itemID)
		}
		return nil, err
	}
	in.ApplyTo(&item)
	_, err := s.db.Exec(`UPDATE checklist_items SET name = ?, is_checked = ? WHERE id = ?`,
		item.Name, item.IsChecked, item.ID)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *SQLite) DeleteChecklistItem(ctx context.Context, taskID, itemID string) error {
	res, err := s.db.Exec(`DELETE FROM checklist_items WHERE id = ? AND task_id = ?`, itemID, taskID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: checklist item %s", domain.ErrNotFound, itemID)
	}
	return nil
}

func (s *SQLite) CreateComment(ctx context.Context, taskID string, in domain.CommentInput) (*domain.Comment, error) {
	if _, err := s.getTask(taskID); err != nil {
		return nil, err
	}
	c := domain.NewComment(taskID, in.AuthorUserID, in.Content, in.MentionedUserIDs)
	mentioned, err := json.Marshal(c.MentionedUserIDs)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Exec(`INSERT INTO comments (id, task_id, user_id, content, mentioned_user_ids, created_at) VALUES (?,?,?,?,?,?)`,
		c.ID, c.TaskID, c.UserID, c.Content, string(mentioned), c.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SQLite) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	t, err := s.getTask(taskID)
	if err != nil {
		return nil, err
	}
	if t.DeletedAt != nil {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	return t, nil
}

func (s *SQLite) ListTasks(ctx context.Context, f domain.TaskFilter) ([]*domain.Task, error) {
	rows, err := s.db.Query(`SELECT ` + taskColumns + ` FROM tasks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out, rows.Err()
}

func (s *SQLite) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	row := s.db.QueryRow(`SELECT id, name, description, department_id, status, color,
		owner_user_id, start_date, end_date, progress, progress_updated_at,
		deleted_at, created_at, updated_at FROM projects WHERE id = ?`, projectID)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: project %s", domain.ErrNotFound, projectID)
	}
	if err != nil {
		return nil, err
	}
	if p.DeletedAt != nil {
		return nil, fmt.Errorf("%w: project %s", domain.ErrNotFound, projectID)
	}
	return p, nil
}

func scanProject(row interface{ Scan(...any) error }) (*domain.Project, error) {
	var (
		p                     domain.Project
		status                string
		startDate, endDate    sql.NullString
		progressAt, deletedAt sql.NullString
		createdAt, updatedAt  sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.DepartmentID, &status,
		&p.Color, &p.OwnerUserID, &startDate, &endDate, &p.Progress,
		&progressAt, &deletedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = domain.ProjectStatus(status)
	p.StartDate = strPtrTime(startDate)
	p.EndDate = strPtrTime(endDate)
	p.ProgressUpdatedAt = strPtrTime(progressAt)
	p.DeletedAt = strPtrTime(deletedAt)
	if created := strPtrTime(createdAt); created != nil {
		p.CreatedAt = *created
	}
	if updated := strPtrTime(updatedAt); updated != nil {
		p.UpdatedAt = *updated
	}
	return &p, nil
}

func (s *SQLite) ListProjects(ctx context.Context, f domain.ProjectFilter) ([]*domain.Project, error) {
	rows, err := s.db.Query(`SELECT id, name, description, department_id, status, color,
		owner_user_id, start_date, end_date, progress, progress_updated_at,
		deleted_at, created_at, updated_at FROM projects`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out, rows.Err()
}

func (s *SQLite) ListStatuses(ctx context.Context, projectID string) ([]*domain.Status, error) {
	rows, err := s.db.Query(`SELECT id, project_id, name, color, ord, type FROM statuses
		WHERE project_id = ? ORDER BY ord`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Status
	for rows.Next() {
		var st domain.Status
		var typ string
		if err := rows.Scan(&st.ID, &st.ProjectID, &st.Name, &st.Color, &st.Order, &typ); err != nil {
			return nil, err
		}
		st.Type = domain.StatusType(typ)
		out = append(out, &st)
	}
	return out, rows.Err()
}

func (s *SQLite) ListChecklist(ctx context.Context, taskID string) ([]*domain.ChecklistItem, error) {
	rows, err := s.db.Query(`SELECT id, task_id, name, is_checked, ord FROM checklist_items
		WHERE task_id = ? ORDER BY ord`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.ChecklistItem
	for rows.Next() {
		var item domain.ChecklistItem
		if err := rows.Scan(&item.ID, &item.TaskID, &item.Name, &item.IsChecked, &item.Order); err != nil {
			return nil, err
		}
		out = append(out, &item)
	}
	return out, rows.Err()
}

func (s *SQLite) ListComments(ctx context.Context, taskID string) ([]*domain.Comment, error) {
	rows, err := s.db.Query(`SELECT id, task_id, user_id, content, mentioned_user_ids, created_at
		FROM comments WHERE task_id = ? ORDER BY created_at DESC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Comment
	for rows.Next() {
		var (
			c         domain.Comment
			mentioned string
			created   sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.TaskID, &c.UserID, &c.Content, &mentioned, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(mentioned), &c.MentionedUserIDs); err != nil {
			return nil, fmt.Errorf("decode mentions for comment %s: %w", c.ID, err)
		}
		if at := strPtrTime(created); at != nil {
			c.CreatedAt = *at
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *SQLite) ListPinnedTasks(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT task_id FROM pinned_tasks WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
