package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"trackline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) EnsureUser(ctx context.Context, tx *sql.Tx, userID, name, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO users(id, name, created_at) VALUES (?,?,?)`, userID, nullable(name), now)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	var name sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if name.Valid {
		u.Name = name.String
	}
	return u, err
}

func (r Repo) InsertWorkspace(ctx context.Context, tx *sql.Tx, w domain.Workspace) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO workspaces(id,name,owner_id,created_at) VALUES (?,?,?,?)`,
		w.ID, w.Name, w.OwnerID, w.CreatedAt)
	return err
}

func scanWorkspace(row *sql.Row) (domain.Workspace, error) {
	var w domain.Workspace
	err := row.Scan(&w.ID, &w.Name, &w.OwnerID, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	return w, err
}

func (r Repo) GetWorkspace(ctx context.Context, id string) (domain.Workspace, error) {
	return scanWorkspace(r.DB.QueryRowContext(ctx, `SELECT id,name,owner_id,created_at FROM workspaces WHERE id=?`, id))
}

func (r Repo) GetWorkspaceTx(ctx context.Context, tx *sql.Tx, id string) (domain.Workspace, error) {
	return scanWorkspace(tx.QueryRowContext(ctx, `SELECT id,name,owner_id,created_at FROM workspaces WHERE id=?`, id))
}

func (r Repo) ListWorkspaces(ctx context.Context) ([]domain.Workspace, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,owner_id,created_at FROM workspaces ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Workspace
	for rows.Next() {
		var w domain.Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.OwnerID, &w.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,workspace_id,name,description,created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.WorkspaceID, p.Name, nullable(p.Description), p.CreatedAt)
	return err
}

func scanProject(row *sql.Row) (domain.Project, error) {
	var p domain.Project
	var desc sql.NullString
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.Name, &desc, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if desc.Valid {
		p.Description = desc.String
	}
	return p, err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx, `SELECT id,workspace_id,name,description,created_at FROM projects WHERE id=?`, id))
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	return scanProject(tx.QueryRowContext(ctx, `SELECT id,workspace_id,name,description,created_at FROM projects WHERE id=?`, id))
}

func (r Repo) ListProjects(ctx context.Context, workspaceID string) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,workspace_id,name,description,created_at FROM projects WHERE workspace_id=? ORDER BY created_at DESC, id DESC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		var desc sql.NullString
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.Name, &desc, &p.CreatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			p.Description = desc.String
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,project_id,title,description,status,priority,assignee_id,due_date,created_at,updated_at,completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, t.Title, nullable(t.Description), t.Status, nullableIntPtr(t.Priority),
		nullableStringPtr(t.AssigneeID), nullableStringPtr(t.DueDate), t.CreatedAt, t.UpdatedAt, nullableStringPtr(t.CompletedAt))
	return err
}

const taskColumns = `id,project_id,title,description,status,priority,assignee_id,due_date,created_at,updated_at,completed_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var desc, assignee, dueDate, completedAt sql.NullString
	var priority sql.NullInt64
	err := scan(&t.ID, &t.ProjectID, &t.Title, &desc, &t.Status, &priority, &assignee, &dueDate, &t.CreatedAt, &t.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if desc.Valid {
		t.Description = desc.String
	}
	if priority.Valid {
		p := int(priority.Int64)
		t.Priority = &p
	}
	if assignee.Valid {
		t.AssigneeID = &assignee.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	return t, nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id).Scan)
	if err != nil {
		return t, err
	}
	t.DependsOn, err = r.ListTaskDependencies(ctx, t.ID)
	return t, err
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	t, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id).Scan)
	if err != nil {
		return t, err
	}
	t.DependsOn, err = r.ListTaskDependenciesTx(ctx, tx, t.ID)
	return t, err
}

func (r Repo) UpdateTaskStatus(ctx context.Context, tx *sql.Tx, id, status, updatedAt string, completedAt *string) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET status=?, updated_at=?, completed_at=? WHERE id=?`,
		status, updatedAt, nullableStringPtr(completedAt), id)
	return err
}

func (r Repo) UpdateTaskAssignee(ctx context.Context, tx *sql.Tx, id string, assigneeID *string, updatedAt string) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET assignee_id=?, updated_at=? WHERE id=?`,
		nullableStringPtr(assigneeID), updatedAt, id)
	return err
}

type TaskFilters struct {
	ProjectID  string
	Status     string
	AssigneeID string
	Limit      int
	CursorID   string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "assignee_id=?")
		args = append(args, f.AssigneeID)
	}
	if f.CursorID != "" {
		clauses = append(clauses, "id > ?")
		args = append(args, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ORDER BY id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) ListTaskDependencies(ctx context.Context, taskID string) ([]string, error) {
	return listDeps(ctx, r.DB.QueryContext, taskID)
}

func (r Repo) ListTaskDependenciesTx(ctx context.Context, tx *sql.Tx, taskID string) ([]string, error) {
	return listDeps(ctx, tx.QueryContext, taskID)
}

type queryFunc func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

func listDeps(ctx context.Context, query queryFunc, taskID string) ([]string, error) {
	rows, err := query(ctx, `SELECT depends_on_task_id FROM task_deps WHERE task_id=? ORDER BY depends_on_task_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var deps []string
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

// ListProjectDependenciesTx returns the full depends-on adjacency for one project.
func (r Repo) ListProjectDependenciesTx(ctx context.Context, tx *sql.Tx, projectID string) (map[string][]string, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT d.task_id, d.depends_on_task_id
FROM task_deps d
JOIN tasks t ON t.id=d.task_id
WHERE t.project_id=?`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	edges := map[string][]string{}
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, err
		}
		edges[from] = append(edges[from], to)
	}
	return edges, rows.Err()
}

// InsertDependency inserts an edge if absent; it reports whether a row was added.
func (r Repo) InsertDependency(ctx context.Context, tx *sql.Tx, taskID, dependsOnTaskID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO task_deps(task_id, depends_on_task_id) VALUES (?,?)`, taskID, dependsOnTaskID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteDependency removes an edge if present; it reports whether a row was removed.
func (r Repo) DeleteDependency(ctx context.Context, tx *sql.Tx, taskID, dependsOnTaskID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM task_deps WHERE task_id=? AND depends_on_task_id=?`, taskID, dependsOnTaskID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// OpenPrerequisitesTx returns direct prerequisites of a task that are not done.
func (r Repo) OpenPrerequisitesTx(ctx context.Context, tx *sql.Tx, taskID string) ([]domain.Task, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT `+prefixedTaskColumns("t")+`
FROM task_deps d
JOIN tasks t ON t.id=d.depends_on_task_id
WHERE d.task_id=? AND t.status != ?
ORDER BY t.id`, taskID, domain.StatusDone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func prefixedTaskColumns(alias string) string {
	cols := strings.Split(taskColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ",")
}

func (r Repo) CountTasksByStatus(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks WHERE project_id=? GROUP BY status`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

func (r Repo) LatestActivities(ctx context.Context, limit int, cursor int64, workspaceID, action string) ([]domain.Activity, error) {
	clauses := []string{"1=1"}
	var args []any
	if workspaceID != "" {
		clauses = append(clauses, "workspace_id=?")
		args = append(args, workspaceID)
	}
	if action != "" {
		clauses = append(clauses, "action=?")
		args = append(args, action)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	if limit <= 0 {
		limit = 50
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT id,ts,action,target_id,actor_id,workspace_id,metadata_json FROM activities ` + where + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	return r.queryActivities(ctx, query, args...)
}

// ActivitiesAfter returns activities with IDs greater than the cursor in ascending order.
func (r Repo) ActivitiesAfter(ctx context.Context, limit int, cursor int64, workspaceID string) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if workspaceID != "" {
		clauses = append(clauses, "workspace_id=?")
		args = append(args, workspaceID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT id,ts,action,target_id,actor_id,workspace_id,metadata_json FROM activities ` + where + ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)
	return r.queryActivities(ctx, query, args...)
}

// LatestActivityID returns the highest activity ID, or 0 when the log is empty.
func (r Repo) LatestActivityID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := r.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM activities`).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id.Int64, nil
}

func (r Repo) queryActivities(ctx context.Context, query string, args ...any) ([]domain.Activity, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var target, workspace sql.NullString
		if err := rows.Scan(&a.ID, &a.TS, &a.Action, &target, &a.ActorID, &workspace, &a.Metadata); err != nil {
			return nil, err
		}
		if target.Valid {
			a.TargetID = target.String
		}
		if workspace.Valid {
			a.WorkspaceID = workspace.String
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
