package repo

import (
	"context"
	"database/sql"

	"trackline/internal/domain"
)

// The workspace owner is never stored as a membership row; role resolution
// special-cases the owner column on workspaces.

func (r Repo) UpsertWorkspaceMember(ctx context.Context, tx *sql.Tx, m domain.WorkspaceMember) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO workspace_members(workspace_id,user_id,role,added_at) VALUES (?,?,?,?)
ON CONFLICT(workspace_id,user_id) DO UPDATE SET role=excluded.role`, m.WorkspaceID, m.UserID, m.Role, m.AddedAt)
	return err
}

func (r Repo) DeleteWorkspaceMember(ctx context.Context, tx *sql.Tx, workspaceID, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM workspace_members WHERE workspace_id=? AND user_id=?`, workspaceID, userID)
	return err
}

func (r Repo) GetWorkspaceMemberRole(ctx context.Context, tx *sql.Tx, workspaceID, userID string) (string, error) {
	var role string
	err := tx.QueryRowContext(ctx, `SELECT role FROM workspace_members WHERE workspace_id=? AND user_id=?`, workspaceID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return role, err
}

func (r Repo) ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]domain.WorkspaceMember, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT workspace_id,user_id,role,added_at FROM workspace_members WHERE workspace_id=? ORDER BY added_at, user_id`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkspaceMember
	for rows.Next() {
		var m domain.WorkspaceMember
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.AddedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// HasWorkspaceMembershipTx reports whether the user is the workspace owner or
// holds any membership row; used for assignee validation.
func (r Repo) HasWorkspaceMembershipTx(ctx context.Context, tx *sql.Tx, workspaceID, userID string) (bool, error) {
	row := tx.QueryRowContext(ctx, `
SELECT 1 FROM workspaces WHERE id=? AND owner_id=?
UNION
SELECT 1 FROM workspace_members WHERE workspace_id=? AND user_id=? LIMIT 1`,
		workspaceID, userID, workspaceID, userID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) UpsertProjectMember(ctx context.Context, tx *sql.Tx, m domain.ProjectMember) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO project_members(project_id,user_id,role,added_at) VALUES (?,?,?,?)
ON CONFLICT(project_id,user_id) DO UPDATE SET role=excluded.role`, m.ProjectID, m.UserID, m.Role, m.AddedAt)
	return err
}

func (r Repo) DeleteProjectMember(ctx context.Context, tx *sql.Tx, projectID, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM project_members WHERE project_id=? AND user_id=?`, projectID, userID)
	return err
}

func (r Repo) GetProjectMemberRole(ctx context.Context, tx *sql.Tx, projectID, userID string) (string, error) {
	var role string
	err := tx.QueryRowContext(ctx, `SELECT role FROM project_members WHERE project_id=? AND user_id=?`, projectID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return role, err
}

func (r Repo) ListProjectMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT project_id,user_id,role,added_at FROM project_members WHERE project_id=? ORDER BY added_at, user_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProjectMember
	for rows.Next() {
		var m domain.ProjectMember
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.AddedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
