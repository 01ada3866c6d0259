package auth

import (
	"context"
	"database/sql"
	"errors"

	"trackline/internal/domain"
	"trackline/internal/repo"
)

type ScopeKind string

const (
	ScopeWorkspace ScopeKind = "workspace"
	ScopeProject   ScopeKind = "project"
)

// Service resolves effective roles backed by SQL. The workspace owner is
// implicitly OWNER of the workspace and of every project in it; workspace
// roles otherwise do not carry over into projects.
type Service struct {
	DB *sql.DB
}

// ResolveRole returns the actor's effective role in the scope. ok is false
// when the scope does not exist or the actor has no role there.
func (s Service) ResolveRole(ctx context.Context, tx *sql.Tx, actorID string, kind ScopeKind, scopeID string) (role string, ok bool, err error) {
	switch kind {
	case ScopeWorkspace:
		return s.workspaceRole(ctx, tx, actorID, scopeID)
	case ScopeProject:
		return s.projectRole(ctx, tx, actorID, scopeID)
	}
	return "", false, nil
}

func (s Service) workspaceRole(ctx context.Context, tx *sql.Tx, actorID, workspaceID string) (string, bool, error) {
	var ownerID string
	err := tx.QueryRowContext(ctx, `SELECT owner_id FROM workspaces WHERE id=?`, workspaceID).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if ownerID == actorID {
		return domain.RoleOwner, true, nil
	}
	role, err := repo.Repo{DB: s.DB}.GetWorkspaceMemberRole(ctx, tx, workspaceID, actorID)
	return memberRole(role, err)
}

func (s Service) projectRole(ctx context.Context, tx *sql.Tx, actorID, projectID string) (string, bool, error) {
	var workspaceID, ownerID string
	err := tx.QueryRowContext(ctx, `
SELECT p.workspace_id, w.owner_id
FROM projects p
JOIN workspaces w ON w.id=p.workspace_id
WHERE p.id=?`, projectID).Scan(&workspaceID, &ownerID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if ownerID == actorID {
		return domain.RoleOwner, true, nil
	}
	role, err := repo.Repo{DB: s.DB}.GetProjectMemberRole(ctx, tx, projectID, actorID)
	return memberRole(role, err)
}

// memberRole folds the repo's not-found sentinel into the (role, ok) shape.
func memberRole(role string, err error) (string, bool, error) {
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return role, true, nil
}

// HasAnyRole reports whether the actor's effective role is in the allowed set.
// It returns false, never an error, when the scope does not exist.
func (s Service) HasAnyRole(ctx context.Context, tx *sql.Tx, actorID string, kind ScopeKind, scopeID string, allowed ...string) (bool, error) {
	role, ok, err := s.ResolveRole(ctx, tx, actorID, kind, scopeID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	for _, a := range allowed {
		if role == a {
			return true, nil
		}
	}
	return false, nil
}
