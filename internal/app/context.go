package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trackline/internal/domain"
	"trackline/internal/repo"
)

// ResolveWorkspace picks the active workspace for CLI commands. It prefers
// the override, then a single-workspace DB. If the workspace does not exist,
// it is created on the fly with the actor as owner.
func ResolveWorkspace(ctx context.Context, workspaceOverride, actorID string, r repo.Repo) (string, error) {
	workspaceID := workspaceOverride
	if workspaceID == "" {
		items, err := r.ListWorkspaces(ctx)
		if err != nil {
			return "", err
		}
		if len(items) == 1 {
			return items[0].ID, nil
		}
		return "", fmt.Errorf("workspace not specified; use --workspace")
	}
	if _, err := r.GetWorkspace(ctx, workspaceID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", err
		}
		if err := createWorkspace(ctx, r, workspaceID, actorID); err != nil {
			return "", err
		}
	}
	return workspaceID, nil
}

// createWorkspace inserts a minimal workspace footprint owned by the actor.
func createWorkspace(ctx context.Context, r repo.Repo, workspaceID, actorID string) error {
	if actorID == "" {
		actorID = "local-user"
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.EnsureUser(ctx, tx, actorID, "", now); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	w := domain.Workspace{ID: workspaceID, Name: workspaceID, OwnerID: actorID, CreatedAt: now}
	if err := r.InsertWorkspace(ctx, tx, w); err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return tx.Commit()
}
