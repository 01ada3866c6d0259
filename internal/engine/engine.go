package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"trackline/internal/activity"
	"trackline/internal/config"
	"trackline/internal/domain"
	"trackline/internal/engine/auth"
	"trackline/internal/engine/review"
	"trackline/internal/repo"
)

// maxBlockerTitles caps the prerequisite titles enumerated in a
// BlockedByDependencyError.
const maxBlockerTitles = 3

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Roles    auth.Service
	Review   review.Resolver
	Activity activity.Recorder
	Config   *config.Config
	Now      func() time.Time

	locks *projectLocks
}

func New(db *sql.DB, cfg *config.Config) Engine {
	var approve, requestChanges []string
	if cfg != nil {
		approve = cfg.Review.ApprovePatterns
		requestChanges = cfg.Review.RequestChangesPatterns
	}
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Roles:    auth.Service{DB: db},
		Review:   review.NewResolver(approve, requestChanges),
		Activity: activity.Recorder{DB: db},
		Config:   cfg,
		Now:      time.Now,
		locks:    newProjectLocks(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ResolveRole returns the actor's effective role in a workspace or project.
func (e Engine) ResolveRole(ctx context.Context, actorID string, kind auth.ScopeKind, scopeID string) (string, bool, error) {
	tx, err := e.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback()
	return e.Roles.ResolveRole(ctx, tx, actorID, kind, scopeID)
}

// HasAnyRole reports whether the actor's effective role is in the allowed set.
func (e Engine) HasAnyRole(ctx context.Context, actorID string, kind auth.ScopeKind, scopeID string, allowed ...string) (bool, error) {
	tx, err := e.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	return e.Roles.HasAnyRole(ctx, tx, actorID, kind, scopeID, allowed...)
}

func (e Engine) CreateWorkspace(ctx context.Context, id, name, ownerID, actorID string) (domain.Workspace, error) {
	if name == "" {
		return domain.Workspace{}, errors.New("name is required")
	}
	if ownerID == "" {
		ownerID = actorID
	}
	now := e.now().UTC().Format(time.RFC3339)
	if id == "" {
		id = uuid.New().String()
	}
	w := domain.Workspace{ID: id, Name: name, OwnerID: ownerID, CreatedAt: now}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return w, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureUser(ctx, tx, ownerID, "", now); err != nil {
		return w, err
	}
	if err := e.Repo.InsertWorkspace(ctx, tx, w); err != nil {
		return w, err
	}
	if err := e.Activity.Append(ctx, tx, now, "workspace.created", w.ID, actorID, w.ID, activity.Metadata{"name": w.Name}); err != nil {
		return w, err
	}
	return w, tx.Commit()
}

// AddWorkspaceMember grants or updates a membership row. The owner role is
// implicit and never stored, so it cannot be granted here.
func (e Engine) AddWorkspaceMember(ctx context.Context, workspaceID, userID, role, actorID string) error {
	if !domain.ValidRole(role) || role == domain.RoleOwner {
		return errors.New("role must be one of admin, member, viewer")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetWorkspaceTx(ctx, tx, workspaceID); err != nil {
		return err
	}
	ok, err := e.Roles.HasAnyRole(ctx, tx, actorID, auth.ScopeWorkspace, workspaceID, domain.RoleOwner, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if !ok {
		return UnauthorizedError{ActorID: actorID}
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.EnsureUser(ctx, tx, userID, "", now); err != nil {
		return err
	}
	m := domain.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: role, AddedAt: now}
	if err := e.Repo.UpsertWorkspaceMember(ctx, tx, m); err != nil {
		return err
	}
	if err := e.Activity.Append(ctx, tx, now, "workspace.member_added", userID, actorID, workspaceID, activity.Metadata{"role": role}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) RemoveWorkspaceMember(ctx context.Context, workspaceID, userID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetWorkspaceTx(ctx, tx, workspaceID); err != nil {
		return err
	}
	ok, err := e.Roles.HasAnyRole(ctx, tx, actorID, auth.ScopeWorkspace, workspaceID, domain.RoleOwner, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if !ok {
		return UnauthorizedError{ActorID: actorID}
	}
	if err := e.Repo.DeleteWorkspaceMember(ctx, tx, workspaceID, userID); err != nil {
		return err
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Activity.Append(ctx, tx, now, "workspace.member_removed", userID, actorID, workspaceID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) CreateProject(ctx context.Context, id, workspaceID, name, description, actorID string) (domain.Project, error) {
	if name == "" {
		return domain.Project{}, errors.New("name is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetWorkspaceTx(ctx, tx, workspaceID); err != nil {
		return domain.Project{}, err
	}
	ok, err := e.Roles.HasAnyRole(ctx, tx, actorID, auth.ScopeWorkspace, workspaceID, domain.RoleOwner, domain.RoleAdmin)
	if err != nil {
		return domain.Project{}, err
	}
	if !ok {
		return domain.Project{}, UnauthorizedError{ActorID: actorID}
	}
	now := e.now().UTC().Format(time.RFC3339)
	if id == "" {
		id = uuid.New().String()
	}
	p := domain.Project{ID: id, WorkspaceID: workspaceID, Name: name, Description: description, CreatedAt: now}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.Activity.Append(ctx, tx, now, "project.created", p.ID, actorID, workspaceID, activity.Metadata{"name": p.Name}); err != nil {
		return p, err
	}
	return p, tx.Commit()
}

// AddProjectMember grants or updates a project membership row. Project
// membership is independent of workspace membership; only the workspace
// owner carries over implicitly.
func (e Engine) AddProjectMember(ctx context.Context, projectID, userID, role, actorID string) error {
	if !domain.ValidRole(role) || role == domain.RoleOwner {
		return errors.New("role must be one of admin, member, viewer")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProjectTx(ctx, tx, projectID)
	if err != nil {
		return err
	}
	ok, err := e.Roles.HasAnyRole(ctx, tx, actorID, auth.ScopeProject, projectID, domain.RoleOwner, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if !ok {
		return UnauthorizedError{ActorID: actorID}
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.EnsureUser(ctx, tx, userID, "", now); err != nil {
		return err
	}
	m := domain.ProjectMember{ProjectID: projectID, UserID: userID, Role: role, AddedAt: now}
	if err := e.Repo.UpsertProjectMember(ctx, tx, m); err != nil {
		return err
	}
	if err := e.Activity.Append(ctx, tx, now, "project.member_added", userID, actorID, p.WorkspaceID, activity.Metadata{"project_id": projectID, "role": role}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) RemoveProjectMember(ctx context.Context, projectID, userID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProjectTx(ctx, tx, projectID)
	if err != nil {
		return err
	}
	ok, err := e.Roles.HasAnyRole(ctx, tx, actorID, auth.ScopeProject, projectID, domain.RoleOwner, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if !ok {
		return UnauthorizedError{ActorID: actorID}
	}
	if err := e.Repo.DeleteProjectMember(ctx, tx, projectID, userID); err != nil {
		return err
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Activity.Append(ctx, tx, now, "project.member_removed", userID, actorID, p.WorkspaceID, activity.Metadata{"project_id": projectID}); err != nil {
		return err
	}
	return tx.Commit()
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Priority    *int
	AssigneeID  string
	DueDate     string
	DependsOn   []string
	ActorID     string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.ProjectID == "" {
		return domain.Task{}, errors.New("project is required")
	}
	unlock := e.locks.lock(opts.ProjectID)
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProjectTx(ctx, tx, opts.ProjectID)
	if err != nil {
		return domain.Task{}, err
	}
	ok, err := e.Roles.HasAnyRole(ctx, tx, opts.ActorID, auth.ScopeProject, opts.ProjectID,
		domain.RoleOwner, domain.RoleAdmin, domain.RoleMember)
	if err != nil {
		return domain.Task{}, err
	}
	if !ok {
		return domain.Task{}, UnauthorizedError{ActorID: opts.ActorID}
	}
	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(opts.ProjectID+"|"+opts.Title+"|"+now)).String()
	}
	if opts.AssigneeID != "" {
		member, err := e.Repo.HasWorkspaceMembershipTx(ctx, tx, p.WorkspaceID, opts.AssigneeID)
		if err != nil {
			return domain.Task{}, err
		}
		if !member {
			return domain.Task{}, InvalidAssigneeError{UserID: opts.AssigneeID}
		}
	}
	t := domain.Task{
		ID:          id,
		ProjectID:   opts.ProjectID,
		Title:       opts.Title,
		Description: opts.Description,
		Status:      domain.StatusTodo,
		Priority:    opts.Priority,
		AssigneeID:  optionalString(opts.AssigneeID),
		DueDate:     optionalString(opts.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return t, err
	}
	for _, dep := range opts.DependsOn {
		if err := e.insertEdgeTx(ctx, tx, t.ID, dep, opts.ProjectID); err != nil {
			return t, err
		}
	}
	if err := e.Activity.Append(ctx, tx, now, "task.created", t.ID, opts.ActorID, p.WorkspaceID, activity.Metadata{"title": t.Title, "status": t.Status}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	t.DependsOn = opts.DependsOn
	return t, nil
}

// legalEdge reports whether the status pair is a permitted state-machine edge.
// The only regression is review -> in_progress, used when changes are requested.
func legalEdge(from, to string) bool {
	switch from {
	case domain.StatusTodo:
		return to == domain.StatusInProgress
	case domain.StatusInProgress:
		return to == domain.StatusReview
	case domain.StatusReview:
		return to == domain.StatusDone || to == domain.StatusInProgress
	}
	return false
}

// AttemptTransition validates a requested status change against the actor's
// role, the state machine, the approval trail and the dependency graph. On
// success the new status is committed together with an activity record; on
// any gate failure nothing is mutated.
func (e Engine) AttemptTransition(ctx context.Context, taskID, requested, actorID string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return t, err
	}
	unlock := e.locks.lock(t.ProjectID)
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()

	// Re-read under the lock; the first read only located the project.
	t, err = e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return t, err
	}
	p, err := e.Repo.GetProjectTx(ctx, tx, t.ProjectID)
	if err != nil {
		return t, err
	}
	role, _, err := e.Roles.ResolveRole(ctx, tx, actorID, auth.ScopeProject, t.ProjectID)
	if err != nil {
		return t, err
	}
	elevated := domain.Elevated(role)
	isAssignee := t.AssigneeID != nil && *t.AssigneeID == actorID
	if !elevated && !isAssignee {
		return t, UnauthorizedError{ActorID: actorID}
	}
	if requested == t.Status {
		return t, nil
	}
	if !legalEdge(t.Status, requested) {
		return t, InvalidTransitionError{From: t.Status, To: requested}
	}
	if !elevated {
		// Assignees advance work through review only; everything else is an
		// elevated action.
		allowed := (t.Status == domain.StatusInProgress && requested == domain.StatusReview) ||
			(t.Status == domain.StatusReview && requested == domain.StatusDone)
		if !allowed {
			return t, InvalidTransitionError{From: t.Status, To: requested}
		}
	}
	if requested == domain.StatusDone {
		comments, err := e.Repo.ListCommentsTx(ctx, tx, t.ID)
		if err != nil {
			return t, err
		}
		assignee := ""
		if t.AssigneeID != nil {
			assignee = *t.AssigneeID
		}
		decision, ok := e.Review.LatestDecision(comments, assignee)
		if !ok || decision.Kind != review.Approved {
			return t, ApprovalRequiredError{TaskID: t.ID}
		}
	}
	switch requested {
	case domain.StatusInProgress, domain.StatusReview, domain.StatusDone:
		open, err := e.Repo.OpenPrerequisitesTx(ctx, tx, t.ID)
		if err != nil {
			return t, err
		}
		if len(open) > 0 {
			return t, blockedBy(open)
		}
	}
	now := e.now().UTC().Format(time.RFC3339)
	oldStatus := t.Status
	t.Status = requested
	t.UpdatedAt = now
	t.CompletedAt = nil
	if requested == domain.StatusDone {
		t.CompletedAt = &now
	}
	if err := e.Repo.UpdateTaskStatus(ctx, tx, t.ID, t.Status, t.UpdatedAt, t.CompletedAt); err != nil {
		return t, err
	}
	if err := e.Activity.Append(ctx, tx, now, "task.status_changed", t.ID, actorID, p.WorkspaceID, activity.Metadata{
		"old_status": oldStatus,
		"new_status": t.Status,
	}); err != nil {
		return t, err
	}
	return t, tx.Commit()
}

func blockedBy(open []domain.Task) BlockedByDependencyError {
	titles := make([]string, 0, maxBlockerTitles)
	for _, t := range open {
		if len(titles) == maxBlockerTitles {
			break
		}
		titles = append(titles, t.Title)
	}
	return BlockedByDependencyError{Titles: titles, Total: len(open)}
}

// SetAssignee assigns or clears the task's assignee. The target user must
// hold some membership in the task's workspace.
func (e Engine) SetAssignee(ctx context.Context, taskID string, assigneeID *string, actorID string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return t, err
	}
	unlock := e.locks.lock(t.ProjectID)
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()

	t, err = e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return t, err
	}
	p, err := e.Repo.GetProjectTx(ctx, tx, t.ProjectID)
	if err != nil {
		return t, err
	}
	ok, err := e.Roles.HasAnyRole(ctx, tx, actorID, auth.ScopeProject, t.ProjectID, domain.RoleOwner, domain.RoleAdmin)
	if err != nil {
		return t, err
	}
	if !ok {
		return t, UnauthorizedError{ActorID: actorID}
	}
	if assigneeID != nil && *assigneeID != "" {
		member, err := e.Repo.HasWorkspaceMembershipTx(ctx, tx, p.WorkspaceID, *assigneeID)
		if err != nil {
			return t, err
		}
		if !member {
			return t, InvalidAssigneeError{UserID: *assigneeID}
		}
	}
	now := e.now().UTC().Format(time.RFC3339)
	if assigneeID == nil || *assigneeID == "" {
		t.AssigneeID = nil
	} else {
		t.AssigneeID = assigneeID
	}
	t.UpdatedAt = now
	if err := e.Repo.UpdateTaskAssignee(ctx, tx, t.ID, t.AssigneeID, now); err != nil {
		return t, err
	}
	meta := activity.Metadata{}
	if t.AssigneeID != nil {
		meta["assignee_id"] = *t.AssigneeID
	}
	if err := e.Activity.Append(ctx, tx, now, "task.assignee_changed", t.ID, actorID, p.WorkspaceID, meta); err != nil {
		return t, err
	}
	return t, tx.Commit()
}

// AddComment records a discussion note on a task. Decision keywords in the
// body are interpreted lazily by the approval resolver, not at write time.
func (e Engine) AddComment(ctx context.Context, taskID, body, actorID string) (domain.Comment, error) {
	if body == "" {
		return domain.Comment{}, errors.New("body is required")
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Comment{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Comment{}, err
	}
	defer tx.Rollback()

	isAssignee := t.AssigneeID != nil && *t.AssigneeID == actorID
	ok, err := e.Roles.HasAnyRole(ctx, tx, actorID, auth.ScopeProject, t.ProjectID,
		domain.RoleOwner, domain.RoleAdmin, domain.RoleMember)
	if err != nil {
		return domain.Comment{}, err
	}
	if !ok && !isAssignee {
		return domain.Comment{}, UnauthorizedError{ActorID: actorID}
	}
	c := domain.Comment{
		TaskID:    taskID,
		AuthorID:  actorID,
		Body:      body,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	c.ID, err = e.Repo.InsertComment(ctx, tx, c)
	if err != nil {
		return c, err
	}
	return c, tx.Commit()
}

// CurrentDecision returns the governing review decision for a task, if any.
func (e Engine) CurrentDecision(ctx context.Context, taskID string) (review.Decision, bool, error) {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return review.Decision{}, false, err
	}
	comments, err := e.Repo.ListComments(ctx, taskID)
	if err != nil {
		return review.Decision{}, false, err
	}
	assignee := ""
	if t.AssigneeID != nil {
		assignee = *t.AssigneeID
	}
	d, ok := e.Review.LatestDecision(comments, assignee)
	return d, ok, nil
}

// InsertDependency inserts a depends-on edge after the self, cross-project
// and cycle checks. Inserting an existing edge is a no-op success.
func (e Engine) InsertDependency(ctx context.Context, taskID, dependsOnTaskID, actorID string) error {
	if taskID == dependsOnTaskID {
		return SelfDependencyError{TaskID: taskID}
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	unlock := e.locks.lock(t.ProjectID)
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ok, err := e.Roles.HasAnyRole(ctx, tx, actorID, auth.ScopeProject, t.ProjectID,
		domain.RoleOwner, domain.RoleAdmin, domain.RoleMember)
	if err != nil {
		return err
	}
	if !ok {
		return UnauthorizedError{ActorID: actorID}
	}
	if err := e.insertEdgeTx(ctx, tx, taskID, dependsOnTaskID, t.ProjectID); err != nil {
		return err
	}
	p, err := e.Repo.GetProjectTx(ctx, tx, t.ProjectID)
	if err != nil {
		return err
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Activity.Append(ctx, tx, now, "task.dependency_added", taskID, actorID, p.WorkspaceID, activity.Metadata{"depends_on": dependsOnTaskID}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) insertEdgeTx(ctx context.Context, tx *sql.Tx, taskID, dependsOnTaskID, projectID string) error {
	if taskID == dependsOnTaskID {
		return SelfDependencyError{TaskID: taskID}
	}
	dep, err := e.Repo.GetTaskTx(ctx, tx, dependsOnTaskID)
	if err != nil {
		return err
	}
	if dep.ProjectID != projectID {
		return CrossProjectDependencyError{TaskID: taskID, DependsOnTaskID: dependsOnTaskID}
	}
	edges, err := e.Repo.ListProjectDependenciesTx(ctx, tx, projectID)
	if err != nil {
		return err
	}
	if wouldCreateCycle(edges, taskID, dependsOnTaskID) {
		return CircularDependencyError{TaskID: taskID, DependsOnTaskID: dependsOnTaskID}
	}
	_, err = e.Repo.InsertDependency(ctx, tx, taskID, dependsOnTaskID)
	return err
}

// RemoveDependency removes an edge. It reports whether the edge existed;
// absence is not an error.
func (e Engine) RemoveDependency(ctx context.Context, taskID, dependsOnTaskID, actorID string) (bool, error) {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return false, err
	}
	unlock := e.locks.lock(t.ProjectID)
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	ok, err := e.Roles.HasAnyRole(ctx, tx, actorID, auth.ScopeProject, t.ProjectID,
		domain.RoleOwner, domain.RoleAdmin, domain.RoleMember)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, UnauthorizedError{ActorID: actorID}
	}
	removed, err := e.Repo.DeleteDependency(ctx, tx, taskID, dependsOnTaskID)
	if err != nil {
		return false, err
	}
	if removed {
		p, err := e.Repo.GetProjectTx(ctx, tx, t.ProjectID)
		if err != nil {
			return false, err
		}
		now := e.now().UTC().Format(time.RFC3339)
		if err := e.Activity.Append(ctx, tx, now, "task.dependency_removed", taskID, actorID, p.WorkspaceID, activity.Metadata{"depends_on": dependsOnTaskID}); err != nil {
			return false, err
		}
	}
	return removed, tx.Commit()
}

// OpenPrerequisites returns the direct prerequisites of a task that are not
// done. Dependencies are not followed transitively: only directly declared
// prerequisites gate a transition.
func (e Engine) OpenPrerequisites(ctx context.Context, taskID string) ([]domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetTaskTx(ctx, tx, taskID); err != nil {
		return nil, err
	}
	return e.Repo.OpenPrerequisitesTx(ctx, tx, taskID)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
