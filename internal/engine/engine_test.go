package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"trackline/internal/db"
	"trackline/internal/domain"
	"trackline/internal/engine"
	"trackline/internal/engine/auth"
	"trackline/internal/engine/review"
	"trackline/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Dir: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, nil)
	eng.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := eng.CreateWorkspace(ctx, "ws-1", "test", "", "tester"); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	if _, err := eng.CreateProject(ctx, "proj-1", "ws-1", "Main", "", "tester"); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func (env testEnv) createTask(t *testing.T, title string, deps ...string) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID: "proj-1",
		Title:     title,
		DependsOn: deps,
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("create task %q: %v", title, err)
	}
	return task
}

func (env testEnv) mustTransition(t *testing.T, taskID, status, actorID string) domain.Task {
	t.Helper()
	task, err := env.Engine.AttemptTransition(env.Ctx, taskID, status, actorID)
	if err != nil {
		t.Fatalf("transition %s -> %s: %v", taskID, status, err)
	}
	return task
}

func TestWorkspaceOwnerImplicitRole(t *testing.T) {
	env := newTestEnv(t)
	role, ok, err := env.Engine.ResolveRole(env.Ctx, "tester", auth.ScopeWorkspace, "ws-1")
	if err != nil || !ok || role != domain.RoleOwner {
		t.Fatalf("workspace role = %q ok=%v err=%v", role, ok, err)
	}
	// The owner carries over into every project of the workspace without a
	// membership row.
	role, ok, err = env.Engine.ResolveRole(env.Ctx, "tester", auth.ScopeProject, "proj-1")
	if err != nil || !ok || role != domain.RoleOwner {
		t.Fatalf("project role = %q ok=%v err=%v", role, ok, err)
	}
	u, err := env.Engine.Repo.GetUser(env.Ctx, "tester")
	if err != nil || u.ID != "tester" {
		t.Fatalf("owner user row = %+v err=%v", u, err)
	}
}

func TestOwnerRoleCannotBeGranted(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.AddWorkspaceMember(env.Ctx, "ws-1", "alice", domain.RoleOwner, "tester"); err == nil {
		t.Fatalf("expected owner grant to be rejected")
	}
	if err := env.Engine.AddWorkspaceMember(env.Ctx, "ws-1", "alice", "manager", "tester"); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
}

func TestTaskStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, "Do work")
	if task.Status != domain.StatusTodo {
		t.Fatalf("new task status = %q", task.Status)
	}

	// skipping straight to done is not a legal edge
	_, err := env.Engine.AttemptTransition(env.Ctx, task.ID, domain.StatusDone, "tester")
	var invalid engine.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	task = env.mustTransition(t, task.ID, domain.StatusInProgress, "tester")
	if task.Status != domain.StatusInProgress {
		t.Fatalf("status = %q", task.Status)
	}

	// requesting the current status is a no-op success
	task, err = env.Engine.AttemptTransition(env.Ctx, task.ID, domain.StatusInProgress, "tester")
	if err != nil || task.Status != domain.StatusInProgress {
		t.Fatalf("same-status request: %v", err)
	}

	task = env.mustTransition(t, task.ID, domain.StatusReview, "tester")
	// review can regress when changes are requested
	task = env.mustTransition(t, task.ID, domain.StatusInProgress, "tester")
	if task.Status != domain.StatusInProgress {
		t.Fatalf("status after regression = %q", task.Status)
	}
}

func TestDoneRequiresApproval(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.AddProjectMember(env.Ctx, "proj-1", "reviewer", domain.RoleMember, "tester"); err != nil {
		t.Fatalf("add reviewer: %v", err)
	}
	task := env.createTask(t, "Ship it")
	env.mustTransition(t, task.ID, domain.StatusInProgress, "tester")
	env.mustTransition(t, task.ID, domain.StatusReview, "tester")

	_, err := env.Engine.AttemptTransition(env.Ctx, task.ID, domain.StatusDone, "tester")
	var approval engine.ApprovalRequiredError
	if !errors.As(err, &approval) {
		t.Fatalf("expected approval gate, got %v", err)
	}

	if _, err := env.Engine.AddComment(env.Ctx, task.ID, "LGTM, nice work", "reviewer"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	task = env.mustTransition(t, task.ID, domain.StatusDone, "tester")
	if task.Status != domain.StatusDone {
		t.Fatalf("status = %q", task.Status)
	}
	if task.CompletedAt == nil {
		t.Fatalf("expected completed_at to be set")
	}
}

func TestChangesRequestedOverridesApprovalKeyword(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.AddProjectMember(env.Ctx, "proj-1", "reviewer", domain.RoleMember, "tester"); err != nil {
		t.Fatal(err)
	}
	task := env.createTask(t, "Tricky wording")
	env.mustTransition(t, task.ID, domain.StatusInProgress, "tester")
	env.mustTransition(t, task.ID, domain.StatusReview, "tester")

	// mentions "approved" but requests changes; must not read as an approval
	if _, err := env.Engine.AddComment(env.Ctx, task.ID, "changes requested before this can be approved", "reviewer"); err != nil {
		t.Fatal(err)
	}
	d, ok, err := env.Engine.CurrentDecision(env.Ctx, task.ID)
	if err != nil || !ok {
		t.Fatalf("decision: ok=%v err=%v", ok, err)
	}
	if d.Kind != review.ChangesRequested {
		t.Fatalf("decision kind = %q", d.Kind)
	}
	_, err = env.Engine.AttemptTransition(env.Ctx, task.ID, domain.StatusDone, "tester")
	var approval engine.ApprovalRequiredError
	if !errors.As(err, &approval) {
		t.Fatalf("expected approval gate, got %v", err)
	}
}

func TestAssigneeCommentVoidsDecisions(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.AddWorkspaceMember(env.Ctx, "ws-1", "alice", domain.RoleViewer, "tester"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.AddProjectMember(env.Ctx, "proj-1", "reviewer", domain.RoleMember, "tester"); err != nil {
		t.Fatal(err)
	}
	task := env.createTask(t, "Review cycle")
	if _, err := env.Engine.SetAssignee(env.Ctx, task.ID, strPtr("alice"), "tester"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	env.mustTransition(t, task.ID, domain.StatusInProgress, "tester")
	env.mustTransition(t, task.ID, domain.StatusReview, "alice")

	if _, err := env.Engine.AddComment(env.Ctx, task.ID, "approved", "reviewer"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := env.Engine.CurrentDecision(env.Ctx, task.ID); !ok {
		t.Fatalf("expected approval on record")
	}
	// the assignee pushing a new comment re-requests review
	if _, err := env.Engine.AddComment(env.Ctx, task.ID, "fixed the nit, please look again", "alice"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := env.Engine.CurrentDecision(env.Ctx, task.ID); ok {
		t.Fatalf("expected earlier approval to be voided")
	}
	_, err := env.Engine.AttemptTransition(env.Ctx, task.ID, domain.StatusDone, "alice")
	var approval engine.ApprovalRequiredError
	if !errors.As(err, &approval) {
		t.Fatalf("expected approval gate, got %v", err)
	}
}

func TestAssigneeTransitionRights(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.AddWorkspaceMember(env.Ctx, "ws-1", "alice", domain.RoleViewer, "tester"); err != nil {
		t.Fatal(err)
	}
	task := env.createTask(t, "Assigned work")
	if _, err := env.Engine.SetAssignee(env.Ctx, task.ID, strPtr("alice"), "tester"); err != nil {
		t.Fatal(err)
	}

	// the assignee cannot start the task, only advance it through review
	_, err := env.Engine.AttemptTransition(env.Ctx, task.ID, domain.StatusInProgress, "alice")
	var invalid engine.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected restricted transition, got %v", err)
	}
	env.mustTransition(t, task.ID, domain.StatusInProgress, "tester")
	if _, err := env.Engine.AttemptTransition(env.Ctx, task.ID, domain.StatusReview, "alice"); err != nil {
		t.Fatalf("assignee to review: %v", err)
	}

	// a bystander with no role and no assignment is rejected outright
	_, err = env.Engine.AttemptTransition(env.Ctx, task.ID, domain.StatusInProgress, "stranger")
	var unauthorized engine.UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestViewerCannotCreateTasks(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.AddProjectMember(env.Ctx, "proj-1", "bob", domain.RoleViewer, "tester"); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-1", Title: "nope", ActorID: "bob"})
	var unauthorized engine.UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestAssigneeMustBeWorkspaceMember(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID:  "proj-1",
		Title:      "bad assignee",
		AssigneeID: "ghost",
		ActorID:    "tester",
	})
	var invalid engine.InvalidAssigneeError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected invalid assignee, got %v", err)
	}
	task := env.createTask(t, "reassign me")
	_, err = env.Engine.SetAssignee(env.Ctx, task.ID, strPtr("ghost"), "tester")
	if !errors.As(err, &invalid) {
		t.Fatalf("expected invalid assignee on set, got %v", err)
	}
}

func TestDependencyGating(t *testing.T) {
	env := newTestEnv(t)
	dep := env.createTask(t, "dep")
	task := env.createTask(t, "main", dep.ID)

	_, err := env.Engine.AttemptTransition(env.Ctx, task.ID, domain.StatusInProgress, "tester")
	var blocked engine.BlockedByDependencyError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected dependency blocking, got %v", err)
	}
	if blocked.Total != 1 || len(blocked.Titles) != 1 || blocked.Titles[0] != "dep" {
		t.Fatalf("unexpected blocker detail: %+v", blocked)
	}

	open, err := env.Engine.OpenPrerequisites(env.Ctx, task.ID)
	if err != nil || len(open) != 1 {
		t.Fatalf("open prerequisites = %d err=%v", len(open), err)
	}

	// finish the dependency then allow
	env.mustTransition(t, dep.ID, domain.StatusInProgress, "tester")
	env.mustTransition(t, dep.ID, domain.StatusReview, "tester")
	if _, err := env.Engine.AddComment(env.Ctx, dep.ID, "approved", "tester"); err != nil {
		t.Fatal(err)
	}
	env.mustTransition(t, dep.ID, domain.StatusDone, "tester")
	if _, err := env.Engine.AttemptTransition(env.Ctx, task.ID, domain.StatusInProgress, "tester"); err != nil {
		t.Fatalf("expected start after deps complete: %v", err)
	}
}

func TestBlockerMessageCapsTitles(t *testing.T) {
	env := newTestEnv(t)
	deps := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		deps = append(deps, env.createTask(t, fmt.Sprintf("blocker %d", i)).ID)
	}
	task := env.createTask(t, "gated", deps...)

	_, err := env.Engine.AttemptTransition(env.Ctx, task.ID, domain.StatusInProgress, "tester")
	var blocked engine.BlockedByDependencyError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected dependency blocking, got %v", err)
	}
	if blocked.Total != 4 || len(blocked.Titles) != 3 {
		t.Fatalf("expected 3 of 4 titles, got %+v", blocked)
	}
}

func TestDependencyValidation(t *testing.T) {
	env := newTestEnv(t)
	a := env.createTask(t, "a")
	b := env.createTask(t, "b")
	c := env.createTask(t, "c")

	var selfErr engine.SelfDependencyError
	if err := env.Engine.InsertDependency(env.Ctx, a.ID, a.ID, "tester"); !errors.As(err, &selfErr) {
		t.Fatalf("expected self dependency error, got %v", err)
	}

	if _, err := env.Engine.CreateProject(env.Ctx, "proj-2", "ws-1", "Other", "", "tester"); err != nil {
		t.Fatal(err)
	}
	other, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "proj-2", Title: "elsewhere", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	var crossErr engine.CrossProjectDependencyError
	if err := env.Engine.InsertDependency(env.Ctx, a.ID, other.ID, "tester"); !errors.As(err, &crossErr) {
		t.Fatalf("expected cross project error, got %v", err)
	}

	// a -> b -> c, then c -> a closes the loop
	if err := env.Engine.InsertDependency(env.Ctx, a.ID, b.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.InsertDependency(env.Ctx, b.ID, c.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	var cycleErr engine.CircularDependencyError
	if err := env.Engine.InsertDependency(env.Ctx, c.ID, a.ID, "tester"); !errors.As(err, &cycleErr) {
		t.Fatalf("expected cycle error, got %v", err)
	}

	// duplicate edge is a no-op success
	if err := env.Engine.InsertDependency(env.Ctx, a.ID, b.ID, "tester"); err != nil {
		t.Fatalf("duplicate edge: %v", err)
	}

	removed, err := env.Engine.RemoveDependency(env.Ctx, a.ID, b.ID, "tester")
	if err != nil || !removed {
		t.Fatalf("remove edge: removed=%v err=%v", removed, err)
	}
	removed, err = env.Engine.RemoveDependency(env.Ctx, a.ID, b.ID, "tester")
	if err != nil || removed {
		t.Fatalf("second remove: removed=%v err=%v", removed, err)
	}
}

func TestConcurrentCycleInsertion(t *testing.T) {
	env := newTestEnv(t)
	a := env.createTask(t, "racer a")
	b := env.createTask(t, "racer b")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = env.Engine.InsertDependency(env.Ctx, a.ID, b.ID, "tester")
	}()
	go func() {
		defer wg.Done()
		errs[1] = env.Engine.InsertDependency(env.Ctx, b.ID, a.ID, "tester")
	}()
	wg.Wait()

	var cycleErr engine.CircularDependencyError
	cycles := 0
	for _, err := range errs {
		if errors.As(err, &cycleErr) {
			cycles++
		} else if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if cycles != 1 {
		t.Fatalf("expected exactly one cycle rejection, got %d", cycles)
	}
}

func TestActivityTrail(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, "audited")
	env.mustTransition(t, task.ID, domain.StatusInProgress, "tester")

	items, err := env.Engine.Repo.LatestActivities(env.Ctx, 50, 0, "ws-1", "")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	actions := make(map[string]bool)
	for _, a := range items {
		actions[a.Action] = true
		// Activity timestamps follow the same clock as the mutated rows.
		if a.TS != "2026-01-01T00:00:00Z" {
			t.Fatalf("activity %s ts = %q", a.Action, a.TS)
		}
	}
	for _, want := range []string{"workspace.created", "project.created", "task.created", "task.status_changed"} {
		if !actions[want] {
			t.Fatalf("missing activity %q in %v", want, actions)
		}
	}

	filtered, err := env.Engine.Repo.LatestActivities(env.Ctx, 50, 0, "ws-1", "task.status_changed")
	if err != nil || len(filtered) != 1 {
		t.Fatalf("filtered = %d err=%v", len(filtered), err)
	}
}

func strPtr(s string) *string { return &s }
