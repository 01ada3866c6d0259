package server

import (
	"encoding/json"

	"trackline/internal/domain"
	"trackline/internal/engine/review"
)

// Request payloads

type CreateWorkspaceRequest struct {
	ID      *string `json:"id,omitempty"`
	Name    string  `json:"name"`
	OwnerID *string `json:"owner_id,omitempty"`
}

type SetMemberRequest struct {
	Role string `json:"role" enum:"admin,member,viewer"`
}

type CreateProjectRequest struct {
	ID          *string `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type CreateTaskRequest struct {
	ID          *string  `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Priority    *int     `json:"priority,omitempty"`
	AssigneeID  *string  `json:"assignee_id,omitempty"`
	DueDate     *string  `json:"due_date,omitempty" format:"date-time"`
	DependsOn   []string `json:"depends_on,omitempty"`
}

type SetTaskStatusRequest struct {
	Status string `json:"status" enum:"todo,in_progress,review,done"`
}

type SetTaskAssigneeRequest struct {
	AssigneeID *string `json:"assignee_id"`
}

type AddDependencyRequest struct {
	DependsOnTaskID string `json:"depends_on_task_id"`
}

type AddCommentRequest struct {
	Body string `json:"body"`
}

type CreateAPIKeyRequest struct {
	ID      *string `json:"id,omitempty"`
	ActorID string  `json:"actor_id"`
	Name    *string `json:"name,omitempty"`
	Key     string  `json:"key"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type WorkspaceResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"owner_id"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type MemberResponse struct {
	UserID  string `json:"user_id"`
	Role    string `json:"role" enum:"admin,member,viewer"`
	AddedAt string `json:"added_at" format:"date-time"`
}

type ProjectResponse struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type TaskResponse struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"project_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status" enum:"todo,in_progress,review,done"`
	Priority    *int     `json:"priority,omitempty"`
	AssigneeID  *string  `json:"assignee_id,omitempty"`
	DueDate     *string  `json:"due_date,omitempty" format:"date-time"`
	DependsOn   []string `json:"depends_on"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
	CompletedAt *string  `json:"completed_at,omitempty" format:"date-time"`
}

type CommentResponse struct {
	ID        int64  `json:"id"`
	TaskID    string `json:"task_id"`
	AuthorID  string `json:"author_id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type DecisionResponse struct {
	Kind      string `json:"kind,omitempty" enum:"approved,changes_requested"`
	AuthorID  string `json:"author_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty" format:"date-time"`
	Present   bool   `json:"present"`
}

type RoleResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty" enum:"owner,admin,member,viewer"`
	Member bool   `json:"member"`
}

type ActivityResponse struct {
	ID          int64          `json:"id"`
	TS          string         `json:"ts" format:"date-time"`
	Action      string         `json:"action"`
	TargetID    string         `json:"target_id,omitempty"`
	ActorID     string         `json:"actor_id"`
	WorkspaceID string         `json:"workspace_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	Source  string `json:"source"`
}

type paginatedTasks struct {
	Items      []TaskResponse `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type paginatedActivities struct {
	Items      []ActivityResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

func workspaceResponse(w domain.Workspace) WorkspaceResponse {
	return WorkspaceResponse{ID: w.ID, Name: w.Name, OwnerID: w.OwnerID, CreatedAt: w.CreatedAt}
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		WorkspaceID: p.WorkspaceID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}

func taskResponse(t domain.Task) TaskResponse {
	deps := t.DependsOn
	if deps == nil {
		deps = []string{}
	}
	return TaskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		AssigneeID:  t.AssigneeID,
		DueDate:     t.DueDate,
		DependsOn:   deps,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CompletedAt: t.CompletedAt,
	}
}

func commentResponse(c domain.Comment) CommentResponse {
	return CommentResponse{ID: c.ID, TaskID: c.TaskID, AuthorID: c.AuthorID, Body: c.Body, CreatedAt: c.CreatedAt}
}

func decisionResponse(d review.Decision, present bool) DecisionResponse {
	if !present {
		return DecisionResponse{Present: false}
	}
	return DecisionResponse{Kind: string(d.Kind), AuthorID: d.AuthorID, CreatedAt: d.CreatedAt, Present: true}
}

func activityResponse(a domain.Activity) ActivityResponse {
	resp := ActivityResponse{
		ID:          a.ID,
		TS:          a.TS,
		Action:      a.Action,
		TargetID:    a.TargetID,
		ActorID:     a.ActorID,
		WorkspaceID: a.WorkspaceID,
	}
	if a.Metadata != "" {
		var meta map[string]any
		if err := json.Unmarshal([]byte(a.Metadata), &meta); err == nil {
			resp.Metadata = meta
		}
	}
	return resp
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, ActorID: k.ActorID, Name: k.Name, CreatedAt: k.CreatedAt}
}

func mapTasks(items []domain.Task) []TaskResponse {
	res := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		res = append(res, taskResponse(t))
	}
	return res
}

func mapComments(items []domain.Comment) []CommentResponse {
	res := make([]CommentResponse, 0, len(items))
	for _, c := range items {
		res = append(res, commentResponse(c))
	}
	return res
}

func mapMembers(items []domain.WorkspaceMember) []MemberResponse {
	res := make([]MemberResponse, 0, len(items))
	for _, m := range items {
		res = append(res, MemberResponse{UserID: m.UserID, Role: m.Role, AddedAt: m.AddedAt})
	}
	return res
}

func mapProjectMembers(items []domain.ProjectMember) []MemberResponse {
	res := make([]MemberResponse, 0, len(items))
	for _, m := range items {
		res = append(res, MemberResponse{UserID: m.UserID, Role: m.Role, AddedAt: m.AddedAt})
	}
	return res
}

func mapProjects(items []domain.Project) []ProjectResponse {
	res := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		res = append(res, projectResponse(p))
	}
	return res
}

func mapWorkspaces(items []domain.Workspace) []WorkspaceResponse {
	res := make([]WorkspaceResponse, 0, len(items))
	for _, w := range items {
		res = append(res, workspaceResponse(w))
	}
	return res
}

func mapActivities(items []domain.Activity) []ActivityResponse {
	res := make([]ActivityResponse, 0, len(items))
	for _, a := range items {
		res = append(res, activityResponse(a))
	}
	return res
}
