package tracklinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Trackline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Workspace represents the API workspace model.
type Workspace struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"owner_id"`
	CreatedAt string `json:"created_at"`
}

// Project represents the API project model.
type Project struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// Task represents the API task model.
type Task struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"project_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    *int     `json:"priority,omitempty"`
	AssigneeID  *string  `json:"assignee_id,omitempty"`
	DueDate     *string  `json:"due_date,omitempty"`
	DependsOn   []string `json:"depends_on"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	CompletedAt *string  `json:"completed_at,omitempty"`
}

// Comment represents a task comment.
type Comment struct {
	ID        int64  `json:"id"`
	TaskID    string `json:"task_id"`
	AuthorID  string `json:"author_id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

// Decision is the governing review decision for a task.
type Decision struct {
	Kind      string `json:"kind"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at"`
	Present   bool   `json:"present"`
}

// Activity represents a log entry.
type Activity struct {
	ID          int64          `json:"id"`
	TS          string         `json:"ts"`
	Action      string         `json:"action"`
	TargetID    string         `json:"target_id,omitempty"`
	ActorID     string         `json:"actor_id"`
	WorkspaceID string         `json:"workspace_id,omitempty"`
	Metadata    map[string]any `json:"metadata"`
}

// Member represents a workspace or project membership.
type Member struct {
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
	AddedAt string `json:"added_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedTasks wraps task list responses with cursors.
type PaginatedTasks struct {
	Items      []Task `json:"items"`
	NextCursor string `json:"next_cursor"`
}

// PaginatedActivities wraps activity list responses with cursors.
type PaginatedActivities struct {
	Items      []Activity `json:"items"`
	NextCursor string     `json:"next_cursor"`
}

// CreateWorkspace creates a workspace.
func (c *Client) CreateWorkspace(ctx context.Context, name string) (Workspace, error) {
	body := map[string]any{"name": name}
	var resp Workspace
	err := c.do(ctx, http.MethodPost, "workspaces", body, &resp)
	return resp, err
}

// CreateProject creates a project inside a workspace.
func (c *Client) CreateProject(ctx context.Context, workspaceID, name, description string) (Project, error) {
	body := map[string]any{"name": name}
	if description != "" {
		body["description"] = description
	}
	var resp Project
	endpoint := fmt.Sprintf("workspaces/%s/projects", url.PathEscape(workspaceID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// CreateTask creates a task in a project.
func (c *Client) CreateTask(ctx context.Context, projectID, title string) (Task, error) {
	body := map[string]any{"title": title}
	var resp Task
	endpoint := fmt.Sprintf("projects/%s/tasks", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// SetTaskStatus requests a status transition.
func (c *Client) SetTaskStatus(ctx context.Context, taskID, status string) (Task, error) {
	body := map[string]any{"status": status}
	var resp Task
	endpoint := fmt.Sprintf("tasks/%s/status", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

// SetTaskAssignee assigns the task; pass nil to clear.
func (c *Client) SetTaskAssignee(ctx context.Context, taskID string, assigneeID *string) (Task, error) {
	body := map[string]any{"assignee_id": assigneeID}
	var resp Task
	endpoint := fmt.Sprintf("tasks/%s/assignee", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

// AddDependency adds a prerequisite edge.
func (c *Client) AddDependency(ctx context.Context, taskID, dependsOnTaskID string) (Task, error) {
	body := map[string]any{"depends_on_task_id": dependsOnTaskID}
	var resp Task
	endpoint := fmt.Sprintf("tasks/%s/dependencies", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// RemoveDependency removes a prerequisite edge. Reports whether it existed.
func (c *Client) RemoveDependency(ctx context.Context, taskID, dependsOnTaskID string) (bool, error) {
	var resp struct {
		Removed bool `json:"removed"`
	}
	endpoint := fmt.Sprintf("tasks/%s/dependencies/%s", url.PathEscape(taskID), url.PathEscape(dependsOnTaskID))
	err := c.do(ctx, http.MethodDelete, endpoint, nil, &resp)
	return resp.Removed, err
}

// Blockers returns the unfinished direct prerequisites of a task.
func (c *Client) Blockers(ctx context.Context, taskID string) ([]Task, error) {
	var resp struct {
		Items []Task `json:"items"`
	}
	endpoint := fmt.Sprintf("tasks/%s/blockers", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// AddComment posts a comment on a task.
func (c *Client) AddComment(ctx context.Context, taskID, body string) (Comment, error) {
	payload := map[string]any{"body": body}
	var resp Comment
	endpoint := fmt.Sprintf("tasks/%s/comments", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, payload, &resp)
	return resp, err
}

// TaskDecision returns the governing review decision for a task.
func (c *Client) TaskDecision(ctx context.Context, taskID string) (Decision, error) {
	var resp Decision
	endpoint := fmt.Sprintf("tasks/%s/decision", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Tasks returns tasks in a project, optionally filtered by status.
func (c *Client) Tasks(ctx context.Context, projectID, status string, limit int) ([]Task, error) {
	page, err := c.TasksPage(ctx, projectID, status, limit, "")
	return page.Items, err
}

// TasksPage returns a paginated task listing.
func (c *Client) TasksPage(ctx context.Context, projectID, status string, limit int, cursor string) (PaginatedTasks, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := fmt.Sprintf("projects/%s/tasks", url.PathEscape(projectID))
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp PaginatedTasks
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Activities returns recent workspace activities.
func (c *Client) Activities(ctx context.Context, workspaceID string, limit int) ([]Activity, error) {
	page, err := c.ActivitiesPage(ctx, workspaceID, "", limit, "")
	return page.Items, err
}

// ActivitiesPage returns a paginated activity listing, optionally filtered by action.
func (c *Client) ActivitiesPage(ctx context.Context, workspaceID, action string, limit int, cursor string) (PaginatedActivities, error) {
	q := url.Values{}
	if action != "" {
		q.Set("action", action)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := fmt.Sprintf("workspaces/%s/activities", url.PathEscape(workspaceID))
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp PaginatedActivities
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SetWorkspaceMember adds or updates a workspace membership.
func (c *Client) SetWorkspaceMember(ctx context.Context, workspaceID, userID, role string) error {
	body := map[string]any{"role": role}
	endpoint := fmt.Sprintf("workspaces/%s/members/%s", url.PathEscape(workspaceID), url.PathEscape(userID))
	return c.do(ctx, http.MethodPut, endpoint, body, nil)
}

// SetProjectMember adds or updates a project membership.
func (c *Client) SetProjectMember(ctx context.Context, projectID, userID, role string) error {
	body := map[string]any{"role": role}
	endpoint := fmt.Sprintf("projects/%s/members/%s", url.PathEscape(projectID), url.PathEscape(userID))
	return c.do(ctx, http.MethodPut, endpoint, body, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
