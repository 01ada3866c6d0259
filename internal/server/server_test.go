package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"trackline/internal/db"
	"trackline/internal/engine"
	"trackline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Dir: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, nil)
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth: AuthConfig{
			JWTSecret:              "test-secret",
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if headers == nil {
		req.Header.Set("X-Actor-Id", "tester")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return payload.Error.Code
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/workspaces", map[string]any{
		"id": "ws-1", "name": "Acme",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create workspace: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/workspaces/ws-1/projects", map[string]any{
		"id": "proj-1", "name": "Launch",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/proj-1/tasks", map[string]any{
		"title": "Ship feature",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", res.StatusCode, string(data))
	}
	var task TaskResponse
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task.Status != "todo" {
		t.Fatalf("task status = %q", task.Status)
	}

	// grant a reviewer so approval can come from a second account
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v1/projects/proj-1/members/reviewer", map[string]any{
		"role": "member",
	}, nil)
	if res.StatusCode >= 300 {
		t.Fatalf("add member: %d %s", res.StatusCode, string(data))
	}

	for _, status := range []string{"in_progress", "review"} {
		res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/tasks/"+task.ID+"/status", map[string]any{
			"status": status,
		}, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("to %s: %d %s", status, res.StatusCode, string(data))
		}
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/tasks/"+task.ID+"/status", map[string]any{
		"status": "done",
	}, nil)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "approval_required" {
		t.Fatalf("expected approval_required, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks/"+task.ID+"/comments", map[string]any{
		"body": "lgtm",
	}, map[string]string{"X-Actor-Id": "reviewer"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("comment: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/tasks/"+task.ID+"/decision", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("decision: %d %s", res.StatusCode, string(data))
	}
	var decision DecisionResponse
	_ = json.Unmarshal(data, &decision)
	if !decision.Present || decision.Kind != "approved" {
		t.Fatalf("decision = %+v", decision)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/tasks/"+task.ID+"/status", map[string]any{
		"status": "done",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("done: %d %s", res.StatusCode, string(data))
	}
	var done TaskResponse
	_ = json.Unmarshal(data, &done)
	if done.Status != "done" || done.CompletedAt == nil {
		t.Fatalf("done task = %+v", done)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/workspaces/ws-1/activities?action=task.status_changed", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activities: %d %s", res.StatusCode, string(data))
	}
	var page paginatedActivities
	_ = json.Unmarshal(data, &page)
	if len(page.Items) != 3 {
		t.Fatalf("expected 3 status changes, got %d", len(page.Items))
	}
}

func TestDependencyEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	doJSON(t, client, http.MethodPost, srv.URL+"/v1/workspaces", map[string]any{"id": "ws-1", "name": "Acme"}, nil)
	doJSON(t, client, http.MethodPost, srv.URL+"/v1/workspaces/ws-1/projects", map[string]any{"id": "proj-1", "name": "Launch"}, nil)

	ids := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/proj-1/tasks", map[string]any{
			"title": fmt.Sprintf("task %d", i),
		}, nil)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create task: %d %s", res.StatusCode, string(data))
		}
		var task TaskResponse
		_ = json.Unmarshal(data, &task)
		ids = append(ids, task.ID)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks/"+ids[1]+"/dependencies", map[string]any{
		"depends_on_task_id": ids[0],
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add dependency: %d %s", res.StatusCode, string(data))
	}

	// the reverse edge closes a cycle
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks/"+ids[0]+"/dependencies", map[string]any{
		"depends_on_task_id": ids[1],
	}, nil)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "circular_dependency" {
		t.Fatalf("expected circular_dependency, got %d %s", res.StatusCode, string(data))
	}

	// starting the dependent task is blocked
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/tasks/"+ids[1]+"/status", map[string]any{
		"status": "in_progress",
	}, nil)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "blocked_by_dependency" {
		t.Fatalf("expected blocked_by_dependency, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/tasks/"+ids[1]+"/blockers", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("blockers: %d %s", res.StatusCode, string(data))
	}
	var blockers []TaskResponse
	_ = json.Unmarshal(data, &blockers)
	if len(blockers) != 1 || blockers[0].ID != ids[0] {
		t.Fatalf("blockers = %+v", blockers)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v1/tasks/"+ids[1]+"/dependencies/"+ids[0], nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("remove dependency: %d %s", res.StatusCode, string(data))
	}
	var removal map[string]bool
	_ = json.Unmarshal(data, &removal)
	if !removal["removed"] {
		t.Fatalf("expected removed=true, got %v", removal)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v1/tasks/"+ids[1]+"/dependencies/"+ids[0], nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("second remove: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &removal)
	if removal["removed"] {
		t.Fatalf("expected removed=false on repeat")
	}
}

func TestAuthenticationPaths(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	// no credentials at all
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/workspaces", nil)
	res, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}

	// health stays open
	res, err = client.Get(srv.URL + "/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d", res.StatusCode)
	}

	// dev login mints a usable bearer token without prior auth
	loginRes, loginData := doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{
		"actor_id": "alice",
	}, map[string]string{})
	if loginRes.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", loginRes.StatusCode, string(loginData))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(loginData, &login); err != nil || login.Token == "" {
		t.Fatalf("unmarshal login: %v %s", err, string(loginData))
	}

	meRes, meData := doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if meRes.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", meRes.StatusCode, string(meData))
	}
	var me WhoAmIResponse
	_ = json.Unmarshal(meData, &me)
	if me.ActorID != "alice" || me.Source != "jwt" {
		t.Fatalf("me = %+v", me)
	}

	// a garbage bearer token is rejected
	badRes, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if badRes.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", badRes.StatusCode)
	}
}

func TestAPIKeyAuthentication(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/apikeys", map[string]any{
		"actor_id": "robot",
		"name":     "ci",
		"key":      "s3cret-key-value",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create api key: %d %s", res.StatusCode, string(data))
	}

	meRes, meData := doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{
		"X-Api-Key": "s3cret-key-value",
	})
	if meRes.StatusCode != http.StatusOK {
		t.Fatalf("me via api key: %d %s", meRes.StatusCode, string(meData))
	}
	var me WhoAmIResponse
	_ = json.Unmarshal(meData, &me)
	if me.ActorID != "robot" || me.Source != "api_key" {
		t.Fatalf("me = %+v", me)
	}

	wrongRes, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{
		"X-Api-Key": "wrong",
	})
	if wrongRes.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown key, got %d", wrongRes.StatusCode)
	}
}

func TestForbiddenForOutsiders(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	doJSON(t, client, http.MethodPost, srv.URL+"/v1/workspaces", map[string]any{"id": "ws-1", "name": "Acme"}, nil)
	doJSON(t, client, http.MethodPost, srv.URL+"/v1/workspaces/ws-1/projects", map[string]any{"id": "proj-1", "name": "Launch"}, nil)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects/proj-1", nil, map[string]string{
		"X-Actor-Id": "outsider",
	})
	if res.StatusCode != http.StatusForbidden || errorCode(t, data) != "forbidden" {
		t.Fatalf("expected forbidden, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/proj-1/tasks", map[string]any{
		"title": "sneaky",
	}, map[string]string{"X-Actor-Id": "outsider"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected forbidden create, got %d %s", res.StatusCode, string(data))
	}
}

func TestInternalErrorsStayOpaque(t *testing.T) {
	raw := "dial tcp 127.0.0.1:5432: connect: connection refused"
	statusErr := handleError(errors.New(raw))
	apiErr, ok := statusErr.(*apiError)
	if !ok {
		t.Fatalf("unexpected error type %T", statusErr)
	}
	if apiErr.GetStatus() != http.StatusInternalServerError {
		t.Fatalf("status = %d", apiErr.GetStatus())
	}
	if apiErr.Body.Code != "internal_error" || apiErr.Body.Message != "internal error" {
		t.Fatalf("body = %+v", apiErr.Body)
	}
	if apiErr.Body.Details != nil {
		t.Fatalf("details leaked: %v", apiErr.Body.Details)
	}
	encoded, err := json.Marshal(apiErr)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(encoded, []byte("dial tcp")) {
		t.Fatalf("response carries raw error text: %s", encoded)
	}
}
