package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/taskledger/core/internal/adapters/storage/file"
	"github.com/taskledger/core/internal/infrastructure/config"
	"github.com/taskledger/core/internal/infrastructure/logger"
)

func testConfig(t *testing.T, sessionTTL time.Duration) *config.Config {
	t.Helper()
	return &config.Config{
		App: config.AppConfig{
			Name:        "TaskLedger",
			Version:     "test",
			Environment: "development",
		},
		Server: config.ServerConfig{
			Port:         3000,
			Host:         "127.0.0.1",
			PublicDir:    t.TempDir(),
			ProtectedDir: t.TempDir(),
		},
		Storage: config.StorageConfig{
			Driver:   config.DriverFile,
			FilePath: filepath.Join(t.TempDir(), "database.json"),
		},
		Session: config.SessionConfig{
			CookieName: "session",
			TTL:        sessionTTL,
		},
		Security: config.SecurityConfig{
			CORSAllowedOrigins: "*",
			RateLimitRequests:  1000,
			RateLimitWindow:    time.Minute,
		},
		Metrics: config.MetricsConfig{Enabled: false},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	store := file.New(cfg.Storage.FilePath)
	health := StorageHealth{
		Check: func() error {
			_, err := store.Load()
			return err
		},
		Info: func() map[string]interface{} {
			return map[string]interface{}{
				"driver":    config.DriverFile,
				"file_path": cfg.Storage.FilePath,
			}
		},
	}
	srv, err := New(cfg, file.NewUserRepository(store), file.NewTaskRepository(store), health, logger.Nop())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return srv
}

func do(srv *Server, method, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, srv *Server, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	return do(srv, http.MethodPost, "/register", url.Values{
		"username": {username},
		"password": {password},
	}, nil)
}

func login(t *testing.T, srv *Server, username, password string) *http.Cookie {
	t.Helper()

	rec := do(srv, http.MethodPost, "/login", url.Values{
		"username": {username},
		"password": {password},
	}, nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("login for %s: expected 302, got %d (%s)", username, rec.Code, rec.Body.String())
	}

	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" && c.Value != "" {
			return c
		}
	}
	t.Fatalf("login for %s: no session cookie set", username)
	return nil
}

func listTasks(t *testing.T, srv *Server, cookie *http.Cookie) []map[string]interface{} {
	t.Helper()

	rec := do(srv, http.MethodGet, "/tasks", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("list tasks: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var tasks []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return tasks
}

func TestServer_RegisterLoginTaskFlow(t *testing.T) {
	srv := newTestServer(t, testConfig(t, time.Hour))

	if rec := register(t, srv, "alice", "pw1"); rec.Code != http.StatusCreated {
		t.Fatalf("register alice: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec := register(t, srv, "bob", "pw2"); rec.Code != http.StatusCreated {
		t.Fatalf("register bob: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	if rec := register(t, srv, "alice", "other"); rec.Code != http.StatusBadRequest || rec.Body.String() != "User already exists" {
		t.Errorf("duplicate register: expected 400 User already exists, got %d %q", rec.Code, rec.Body.String())
	}

	// Wrong password and unknown user must be indistinguishable.
	wrongPw := do(srv, http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"nope"}}, nil)
	unknown := do(srv, http.MethodPost, "/login", url.Values{"username": {"ghost"}, "password": {"nope"}}, nil)
	if wrongPw.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for both failed logins, got %d and %d", wrongPw.Code, unknown.Code)
	}
	if wrongPw.Body.String() != "Invalid credentials" || wrongPw.Body.String() != unknown.Body.String() {
		t.Errorf("failed logins must share the same body, got %q and %q", wrongPw.Body.String(), unknown.Body.String())
	}

	aliceCookie := login(t, srv, "alice", "pw1")

	if rec := do(srv, http.MethodPost, "/add", url.Values{"task": {"buy milk"}}, aliceCookie); rec.Code != http.StatusFound {
		t.Fatalf("add task: expected 302, got %d (%s)", rec.Code, rec.Body.String())
	}

	tasks := listTasks(t, srv, aliceCookie)
	if len(tasks) != 1 || tasks[0]["task"] != "buy milk" || tasks[0]["user"] != "alice" {
		t.Fatalf("unexpected task list: %v", tasks)
	}
	id := strconv.FormatInt(int64(tasks[0]["id"].(float64)), 10)

	bobCookie := login(t, srv, "bob", "pw2")
	if tasks := listTasks(t, srv, bobCookie); len(tasks) != 0 {
		t.Errorf("bob's task list should be empty, got %v", tasks)
	}

	// No ownership check: bob may delete alice's task.
	if rec := do(srv, http.MethodDelete, "/tasks/"+id, nil, bobCookie); rec.Code != http.StatusOK || rec.Body.String() != "Task deleted" {
		t.Errorf("cross-owner delete: expected 200 Task deleted, got %d %q", rec.Code, rec.Body.String())
	}

	if tasks := listTasks(t, srv, aliceCookie); len(tasks) != 0 {
		t.Errorf("alice's task should be gone, got %v", tasks)
	}

	// Deleting the same id again still reports success.
	if rec := do(srv, http.MethodDelete, "/tasks/"+id, nil, bobCookie); rec.Code != http.StatusOK || rec.Body.String() != "Task deleted" {
		t.Errorf("repeat delete: expected 200 Task deleted, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestServer_ProtectedRoutesRequireSession(t *testing.T) {
	srv := newTestServer(t, testConfig(t, time.Hour))

	requests := []struct {
		method string
		target string
		form   url.Values
	}{
		{http.MethodGet, "/tasks", nil},
		{http.MethodPost, "/add", url.Values{"task": {"x"}}},
		{http.MethodDelete, "/tasks/1", nil},
		{http.MethodGet, "/dashboard", nil},
	}

	for _, r := range requests {
		// No cookie at all.
		if rec := do(srv, r.method, r.target, r.form, nil); rec.Code != http.StatusUnauthorized || rec.Body.String() != "Unauthorized" {
			t.Errorf("%s %s without cookie: expected 401 Unauthorized, got %d %q", r.method, r.target, rec.Code, rec.Body.String())
		}

		// A cookie naming a session that does not exist.
		bogus := &http.Cookie{Name: "session", Value: "not-a-session"}
		if rec := do(srv, r.method, r.target, r.form, bogus); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s with bogus cookie: expected 401, got %d", r.method, r.target, rec.Code)
		}
	}
}

func TestServer_StorageFailureIsNotAuthFailure(t *testing.T) {
	cfg := testConfig(t, time.Hour)
	srv := newTestServer(t, cfg)

	if rec := register(t, srv, "alice", "pw1"); rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", rec.Code)
	}
	cookie := login(t, srv, "alice", "pw1")

	good, err := os.ReadFile(cfg.Storage.FilePath)
	if err != nil {
		t.Fatalf("failed to read data file: %v", err)
	}

	// Corrupt the data file: protected requests must fail as server errors,
	// not as auth failures.
	if err := os.WriteFile(cfg.Storage.FilePath, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to corrupt data file: %v", err)
	}

	rec := do(srv, http.MethodGet, "/tasks", nil, cookie)
	if rec.Code != http.StatusInternalServerError || rec.Body.String() != "Server error" {
		t.Errorf("corrupt storage: expected 500 Server error, got %d %q", rec.Code, rec.Body.String())
	}

	// Once storage recovers the same session works again; the failure did
	// not log the user out.
	if err := os.WriteFile(cfg.Storage.FilePath, good, 0644); err != nil {
		t.Fatalf("failed to restore data file: %v", err)
	}

	if rec := do(srv, http.MethodGet, "/tasks", nil, cookie); rec.Code != http.StatusOK {
		t.Errorf("after recovery: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestServer_SessionExpiry(t *testing.T) {
	srv := newTestServer(t, testConfig(t, 150*time.Millisecond))

	if rec := register(t, srv, "alice", "pw1"); rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", rec.Code)
	}
	cookie := login(t, srv, "alice", "pw1")

	if rec := do(srv, http.MethodGet, "/tasks", nil, cookie); rec.Code != http.StatusOK {
		t.Fatalf("fresh session: expected 200, got %d", rec.Code)
	}

	time.Sleep(200 * time.Millisecond)

	if rec := do(srv, http.MethodGet, "/tasks", nil, cookie); rec.Code != http.StatusUnauthorized {
		t.Errorf("expired session: expected 401, got %d", rec.Code)
	}
}

func TestServer_LogoutInvalidatesSession(t *testing.T) {
	srv := newTestServer(t, testConfig(t, time.Hour))

	if rec := register(t, srv, "alice", "pw1"); rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", rec.Code)
	}
	cookie := login(t, srv, "alice", "pw1")

	rec := do(srv, http.MethodGet, "/logout", nil, cookie)
	if rec.Code != http.StatusFound {
		t.Fatalf("logout: expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/public/login.html" {
		t.Errorf("logout: unexpected redirect target %q", loc)
	}

	// The old token is dead server-side even if the client kept the cookie.
	if rec := do(srv, http.MethodGet, "/tasks", nil, cookie); rec.Code != http.StatusUnauthorized {
		t.Errorf("after logout: expected 401, got %d", rec.Code)
	}
}

func TestServer_HomeRedirects(t *testing.T) {
	srv := newTestServer(t, testConfig(t, time.Hour))

	if rec := do(srv, http.MethodGet, "/", nil, nil); rec.Header().Get("Location") != "/public/login.html" {
		t.Errorf("anonymous /: expected redirect to login page, got %q", rec.Header().Get("Location"))
	}

	if rec := register(t, srv, "alice", "pw1"); rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", rec.Code)
	}
	cookie := login(t, srv, "alice", "pw1")

	if rec := do(srv, http.MethodGet, "/", nil, cookie); rec.Header().Get("Location") != "/protected/index.html" {
		t.Errorf("authenticated /: expected redirect to index page, got %q", rec.Header().Get("Location"))
	}

	if rec := do(srv, http.MethodGet, "/dashboard", nil, cookie); rec.Header().Get("Location") != "/protected/dashboard.html" {
		t.Errorf("/dashboard: expected redirect to dashboard page, got %q", rec.Header().Get("Location"))
	}
}

func TestServer_HealthAndReadiness(t *testing.T) {
	srv := newTestServer(t, testConfig(t, time.Hour))

	if rec := do(srv, http.MethodGet, "/health", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("/health: expected 200, got %d", rec.Code)
	}

	rec := do(srv, http.MethodGet, "/ready", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("/ready: expected 200, got %d", rec.Code)
	}

	var ready map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &ready); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	storage, ok := ready["storage"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected storage info in readiness payload, got %v", ready)
	}
	if storage["driver"] != config.DriverFile {
		t.Errorf("unexpected storage info: %v", storage)
	}
}

func TestServer_TasksPersistAcrossRestarts(t *testing.T) {
	cfg := testConfig(t, time.Hour)

	srv := newTestServer(t, cfg)
	if rec := register(t, srv, "alice", "pw1"); rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", rec.Code)
	}
	cookie := login(t, srv, "alice", "pw1")
	if rec := do(srv, http.MethodPost, "/add", url.Values{"task": {"buy milk"}}, cookie); rec.Code != http.StatusFound {
		t.Fatalf("add task: expected 302, got %d", rec.Code)
	}

	// A new server over the same data file sees the account and the task.
	// The session does not survive; it was process-local.
	srv2 := newTestServer(t, cfg)
	if rec := do(srv2, http.MethodGet, "/tasks", nil, cookie); rec.Code != http.StatusUnauthorized {
		t.Errorf("old session on new server: expected 401, got %d", rec.Code)
	}

	cookie2 := login(t, srv2, "alice", "pw1")
	tasks := listTasks(t, srv2, cookie2)
	if len(tasks) != 1 || tasks[0]["task"] != "buy milk" {
		t.Errorf("expected persisted task, got %v", tasks)
	}
}
