package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/isdelr/taskdeck/internal/auth"
	"github.com/isdelr/taskdeck/internal/database"
	"github.com/isdelr/taskdeck/internal/identity"
	"github.com/isdelr/taskdeck/internal/models"
	"github.com/isdelr/taskdeck/internal/monitoring"
	"github.com/isdelr/taskdeck/internal/navigation"
	"github.com/isdelr/taskdeck/internal/schema"
	"github.com/isdelr/taskdeck/internal/websocket"
	"golang.org/x/crypto/bcrypt"
)

type fixedStats struct{}

func (fixedStats) Stats() monitoring.StoreStats {
	return monitoring.StoreStats{Path: "taskdeck.db", FileBytes: 4096}
}

func setupTestRouter(t *testing.T) (*httptest.Server, *database.Store) {
	t.Helper()
	return setupRouter(t, func(store *database.Store, _ string) auth.Authenticator {
		return auth.NewLocal(store)
	})
}

// setupRouter serves the router with the embedded identity service. newAuth
// receives the identity base URL once the server is listening.
func setupRouter(t *testing.T, newAuth func(store *database.Store, identityURL string) auth.Authenticator) (*httptest.Server, *database.Store) {
	t.Helper()
	dir := t.TempDir()
	store := database.New(filepath.Join(dir, "taskdeck.db"), schema.Version)

	idDB, err := identity.Open(filepath.Join(dir, "identity.db"))
	if err != nil {
		t.Fatalf("identity.Open() error = %v", err)
	}
	if err := identity.Migrate(idDB); err != nil {
		t.Fatalf("identity.Migrate() error = %v", err)
	}
	idSrv := identity.NewServer(idDB, identity.Options{
		Secret:     []byte("test-secret"),
		Issuer:     "test",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	})

	hub := websocket.NewHub()
	go hub.Run()

	var identityURL string
	router := NewRouter(Deps{
		Store:          store,
		Hub:            hub,
		Stats:          fixedStats{},
		NewAuth:        func() auth.Authenticator { return newAuth(store, identityURL) },
		Navigation:     navigation.Options{OwnerID: 1},
		Identity:       idSrv,
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	ts := httptest.NewServer(router)
	identityURL = ts.URL + "/identity/v1"
	t.Cleanup(func() {
		ts.Close()
		hub.Stop()
		idDB.Close()
	})
	return ts, store
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestTaskRoutes(t *testing.T) {
	ts, _ := setupTestRouter(t)
	base := ts.URL + "/api/v1/tasks"

	resp := do(t, http.MethodPost, base, `{"name":"Report","startDate":"2024-01-01","endDate":"2024-01-31"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /tasks status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created models.Task
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if created.ID != 1 || created.OwnerID == nil || *created.OwnerID != 1 {
		t.Errorf("created = %+v", created)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"Get", http.MethodGet, "/1", "", http.StatusOK},
		{"Get Missing", http.MethodGet, "/99", "", http.StatusNotFound},
		{"Get Bad Id", http.MethodGet, "/abc", "", http.StatusBadRequest},
		{"Update", http.MethodPut, "/1", `{"name":"Report v2"}`, http.StatusOK},
		{"Update Missing", http.MethodPut, "/99", `{"name":"x"}`, http.StatusNotFound},
		{"Update Bad Body", http.MethodPut, "/1", `{`, http.StatusBadRequest},
		{"Delete Missing", http.MethodDelete, "/99", "", http.StatusNotFound},
		{"Delete", http.MethodDelete, "/1", "", http.StatusNoContent},
		{"Delete Again", http.MethodDelete, "/1", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, base+tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.want)
			}
		})
	}

	resp = do(t, http.MethodGet, base, "")
	var tasks []models.Task
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Errorf("GET /tasks = %v, want empty array", tasks)
	}
}

func TestUserRoutes(t *testing.T) {
	ts, _ := setupTestRouter(t)
	base := ts.URL + "/api/v1/users"
	creds := `{"email":"ana@example.com","password":"secret"}`

	if resp := do(t, http.MethodPost, base+"/register", creds); resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if resp := do(t, http.MethodPost, base+"/register", creds); resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	resp := do(t, http.MethodPost, base+"/login", creds)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	if _, ok := body["password"]; ok {
		t.Errorf("login response leaks password: %v", body)
	}

	if resp := do(t, http.MethodPost, base+"/login", `{"email":"ana@example.com","password":"nope"}`); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestServiceRoutes(t *testing.T) {
	ts, _ := setupTestRouter(t)

	resp := do(t, http.MethodGet, ts.URL+"/api/v1/system/stats", "")
	var stats monitoring.StoreStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if stats.FileBytes != 4096 {
		t.Errorf("stats = %+v", stats)
	}

	if resp := do(t, http.MethodGet, ts.URL+"/metrics", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("GET /metrics status = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, ts.URL+"/identity/v1/accounts", `{"email":"ana@example.com","password":"secret"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("POST /identity/v1/accounts status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
}

type sessionConn struct {
	t    *testing.T
	conn *gorilla.Conn
}

func (s *sessionConn) send(action string, payload any) {
	s.t.Helper()
	msg := map[string]any{"action": action}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		s.t.Fatalf("WriteJSON() error = %v", err)
	}
}

// next returns the next message with the given action, skipping others.
func (s *sessionConn) next(action string) json.RawMessage {
	s.t.Helper()
	s.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg websocket.Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			s.t.Fatalf("ReadJSON() waiting for %q error = %v", action, err)
		}
		if msg.Action == action {
			return msg.Payload
		}
	}
}

func (s *sessionConn) state() navigation.State {
	s.t.Helper()
	var st navigation.State
	if err := json.Unmarshal(s.next(websocket.ActionState), &st); err != nil {
		s.t.Fatalf("Unmarshal(state) error = %v", err)
	}
	return st
}

func dialSession(t *testing.T, ts *httptest.Server) *sessionConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/session"
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &sessionConn{t: t, conn: conn}
}

func TestSession(t *testing.T) {
	ts, store := setupTestRouter(t)
	s := dialSession(t, ts)
	creds := map[string]string{"email": "ana@example.com", "password": "secret"}

	if st := s.state(); st.Screen != navigation.LoginScreen {
		t.Fatalf("initial screen = %v, want %v", st.Screen, navigation.LoginScreen)
	}

	s.send("create_task", nil)
	var errMsg string
	json.Unmarshal(s.next(websocket.ActionError), &errMsg)
	if !strings.Contains(errMsg, "not available") {
		t.Errorf("create_task on login error = %q", errMsg)
	}

	s.send("open_register", nil)
	if st := s.state(); st.Screen != navigation.RegisterScreen {
		t.Fatalf("screen = %v, want %v", st.Screen, navigation.RegisterScreen)
	}
	s.send("register", creds)
	s.state()
	s.send("login", creds)
	st := s.state()
	if st.Screen != navigation.TaskListScreen || st.Session == nil {
		t.Fatalf("state after login = %+v", st)
	}

	s.send("create_task", nil)
	s.state()
	s.send("save_task", map[string]string{"name": "Report", "startDate": "2024-01-01"})
	st = s.state()
	if st.Screen != navigation.TaskListScreen || len(st.Tasks) != 1 {
		t.Fatalf("state after save = %+v", st)
	}
	s.next(websocket.ActionTasksChanged)

	if _, err := store.GetTaskByID(t.Context(), st.Tasks[0].ID); err != nil {
		t.Errorf("GetTaskByID() error = %v", err)
	}

	s.send("back", nil)
	if st := s.state(); st.Screen != navigation.TaskListScreen {
		t.Errorf("back from task list moved to %v", st.Screen)
	}

	s.send("delete_task", map[string]int64{"id": st.Tasks[0].ID})
	if st := s.state(); len(st.Tasks) != 0 {
		t.Errorf("Tasks after delete = %+v", st.Tasks)
	}

	s.send("modify_task", nil)
	s.next(websocket.ActionError)

	s.send("dance", nil)
	s.next(websocket.ActionError)
}

func TestSessionRejectsForeignOrigin(t *testing.T) {
	ts, _ := setupTestRouter(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/session"
	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	if _, _, err := gorilla.DefaultDialer.Dial(url, header); err == nil {
		t.Errorf("Dial() from foreign origin succeeded")
	}
}

func TestSessionDisconnectRevokesRemoteToken(t *testing.T) {
	clients := make(chan *identity.Client, 1)
	ts, _ := setupRouter(t, func(_ *database.Store, identityURL string) auth.Authenticator {
		c := identity.NewClient(identityURL, nil)
		clients <- c
		return auth.NewRemote(c)
	})
	s := dialSession(t, ts)
	client := <-clients
	creds := map[string]string{"email": "ana@example.com", "password": "secret"}

	s.state()
	s.send("open_register", nil)
	s.state()
	s.send("register", creds)
	s.state()
	s.send("login", creds)
	if st := s.state(); st.Screen != navigation.TaskListScreen {
		t.Fatalf("screen after login = %v, want %v", st.Screen, navigation.TaskListScreen)
	}
	s.send("create_task", nil)
	if st := s.state(); !st.Screen.IsCreate() {
		t.Fatalf("screen = %v, want create mode", st.Screen)
	}

	token := client.Token()
	if token == "" {
		t.Fatalf("Token() after login is empty")
	}
	current := func() int {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/identity/v1/sessions/current", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET /sessions/current error = %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if got := current(); got != http.StatusOK {
		t.Fatalf("GET /sessions/current before disconnect = %d, want %d", got, http.StatusOK)
	}

	s.conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for current() != http.StatusUnauthorized {
		if time.Now().After(deadline) {
			t.Fatalf("token still accepted after the session disconnected")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
