package identity

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// setupTestServer starts the identity API on a fresh database file.
func setupTestServer(t *testing.T, opts Options) (*httptest.Server, *Server, *sql.DB) {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "identity.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if opts.Secret == nil {
		opts.Secret = []byte("test-secret")
	}
	if opts.Issuer == "" {
		opts.Issuer = "test-identity"
	}
	if opts.TokenTTL == 0 {
		opts.TokenTTL = time.Hour
	}
	opts.BcryptCost = bcrypt.MinCost

	srv := NewServer(db, opts)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		ts.Close()
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close identity database: %v", err)
		}
	})
	return ts, srv, db
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	return resp
}

func withToken(t *testing.T, method, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	ts, _, _ := setupTestServer(t, Options{})
	creds := AuthPayload{Email: "ana@example.com", Password: "secret"}

	var session SessionResponse
	t.Run("Register", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/accounts", creds)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if session.Token == "" || session.User.ID == "" || session.User.Email != creds.Email {
			t.Errorf("session = %+v", session)
		}
	})

	t.Run("Register Duplicate", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/accounts", creds)
		resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
		}
	})

	t.Run("Register Blank", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/accounts", AuthPayload{Email: " "})
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})

	t.Run("Login", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/sessions", creds)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		var got SessionResponse
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if got.User.ID != session.User.ID {
			t.Errorf("login user ID = %v, want %v", got.User.ID, session.User.ID)
		}
	})

	t.Run("Login Wrong Password", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/sessions", AuthPayload{Email: creds.Email, Password: "nope"})
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
		}
	})

	t.Run("Login Unknown Email", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/sessions", AuthPayload{Email: "bob@example.com", Password: "secret"})
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
		}
	})

	t.Run("Current And Logout", func(t *testing.T) {
		resp := withToken(t, http.MethodGet, ts.URL+"/sessions/current", session.Token)
		var user User
		json.NewDecoder(resp.Body).Decode(&user)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || user.ID != session.User.ID {
			t.Fatalf("current status = %d user = %+v", resp.StatusCode, user)
		}

		resp = withToken(t, http.MethodDelete, ts.URL+"/sessions/current", session.Token)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("logout status = %d, want %d", resp.StatusCode, http.StatusNoContent)
		}

		resp = withToken(t, http.MethodGet, ts.URL+"/sessions/current", session.Token)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("current after logout status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
		}
	})

	t.Run("Missing Token", func(t *testing.T) {
		resp := withToken(t, http.MethodGet, ts.URL+"/sessions/current", "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
		}
	})
}

func TestForeignToken(t *testing.T) {
	ts, _, _ := setupTestServer(t, Options{})
	other, _, _ := setupTestServer(t, Options{Secret: []byte("other-secret")})

	resp := postJSON(t, other.URL+"/accounts", AuthPayload{Email: "ana@example.com", Password: "secret"})
	var session SessionResponse
	json.NewDecoder(resp.Body).Decode(&session)
	resp.Body.Close()

	resp = withToken(t, http.MethodGet, ts.URL+"/sessions/current", session.Token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestLoginRateLimit(t *testing.T) {
	ts, _, _ := setupTestServer(t, Options{LoginRatePerMinute: 2})
	creds := AuthPayload{Email: "ana@example.com", Password: "wrong"}

	var statuses []int
	for i := 0; i < 3; i++ {
		resp := postJSON(t, ts.URL+"/sessions", creds)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}
	if statuses[0] != http.StatusUnauthorized || statuses[1] != http.StatusUnauthorized {
		t.Errorf("first statuses = %v, want 401s", statuses[:2])
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("third status = %d, want %d", statuses[2], http.StatusTooManyRequests)
	}
}

func TestPurgeRevoked(t *testing.T) {
	_, srv, _ := setupTestServer(t, Options{})
	ctx := context.Background()

	past := time.Now().Add(-2 * time.Hour)
	srv.tokens.now = func() time.Time { return past }
	_, expired, err := srv.tokens.Issue(User{ID: "old", Email: "old@example.com"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	srv.tokens.now = time.Now
	_, live, err := srv.tokens.Issue(User{ID: "new", Email: "new@example.com"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	for _, c := range []*Claims{expired, live} {
		if err := srv.tokens.Revoke(ctx, c); err != nil {
			t.Fatalf("Revoke() error = %v", err)
		}
	}

	n, err := srv.PurgeRevoked(ctx)
	if err != nil {
		t.Fatalf("PurgeRevoked() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeRevoked() = %d, want 1", n)
	}
}

func TestAuditTrail(t *testing.T) {
	ts, srv, _ := setupTestServer(t, Options{})

	resp := postJSON(t, ts.URL+"/accounts", AuthPayload{Email: "ana@example.com", Password: "secret"})
	resp.Body.Close()
	resp = postJSON(t, ts.URL+"/sessions", AuthPayload{Email: "ana@example.com", Password: "bad"})
	resp.Body.Close()

	events, err := srv.Audit().Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Recent() len = %d, want 2", len(events))
	}
	if events[0].Type != "session.login.fail" || events[1].Type != "account.register" {
		t.Errorf("Recent() types = %s, %s", events[0].Type, events[1].Type)
	}
	if events[1].AccountID == nil {
		t.Errorf("register event has no account id")
	}
}
