package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// APIError is a non-success answer from the identity service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity service: %d %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses to the package sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrInvalidCredentials
	case http.StatusConflict:
		return ErrEmailTaken
	}
	return nil
}

// Call is a pending identity request.
type Call struct {
	done chan struct{}
	user User
	err  error
}

func startCall(fn func() (User, error)) *Call {
	c := &Call{done: make(chan struct{})}
	go func() {
		defer close(c.done)
		c.user, c.err = fn()
	}()
	return c
}

// Done is closed once the call has finished.
func (c *Call) Done() <-chan struct{} { return c.done }

// Await blocks until the call finishes or ctx is done.
func (c *Call) Await(ctx context.Context) (User, error) {
	select {
	case <-c.done:
		return c.user, c.err
	case <-ctx.Done():
		return User{}, ctx.Err()
	}
}

// Client talks to a remote identity service and keeps the signed-in session.
type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	token   string
	user    *User
	expires time.Time
	now     func() time.Time
}

// NewClient creates a Client for the service rooted at baseURL. A nil
// httpClient gets a default with a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		now:     time.Now,
	}
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, email, password string) *Call {
	return startCall(func() (User, error) {
		user, err := c.openSession(ctx, "/accounts", email, password)
		if err != nil {
			log.Error().Err(err).Str("email", email).Msg("Identity: failed to register user")
		}
		return user, err
	})
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) *Call {
	return startCall(func() (User, error) {
		user, err := c.openSession(ctx, "/sessions", email, password)
		if err != nil {
			log.Error().Err(err).Str("email", email).Msg("Identity: failed to sign in")
		}
		return user, err
	})
}

// CurrentUser returns the signed-in user while its token has not expired.
func (c *Client) CurrentUser() (User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil || !c.now().Before(c.expires) {
		return User{}, false
	}
	return *c.user, true
}

// Token returns the current session token, if any.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Logout revokes the session on the server and always forgets it locally.
// The error reports a revocation the server did not acknowledge.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.token, c.user, c.expires = "", nil, time.Time{}
	c.mu.Unlock()

	if token == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/sessions/current", nil)
	if err != nil {
		return fmt.Errorf("build sign-out request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return &APIError{Status: resp.StatusCode, Message: "sign-out was not acknowledged"}
	}
	return nil
}

func (c *Client) openSession(ctx context.Context, path, email, password string) (User, error) {
	body, err := json.Marshal(AuthPayload{Email: email, Password: password})
	if err != nil {
		return User{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return User{}, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var session SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return User{}, fmt.Errorf("decode session: %w", err)
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(session.Token, claims); err != nil {
		return User{}, fmt.Errorf("read session token: %w", err)
	}
	expires := c.now().Add(24 * time.Hour)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	c.mu.Lock()
	c.token = session.Token
	user := session.User
	c.user = &user
	c.expires = expires
	c.mu.Unlock()

	return session.User, nil
}
