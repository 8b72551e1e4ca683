// Package auth selects where the screens register and sign users in: the
// local task store or the remote identity service.
package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/isdelr/taskdeck/internal/identity"
	"github.com/isdelr/taskdeck/internal/models"
)

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Session describes the signed-in user. LocalID is set only by the local
// backend, RemoteID only by the remote one.
type Session struct {
	Email    string `json:"email"`
	LocalID  int64  `json:"localId,omitempty"`
	RemoteID string `json:"remoteId,omitempty"`
}

// Authenticator is what the screens need to register and sign users in.
type Authenticator interface {
	Register(ctx context.Context, email, password string) error
	Login(ctx context.Context, email, password string) (Session, error)
	// Logout ends the signed-in session. The local session is forgotten even
	// when an error is returned.
	Logout(ctx context.Context) error
	// SessionValid reports whether the signed-in session is still usable.
	SessionValid() bool
}

// UserStore is the part of the local store used for authentication.
type UserStore interface {
	RegisterUser(ctx context.Context, email, password string) (models.User, error)
	LoginUser(ctx context.Context, email, password string) (models.User, error)
}

// New returns the Authenticator for backend.
func New(backend string, store UserStore, client *identity.Client) (Authenticator, error) {
	switch backend {
	case BackendLocal, "":
		if store == nil {
			return nil, fmt.Errorf("local auth backend needs a user store")
		}
		return NewLocal(store), nil
	case BackendRemote:
		if client == nil {
			return nil, fmt.Errorf("remote auth backend needs an identity client")
		}
		return NewRemote(client), nil
	default:
		return nil, fmt.Errorf("unknown auth backend %q", backend)
	}
}

// Factory returns a fresh Authenticator per presentation session, so remote
// sessions do not share an identity token. It fails early on a bad backend.
func Factory(backend string, store UserStore, identityURL string, httpClient *http.Client) (func() Authenticator, error) {
	if _, err := New(backend, store, identity.NewClient(identityURL, httpClient)); err != nil {
		return nil, err
	}
	return func() Authenticator {
		a, _ := New(backend, store, identity.NewClient(identityURL, httpClient))
		return a
	}, nil
}
