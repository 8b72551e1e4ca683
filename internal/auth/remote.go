package auth

import (
	"context"

	"github.com/isdelr/taskdeck/internal/identity"
)

// Remote authenticates against the identity service.
type Remote struct {
	client *identity.Client
}

func NewRemote(client *identity.Client) *Remote {
	return &Remote{client: client}
}

func (r *Remote) Register(ctx context.Context, email, password string) error {
	_, err := r.client.Register(ctx, email, password).Await(ctx)
	return err
}

func (r *Remote) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := r.client.Login(ctx, email, password).Await(ctx)
	if err != nil {
		return Session{}, err
	}
	return Session{Email: user.Email, RemoteID: user.ID}, nil
}

func (r *Remote) Logout(ctx context.Context) error {
	return r.client.Logout(ctx)
}

// SessionValid reports whether the identity token is still unexpired.
func (r *Remote) SessionValid() bool {
	_, ok := r.client.CurrentUser()
	return ok
}
