package auth

import "context"

// Local authenticates against the Users table of the task store.
type Local struct {
	store UserStore
}

func NewLocal(store UserStore) *Local {
	return &Local{store: store}
}

func (l *Local) Register(ctx context.Context, email, password string) error {
	_, err := l.store.RegisterUser(ctx, email, password)
	return err
}

func (l *Local) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := l.store.LoginUser(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return Session{Email: user.Email, LocalID: user.ID}, nil
}

// Logout is a no-op: the local store keeps no session.
func (l *Local) Logout(context.Context) error { return nil }

// SessionValid is always true, local sessions do not expire.
func (l *Local) SessionValid() bool { return true }
