package database

import (
	"context"
	"time"

	"github.com/isdelr/taskdeck/internal/models"
	"github.com/isdelr/taskdeck/internal/schema"
)

// RegisterUser inserts a new user. A duplicate email fails with ErrConstraint.
// The password is stored as given.
func (s *Store) RegisterUser(ctx context.Context, email, password string) (user models.User, err error) {
	const op = "register_user"
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	db, err := s.acquire(ctx, op)
	if err != nil {
		return models.User{}, err
	}
	defer release(db)

	res, err := db.ExecContext(ctx,
		"INSERT INTO "+schema.TableUsers+" ("+schema.UserEmail+", "+schema.UserPassword+") VALUES (?, ?)",
		email, password)
	if err != nil {
		return models.User{}, classify(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, classify(op, err)
	}
	return models.User{ID: id, Email: email}, nil
}

// LoginUser looks up a user whose email and password both match exactly.
// No match fails with ErrNotFound.
func (s *Store) LoginUser(ctx context.Context, email, password string) (user models.User, err error) {
	const op = "login_user"
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	db, err := s.acquire(ctx, op)
	if err != nil {
		return models.User{}, err
	}
	defer release(db)

	row := db.QueryRowContext(ctx,
		"SELECT "+schema.UserID+", "+schema.UserEmail+" FROM "+schema.TableUsers+
			" WHERE "+schema.UserEmail+" = ? AND "+schema.UserPassword+" = ? LIMIT 1",
		email, password)
	if err := row.Scan(&user.ID, &user.Email); err != nil {
		return models.User{}, classify(op, err)
	}
	return user, nil
}
