package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotFound    = errors.New("account not found")
)

// User is the identity service's view of an account. ID is an opaque token.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// AccountService stores accounts with bcrypt password hashes.
type AccountService struct {
	db   *sql.DB
	cost int
}

// NewAccountService creates a new AccountService. A cost of 0 uses bcrypt.DefaultCost.
func NewAccountService(db *sql.DB, cost int) *AccountService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &AccountService{db: db, cost: cost}
}

// CreateAccount creates a new account, hashing its password.
func (s *AccountService) CreateAccount(ctx context.Context, email, password string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := User{
		ID:        uuid.New().String(),
		Email:     email,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM accounts WHERE email = ?", email).Scan(&exists)
	if err != nil {
		return User{}, err
	}
	if exists > 0 {
		return User{}, ErrEmailTaken
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO accounts(id, email, password_hash, created_at) VALUES(?, ?, ?, ?)",
		user.ID, user.Email, string(hashedPassword), user.CreatedAt.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return user, nil
}

// GetAccountByID retrieves a single account by its ID.
func (s *AccountService) GetAccountByID(ctx context.Context, id string) (User, error) {
	user, _, err := s.scanAccount(s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM accounts WHERE id = ?", id))
	return user, err
}

// Authenticate verifies an account's credentials.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, hash, err := s.scanAccount(s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM accounts WHERE email = ?", strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AccountService) scanAccount(row *sql.Row) (User, string, error) {
	var (
		user    User
		hash    string
		created int64
	)
	if err := row.Scan(&user.ID, &user.Email, &hash, &created); err != nil {
		if err == sql.ErrNoRows {
			return User{}, "", ErrAccountNotFound
		}
		return User{}, "", err
	}
	user.CreatedAt = time.Unix(created, 0).UTC()
	return user, hash, nil
}
