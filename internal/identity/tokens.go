package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrTokenRevoked = errors.New("token revoked")

// Claims defines the JWT claims structure.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs session tokens and tracks revoked ones.
type TokenIssuer struct {
	db     *sql.DB
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer signing with secret.
func NewTokenIssuer(db *sql.DB, secret []byte, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{db: db, secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue creates a new token for a given user.
func (t *TokenIssuer) Issue(user User) (string, *Claims, error) {
	now := t.now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    t.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Validate parses a token string and rejects bad signatures, foreign
// issuers, expired tokens and revoked ones.
func (t *TokenIssuer) Validate(ctx context.Context, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	var revoked int
	err = t.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM revoked_tokens WHERE jti = ?", claims.ID).Scan(&revoked)
	if err != nil {
		return nil, err
	}
	if revoked > 0 {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke records the token id so later validations fail.
func (t *TokenIssuer) Revoke(ctx context.Context, claims *Claims) error {
	expires := t.now().Add(t.ttl)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	_, err := t.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO revoked_tokens(jti, expires_at) VALUES(?, ?)", claims.ID, expires.Unix())
	return err
}

// PurgeRevoked forgets revocations of tokens that have expired anyway.
func (t *TokenIssuer) PurgeRevoked(ctx context.Context) (int64, error) {
	res, err := t.db.ExecContext(ctx, "DELETE FROM revoked_tokens WHERE expires_at < ?", t.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
