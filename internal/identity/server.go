package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Options configures a Server.
type Options struct {
	Secret             []byte
	Issuer             string
	TokenTTL           time.Duration
	LoginRatePerMinute int // 0 disables login rate limiting
	BcryptCost         int
}

// Server exposes accounts and sessions over HTTP.
type Server struct {
	accounts *AccountService
	tokens   *TokenIssuer
	audit    *AuditLog
	limiter  *clientLimiter
}

// NewServer wires the identity services on top of db. Migrate must have run.
func NewServer(db *sql.DB, opts Options) *Server {
	s := &Server{
		accounts: NewAccountService(db, opts.BcryptCost),
		tokens:   NewTokenIssuer(db, opts.Secret, opts.Issuer, opts.TokenTTL),
		audit:    NewAuditLog(db),
	}
	if opts.LoginRatePerMinute > 0 {
		s.limiter = newClientLimiter(rate.Every(time.Minute/time.Duration(opts.LoginRatePerMinute)), opts.LoginRatePerMinute)
	}
	return s
}

// AuthPayload defines the structure for register and login requests.
type AuthPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type contextKey string

const claimsKey = contextKey("identityClaims")

// Routes returns the identity API router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/accounts", s.Register)
	r.With(s.rateLimit).Post("/sessions", s.Login)
	r.Route("/sessions/current", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/", s.Current)
		r.Delete("/", s.Logout)
	})
	return r
}

// PurgeRevoked drops revocations of tokens that are already expired.
func (s *Server) PurgeRevoked(ctx context.Context) (int64, error) {
	return s.tokens.PurgeRevoked(ctx)
}

// Audit exposes the audit log.
func (s *Server) Audit() *AuditLog { return s.audit }

// Register handles new account registration. The new account is signed in.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.accounts.CreateAccount(r.Context(), payload.Email, payload.Password)
	switch {
	case errors.Is(err, ErrEmailTaken):
		s.record(r.Context(), "account.register.fail", "warn", "email already registered", nil)
		http.Error(w, "Email already registered", http.StatusConflict)
		return
	case errors.Is(err, ErrInvalidCredentials):
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	case err != nil:
		log.Error().Err(err).Str("email", payload.Email).Msg("Failed to register account")
		http.Error(w, "Failed to register account", http.StatusInternalServerError)
		return
	}

	s.record(r.Context(), "account.register", "info", "account created", &user.ID)
	s.writeSession(w, http.StatusCreated, user)
}

// Login handles authentication and token issuance.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.accounts.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			log.Warn().Str("email", payload.Email).Msg("Failed authentication attempt")
			s.record(r.Context(), "session.login.fail", "warn", "invalid credentials for "+payload.Email, nil)
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		log.Error().Err(err).Str("email", payload.Email).Msg("Failed to authenticate")
		http.Error(w, "Failed to authenticate", http.StatusInternalServerError)
		return
	}

	s.record(r.Context(), "session.login", "info", "signed in", &user.ID)
	s.writeSession(w, http.StatusOK, user)
}

// Current returns the account behind the bearer token.
func (s *Server) Current(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(claimsKey).(*Claims)
	user, err := s.accounts.GetAccountByID(r.Context(), claims.UserID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", claims.UserID).Msg("Account from token not found")
		http.Error(w, "Account not found", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// Logout revokes the bearer token.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(claimsKey).(*Claims)
	if err := s.tokens.Revoke(r.Context(), claims); err != nil {
		log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to revoke token")
		http.Error(w, "Failed to sign out", http.StatusInternalServerError)
		return
	}
	s.record(r.Context(), "session.logout", "info", "signed out", &claims.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeSession(w http.ResponseWriter, status int, user User) {
	token, _, err := s.tokens.Issue(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to issue token")
		http.Error(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(SessionResponse{Token: token, User: user})
}

func (s *Server) record(ctx context.Context, eventType, level, message string, accountID *string) {
	if err := s.audit.Record(ctx, eventType, level, message, accountID); err != nil {
		log.Warn().Err(err).Str("type", eventType).Msg("Failed to record audit event")
	}
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || tokenStr == "" {
			http.Error(w, "Missing auth token", http.StatusUnauthorized)
			return
		}
		claims, err := s.tokens.Validate(r.Context(), tokenStr)
		if err != nil {
			http.Error(w, "Invalid auth token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientKey(r)) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

func newClientLimiter(every rate.Limit, burst int) *clientLimiter {
	return &clientLimiter{every: every, burst: burst, buckets: make(map[string]*rate.Limiter)}
}

func (l *clientLimiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.buckets[key]
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.buckets[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
