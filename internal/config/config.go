package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/isdelr/taskdeck/internal/schema"
)

// Config holds the application configuration.
type Config struct {
	ServerPort     int
	DatabasePath   string
	SchemaVersion  int
	AllowedOrigins []string
	LogLevel       string

	AuthBackend      string // "local" or "remote"
	DefaultOwnerID   int64
	OwnerFromSession bool

	IdentityURL          string
	IdentityEmbedded     bool // Serve the identity service from this process
	IdentityDatabasePath string
	JWTSecret            string
	JWTIssuer            string
	TokenTTL             time.Duration
	LoginRatePerMinute   int
}

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	version, err := getInt("SCHEMA_VERSION", schema.Version)
	if err != nil {
		return nil, err
	}
	if version < 1 {
		return nil, fmt.Errorf("SCHEMA_VERSION must be positive, got %d", version)
	}
	owner, err := getInt("DEFAULT_OWNER_ID", 1)
	if err != nil {
		return nil, err
	}
	ownerFromSession, err := getBool("OWNER_FROM_SESSION", false)
	if err != nil {
		return nil, err
	}
	embedded, err := getBool("IDENTITY_EMBEDDED", true)
	if err != nil {
		return nil, err
	}
	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_TTL: %w", err)
	}
	rate, err := getInt("LOGIN_RATE_PER_MINUTE", 30)
	if err != nil {
		return nil, err
	}

	backend := strings.ToLower(getEnv("AUTH_BACKEND", "local"))
	if backend != "local" && backend != "remote" {
		return nil, fmt.Errorf("AUTH_BACKEND must be local or remote, got %q", backend)
	}

	cfg := &Config{
		ServerPort:           port,
		DatabasePath:         getEnv("DATABASE_PATH", "./taskdeck.db"),
		SchemaVersion:        version,
		AllowedOrigins:       splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		AuthBackend:          backend,
		DefaultOwnerID:       int64(owner),
		OwnerFromSession:     ownerFromSession,
		IdentityURL:          strings.TrimRight(getEnv("IDENTITY_URL", fmt.Sprintf("http://localhost:%d/identity/v1", port)), "/"),
		IdentityEmbedded:     embedded,
		IdentityDatabasePath: getEnv("IDENTITY_DATABASE_PATH", "./identity.db"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		JWTIssuer:            getEnv("JWT_ISSUER", "taskdeck-identity"),
		TokenTTL:             ttl,
		LoginRatePerMinute:   rate,
	}
	if cfg.IdentityEmbedded && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when IDENTITY_EMBEDDED is true")
	}
	return cfg, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
