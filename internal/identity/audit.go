package identity

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Event is an auditable outcome of an identity operation.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "account.register", "session.login.fail"
	Level     string    `json:"level"` // e.g., "info", "warn"
	Message   string    `json:"message"`
	AccountID *string   `json:"accountId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditLog persists identity events.
type AuditLog struct {
	db *sql.DB
}

// NewAuditLog creates a new AuditLog.
func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

// Record logs a new event to the database.
func (a *AuditLog) Record(ctx context.Context, eventType, level, message string, accountID *string) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO audit_events (id, type, level, message, account_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		uuid.New().String(), eventType, level, message, accountID, time.Now().UTC().UnixNano())
	return err
}

// Recent retrieves the most recent events.
func (a *AuditLog) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT id, type, level, message, account_id, created_at FROM audit_events ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event   Event
			created int64
		)
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.AccountID, &created); err != nil {
			return nil, err
		}
		event.CreatedAt = time.Unix(0, created).UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}
