package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/isdelr/taskdeck/internal/models"
	"github.com/isdelr/taskdeck/internal/schema"
	"github.com/rs/zerolog/log"
)

const driverName = "sqlite"

// Store is the local task store. Every operation opens its own handle to the
// database file and closes it before returning.
type Store struct {
	path    string
	version int

	mu    sync.Mutex
	ready bool
}

// New creates a Store backed by the file at path. The schema is checked
// against version on first access.
func New(path string, version int) *Store {
	return &Store{path: path, version: version}
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Version returns the schema version the store expects.
func (s *Store) Version() int { return s.version }

func (s *Store) dsn() string {
	return s.path + "?_pragma=busy_timeout(5000)"
}

// acquire opens a handle for a single operation and makes sure the schema is
// in place. The caller must close the returned handle.
func (s *Store) acquire(ctx context.Context, op string) (*sql.DB, error) {
	db, err := sql.Open(driverName, s.dsn())
	if err != nil {
		return nil, &Error{Op: op, Kind: KindConnection, Err: err}
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &Error{Op: op, Kind: KindConnection, Err: err}
	}
	if err := s.prepare(ctx, db); err != nil {
		db.Close()
		return nil, &Error{Op: op, Kind: KindConnection, Err: err}
	}
	return db, nil
}

func release(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store handle")
	}
}

// prepare creates the tables on first use and drops and recreates them when
// the stored version differs from the expected one.
func (s *Store) prepare(ctx context.Context, db *sql.DB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if current != 0 && current != s.version {
		log.Warn().Int("from", current).Int("to", s.version).Str("path", s.path).Msg("Schema version changed, recreating tables")
		for _, stmt := range schema.DropStatements() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("drop tables: %w", err)
			}
		}
	}
	for _, stmt := range schema.CreateStatements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", s.version)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.ready = true
	return nil
}

// scanRecords reads every remaining row into a Record keyed by column name.
func scanRecords(rows *sql.Rows) ([]models.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []models.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(models.Record, len(cols))
		for i, col := range cols {
			rec[col] = values[i]
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
