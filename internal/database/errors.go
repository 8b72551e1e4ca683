package database

import (
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Kind classifies a storage failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindConstraint
	KindNotFound
	KindConnection
)

func (k Kind) String() string {
	switch k {
	case KindConstraint:
		return "constraint"
	case KindNotFound:
		return "not_found"
	case KindConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrConstraint = errors.New("constraint violation")
	ErrNotFound   = errors.New("not found")
	ErrConnection = errors.New("connection failure")
)

// Error is returned by every Store operation that fails.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrConstraint:
		return e.Kind == KindConstraint
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrConnection:
		return e.Kind == KindConnection
	}
	return false
}

// KindOf reports the kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsConstraint(err error) bool { return errors.Is(err, ErrConstraint) }

// classify wraps a driver error for op, detecting constraint violations and
// missing rows.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Op: op, Kind: KindNotFound, Err: err}
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return &Error{Op: op, Kind: KindConstraint, Err: err}
	}
	return &Error{Op: op, Kind: KindUnknown, Err: err}
}
