package core

import (
	"errors"

	"github.com/shrek82/simplemysql/dialect"
)

var (
	// ErrQuery is the kind of failures raised by the server while running a
	// statement: syntax errors, unknown tables, lock timeouts and the like.
	ErrQuery = errors.New("query failed")
	// ErrConnection is the kind of failures reaching or staying connected to the server.
	ErrConnection = errors.New("connection failed")
	// ErrConstraint is the kind of integrity constraint violations.
	ErrConstraint = errors.New("constraint violation")
	// ErrDuplicateKey is returned when a database unique constraint is violated.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrForeignKey is returned when a database foreign key constraint is violated.
	ErrForeignKey = errors.New("foreign key constraint")
	// ErrClosed is returned for queries issued after End.
	ErrClosed = errors.New("database is closed")
	// ErrUnsupported is returned when the dialect lacks a feature, e.g. FOUND_ROWS.
	ErrUnsupported = errors.New("not supported by dialect")
)

// Error is the single error type the facade returns for failed queries.
// Its message keeps the "<Label> Error: <cause>" form, while errors.Is and
// errors.As see through to the kind sentinels and the driver error.
type Error struct {
	// Kind is one of ErrQuery, ErrConnection, ErrConstraint, ErrDuplicateKey
	// or ErrForeignKey.
	Kind  error
	Label string
	Err   error
}

func (e *Error) Error() string {
	return e.Label + " Error: " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Kind == ErrDuplicateKey || e.Kind == ErrForeignKey {
		errs = append(errs, ErrConstraint)
	}
	return append(errs, e.Err)
}

func kindOf(c dialect.Class) error {
	switch c {
	case dialect.ClassConnection:
		return ErrConnection
	case dialect.ClassConstraint:
		return ErrConstraint
	case dialect.ClassDuplicateKey:
		return ErrDuplicateKey
	case dialect.ClassForeignKey:
		return ErrForeignKey
	default:
		return ErrQuery
	}
}

func (db *DB) wrapError(err error) error {
	kind := ErrConnection
	if !errors.Is(err, ErrClosed) {
		kind = kindOf(db.dialect.Classify(err))
	}
	return &Error{Kind: kind, Label: db.dialect.Label(), Err: err}
}
