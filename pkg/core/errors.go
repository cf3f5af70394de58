package core

import (
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Common errors
var (
	// ErrNotFound is returned when a referenced folder, image, keyword or
	// collection does not exist
	ErrNotFound = errors.New("record not found")

	// ErrConstraint is returned when a mutation would violate a catalog
	// invariant: duplicate unique key, out-of-range rating, invalid enum
	// value or malformed structured payload
	ErrConstraint = errors.New("constraint violation")

	// ErrInvalidPayload is returned when a semi-structured JSON payload
	// fails its schema check; it unwraps to ErrConstraint
	ErrInvalidPayload = fmt.Errorf("%w: invalid payload", ErrConstraint)

	// ErrStoreClosed is returned when trying to use a closed store
	ErrStoreClosed = errors.New("store is closed")
)

// StoreError wraps errors with operation context
type StoreError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("catalog: %v", e.Err)
	}
	return fmt.Sprintf("catalog: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError wraps an error with operation context
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// mapSQLiteError translates driver-level constraint failures into
// ErrConstraint so callers can match on the catalog's error kinds.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	return err
}

// isConstraintErr reports whether err is a SQLite constraint failure.
func isConstraintErr(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
