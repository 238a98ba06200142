package advisor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/janiece-23/BetterAdvisor/schema"
)

// SchemaError reports missing or inconsistent entity metadata. It is
// produced while building plans, before any statement executes.
type SchemaError = schema.SchemaError

// IsSchemaError returns true if the error is a SchemaError.
func IsSchemaError(err error) bool { return schema.IsSchemaError(err) }

// StatementError reports that the database rejected a statement inside a
// batch operation. The whole transaction has been rolled back.
type StatementError struct {
	Op  string // operation description, e.g. "upsert Student"
	Err error  // cause reported by the driver
}

// Error returns the error string.
func (e *StatementError) Error() string {
	return fmt.Sprintf("advisor: %s: transaction failed, changes rolled back: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StatementError) Unwrap() error { return e.Err }

// NewStatementError returns a new StatementError for the given operation.
func NewStatementError(op string, err error) *StatementError {
	return &StatementError{Op: op, Err: err}
}

// IsStatementError returns true if the error is a StatementError.
func IsStatementError(err error) bool {
	if err == nil {
		return false
	}
	var e *StatementError
	return errors.As(err, &e)
}

// MappingError reports that a result row could not be materialized into
// the named entity type. Fetches carry no write side effects, so nothing
// is rolled back.
type MappingError struct {
	Entity string
	Err    error
}

// Error returns the error string.
func (e *MappingError) Error() string {
	return fmt.Sprintf("advisor: mapping failed for %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MappingError) Unwrap() error { return e.Err }

// NewMappingError returns a new MappingError for the given entity type.
func NewMappingError(entity string, err error) *MappingError {
	return &MappingError{Entity: entity, Err: err}
}

// IsMappingError returns true if the error is a MappingError.
func IsMappingError(err error) bool {
	if err == nil {
		return false
	}
	var e *MappingError
	return errors.As(err, &e)
}

// IsConstraintError reports whether err was caused by a database
// constraint violation, using driver-specific error codes where the
// driver exposes them.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return pqe.Code.Class() == "23"
	}
	var mye *mysql.MySQLError
	if errors.As(err, &mye) {
		switch mye.Number {
		case 1062, 1451, 1452, 1557, 1586, 1761, 1762:
			return true
		}
		return false
	}
	// SQLite drivers surface constraint failures as text only.
	msg := err.Error()
	return strings.Contains(msg, "constraint failed") || strings.Contains(msg, "UNIQUE constraint")
}
