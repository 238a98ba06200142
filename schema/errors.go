package schema

import (
	"errors"
	"fmt"
)

// SchemaError reports that an entity type lacks required table or
// identifier metadata. It is detected while resolving descriptors, before
// any statement executes.
type SchemaError struct {
	TypeName string
	Reason   string
}

// Error returns the error string.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %s: %s", e.TypeName, e.Reason)
}

// NewSchemaError returns a new SchemaError for the given entity type.
func NewSchemaError(typeName, format string, args ...any) *SchemaError {
	return &SchemaError{TypeName: typeName, Reason: fmt.Sprintf(format, args...)}
}

// IsSchemaError returns true if the error is a SchemaError.
func IsSchemaError(err error) bool {
	if err == nil {
		return false
	}
	var e *SchemaError
	return errors.As(err, &e)
}
