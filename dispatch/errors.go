package dispatch

import (
	"errors"
	"fmt"
)

// ErrNoDefinitionFound signals that a live session referenced a definition id
// the registry does not know. This is an internal inconsistency, not a user
// error; it is logged loudly and surfaced as a generic internal error.
var ErrNoDefinitionFound = errors.New("no definition found for id")

// ErrInsufficientPermissions is reported by the permissions middleware.
var ErrInsufficientPermissions = errors.New("insufficient permissions")

// TypeAdaptingError reports that a raw platform value could not be converted
// into the declared parameter type.
type TypeAdaptingError struct {
	Param string
	Type  string
	Raw   string
}

func (e *TypeAdaptingError) Error() string {
	return fmt.Sprintf("cannot adapt %q to type %s for parameter %q", e.Raw, e.Type, e.Param)
}

// ConstraintError reports the first failing constraint of a parameter.
type ConstraintError struct {
	Param   string
	Message string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint failed for parameter %q: %s", e.Param, e.Message)
}

// ExecutionError wraps an error or panic escaping a handler. It never
// propagates past the pipeline boundary.
type ExecutionError struct {
	Unit    string
	Handler string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("handler %s.%s failed: %v", e.Unit, e.Handler, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
