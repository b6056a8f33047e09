package schema

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every typed error below unwraps to one of them so callers
// can branch with errors.Is.
var (
	ErrConfiguration      = errors.New("invalid configuration")
	ErrStructuralConflict = errors.New("structural conflict")
	ErrNotFound           = errors.New("not found")
	ErrDriver             = errors.New("driver failure")
	ErrUnsupported        = errors.New("unsupported operation")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidState       = errors.New("invalid state")
)

// ConfigurationError reports invalid construction input such as an unknown
// column type, a size that does not fit the type or an incompatible reference.
type ConfigurationError struct {
	Entity  string
	Name    string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Entity, e.Name, e.Message)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// ConflictError reports an operation that would break a structural invariant.
type ConflictError struct {
	Entity  string
	Name    string
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Entity, e.Name, e.Message)
}

func (e *ConflictError) Unwrap() error { return ErrStructuralConflict }

// NotFoundError reports a drop or lookup against a name that is not live.
type NotFoundError struct {
	Entity string
	Name   string
	Parent string
}

func (e *NotFoundError) Error() string {
	if e.Parent != "" {
		return fmt.Sprintf("%s %q not found in %q", e.Entity, e.Name, e.Parent)
	}
	return fmt.Sprintf("%s %q not found", e.Entity, e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DriverError wraps a failure of the underlying database.
type DriverError struct {
	Op        string
	Statement string
	Err       error
}

func (e *DriverError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("failed to %s: %v (statement: %s)", e.Op, e.Err, e.Statement)
	}
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDriver}
	}
	return []error{ErrDriver, e.Err}
}

// UnsupportedError reports an action that is recognized but not implemented.
type UnsupportedError struct {
	Operation string
	Entity    string
	Name      string
}

func (e *UnsupportedError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("unsupported operation %s on %s %q", e.Operation, e.Entity, e.Name)
	}
	return fmt.Sprintf("unsupported operation %s on %s", e.Operation, e.Entity)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool { return errors.Is(err, ErrStructuralConflict) }

// IsUnsupported reports whether err is an UnsupportedError.
func IsUnsupported(err error) bool { return errors.Is(err, ErrUnsupported) }

func driverFailure(op string, err error) error {
	var de *DriverError
	if errors.As(err, &de) || errors.Is(err, ErrUnsupported) {
		return err
	}
	return &DriverError{Op: op, Err: err}
}
