// Package persistence error types shared by all implementations.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrZapNotFound indicates a Zap was not found by the given identifier.
	ErrZapNotFound = errors.New("zap not found")

	// ErrStepNotFound indicates a step was not found by the given identifier.
	ErrStepNotFound = errors.New("step not found")

	// ErrConnectionNotFound indicates a connection was not found.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrExecutionNotFound indicates an execution was not found.
	ErrExecutionNotFound = errors.New("execution not found")
)

// ZapError wraps Zap-related persistence errors with operation context.
type ZapError struct {
	Op    string // operation being performed, e.g. "Save", "IncrementCounters"
	ZapID string
	Err   error
}

func (e *ZapError) Error() string {
	return fmt.Sprintf("%s operation failed for zap %s: %v", e.Op, e.ZapID, e.Err)
}

func (e *ZapError) Unwrap() error {
	return e.Err
}

func (e *ZapError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewZapError creates a new Zap error with context.
func NewZapError(op, zapID string, err error) *ZapError {
	return &ZapError{Op: op, ZapID: zapID, Err: err}
}

// IsZapNotFound checks if an error indicates a Zap was not found.
func IsZapNotFound(err error) bool {
	return errors.Is(err, ErrZapNotFound)
}

// IsConnectionNotFound checks if an error indicates a connection was not found.
func IsConnectionNotFound(err error) bool {
	return errors.Is(err, ErrConnectionNotFound)
}
