package remote

import "fmt"

// OperationError is the typed failure surfaced by Client methods.
type OperationError struct {
	Op      string
	Message string
	// Transient marks failures worth retrying (network flaps, 5xx).
	Transient bool
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// NewOperationError creates a non-transient OperationError.
func NewOperationError(op, message string) *OperationError {
	return &OperationError{Op: op, Message: message}
}
