package types

import (
	"errors"
	"fmt"
)

// ValidationError reports bad user input. The action does not proceed
// and nothing is pushed.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Reason)
}

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ProtocolViolation reports replicated state that broke a protocol
// invariant. The operation is aborted and the replica should resync.
type ProtocolViolation struct {
	Reason string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation: %s", e.Reason)
}

func NewProtocolViolation(format string, args ...interface{}) error {
	return &ProtocolViolation{Reason: fmt.Sprintf(format, args...)}
}

func IsProtocolViolation(err error) bool {
	var v *ProtocolViolation
	return errors.As(err, &v)
}
