package model

import "fmt"

// ValidationError reports a bad experiment spec or launch configuration. It is
// fatal: no submission is attempted when validation fails.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Message
}

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError is returned when a record state transition is not
// allowed by the state machine.
type InvalidTransitionError struct {
	ID   string
	From ExperimentState
	To   ExperimentState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %s -> %s (experiment %s)", e.From, e.To, e.ID)
}
