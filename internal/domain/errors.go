package domain

import "fmt"

// ValidationError reports input that must be corrected by the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError reports a lifecycle action attempted from the wrong state,
// e.g. concluding a demanda that is already completed.
type InvalidTransitionError struct {
	ID     int64
	From   State
	Action string
}

func (e *InvalidTransitionError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("invalid transition: cannot %s a %s demanda", e.Action, e.From)
	}
	return fmt.Sprintf("invalid transition: cannot %s demanda %d, it is %s", e.Action, e.ID, e.From)
}
