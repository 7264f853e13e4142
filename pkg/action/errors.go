package action

import "fmt"

// ErrKind enumerates the ActionError kinds Never retried.
type ErrKind string

const (
	ErrInvalidParameters ErrKind = "invalid_parameters"
	ErrOutOfBounds       ErrKind = "out_of_bounds"
	ErrInvalidText       ErrKind = "invalid_text"
	ErrDurationTooShort  ErrKind = "duration_too_short"
	ErrDurationTooLong   ErrKind = "duration_too_long"
)

// Error is an action-level validation failure.
type Error struct {
	Kind ErrKind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

// NewError builds an *Error with the given kind, following the
// agent.RetryableError/IgnorableError constructor-function idiom.
func NewError(kind ErrKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}
