package agentloop

import "fmt"

// ErrKind enumerates the AgentError kinds
type ErrKind string

const (
	ErrAlreadyRunning       ErrKind = "already_running"
	ErrNotRunning           ErrKind = "not_running"
	ErrInvalidStateTransition ErrKind = "invalid_state_transition"
	ErrTimeoutExceeded      ErrKind = "timeout_exceeded"
	ErrMaxStepsExceeded     ErrKind = "max_steps_exceeded"
	ErrTaskFailed           ErrKind = "task_failed"
	ErrRecoveryFailed       ErrKind = "recovery_failed"
	ErrValidationError      ErrKind = "validation_error"
)

// Error is an agent lifecycle failure.
type Error struct {
	Kind ErrKind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

// NewError builds an *Error with the given kind.
func NewError(kind ErrKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}
