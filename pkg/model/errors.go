package model

import "fmt"

// ErrKind enumerates the ModelError kinds
type ErrKind string

const (
	ErrAPIError        ErrKind = "api_error"
	ErrParseError      ErrKind = "parse_error"
	ErrRateLimit       ErrKind = "rate_limit"
	ErrInvalidAPIKey   ErrKind = "invalid_api_key"
	ErrNetworkError    ErrKind = "network_error"
	ErrTimeout         ErrKind = "timeout"
	ErrConnectionReset ErrKind = "connection_refused"
)

// Error is a model-client-level failure.
type Error struct {
	Kind ErrKind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

// NewError builds a *Error with the given kind, following the
// agent.RetryableError/IgnorableError constructor-function idiom.
func NewError(kind ErrKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Fatal reports whether the run should abort outright rather than let the
// caller retry or surface the error and continue: an invalid API key is
// fatal to the run, a rate limit is surfaced but retriable at the loop's
// discretion.
func (e *Error) Fatal() bool {
	return e.Kind == ErrInvalidAPIKey
}
