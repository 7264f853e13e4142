package device

import "fmt"

// ErrKind enumerates the DeviceError kinds Each carries
// user-facing diagnostic text so it can be surfaced to an HTTP caller or an
// agent Failed state verbatim.
type ErrKind string

const (
	ErrSpawnFailed       ErrKind = "spawn_failed"
	ErrNonZeroExit       ErrKind = "non_zero_exit"
	ErrUnparseableOutput ErrKind = "unparseable_output"
	ErrUnknownPackage    ErrKind = "unknown_package"
	ErrAmbiguousOutput   ErrKind = "ambiguous_output"
)

// Error is a device-level (adb) failure.
type Error struct {
	Kind ErrKind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

// NewError builds a *Error with the given kind and a guidance message.
func NewError(kind ErrKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}
