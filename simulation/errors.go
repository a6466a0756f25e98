package simulation

import "fmt"

// Error is a fatal simulation failure: a degenerate grid or sample size, or a path that
// produced a non-finite value. No partial result accompanies it.
type Error struct {
	Reason string
	Path   int // -1 when not tied to a path
	Err    error
}

func (e *Error) Error() string {
	msg := "simulation: " + e.Reason
	if e.Path >= 0 {
		msg = fmt.Sprintf("%s (path %d)", msg, e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an Error not tied to a particular path.
func Errorf(format string, args ...any) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...), Path: -1}
}
