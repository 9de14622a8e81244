package taskerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a task failure. The set is closed: every error leaving a
// handler is reported as exactly one of these kinds.
type Kind string

const (
	// KindPathViolation marks an attempt to reach a path outside the sandbox root.
	KindPathViolation Kind = "PathViolation"
	// KindUnrecognizedTask marks task text that no registered predicate matched.
	KindUnrecognizedTask Kind = "UnrecognizedTask"
	// KindMissingParameter marks a required value absent from the task text.
	KindMissingParameter Kind = "MissingParameter"
	// KindNotFound marks an expected input file or record that does not exist.
	KindNotFound Kind = "NotFound"
	// KindHandlerExecution wraps failures from subprocesses, external calls and parsing.
	KindHandlerExecution Kind = "HandlerExecutionError"
)

// ClientFault reports whether the kind is caused by the caller's input.
func (k Kind) ClientFault() bool {
	switch k {
	case KindPathViolation, KindUnrecognizedTask, KindMissingParameter:
		return true
	}
	return false
}

// HTTPStatus maps the kind onto the status code used at the network boundary.
func (k Kind) HTTPStatus() int {
	if k.ClientFault() {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Error is a typed task failure. Msg is safe to show to callers; Err keeps
// the underlying cause for logging and errors.Is/As.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so callers can test
// errors.Is(err, &taskerr.Error{Kind: taskerr.KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func PathViolation(format string, args ...any) error {
	return newf(KindPathViolation, format, args...)
}

func UnrecognizedTask(format string, args ...any) error {
	return newf(KindUnrecognizedTask, format, args...)
}

func MissingParameter(format string, args ...any) error {
	return newf(KindMissingParameter, format, args...)
}

func NotFound(format string, args ...any) error {
	return newf(KindNotFound, format, args...)
}

func Execution(format string, args ...any) error {
	return newf(KindHandlerExecution, format, args...)
}

// Wrap attaches a kind and message to cause. A nil cause yields nil.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain. Untyped errors
// are handler execution failures.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindHandlerExecution
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}
