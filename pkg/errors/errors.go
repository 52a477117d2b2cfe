// Package errors defines the Thorium error taxonomy (spec §7): every
// mutation path returns one of these kinds so HTTP handlers, the scaler
// loop and the trigger evaluator can decide whether to surface the
// message, log a trace id, or retry with backoff.
package errors

import (
	"fmt"
	"runtime"
)

// Code identifies a taxonomy bucket. HTTP status and retry behaviour are
// derived from Code alone (see pkg/api/errors.go and pkg/trigger).
type Code string

const (
	Validation        Code = "VALIDATION"
	Unauthorized      Code = "UNAUTHORIZED"
	Forbidden         Code = "FORBIDDEN"
	Conflict          Code = "CONFLICT"
	NotFound          Code = "NOT_FOUND"
	ServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	Internal          Code = "INTERNAL"
	TransientUpstream Code = "TRANSIENT_UPSTREAM"
)

// Error is the single error type returned by every Thorium package.
// InnerError carries the original cause for logging; it is never
// serialised to a client.
type Error struct {
	Code       Code
	Message    string
	InnerError error
	Stack      []runtime.Frame
}

func (e *Error) Error() string {
	if e.InnerError != nil {
		return fmt.Sprintf("error %v, code %s, message %s", e.InnerError, e.Code, e.Message)
	}
	return fmt.Sprintf("code %s, message %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.InnerError }

// GetTopStackString renders the innermost captured frame, used by log
// lines that want a one-line locator without the full trace.
func (e *Error) GetTopStackString() string {
	if len(e.Stack) == 0 {
		return ""
	}
	f := e.Stack[0]
	return fmt.Sprintf("%s:%d %s", f.File, f.Line, funcName(f))
}

// GetStackString renders every captured frame, one per line.
func (e *Error) GetStackString() string {
	if len(e.Stack) == 0 {
		return ""
	}
	s := ""
	for _, f := range e.Stack {
		s += fmt.Sprintf("%s:%d %s\n", f.File, f.Line, funcName(f))
	}
	return s
}

func funcName(f runtime.Frame) string {
	if f.Func == nil {
		return "?"
	}
	return f.Func.Name()
}

func captureStack(skip int) []runtime.Frame {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]runtime.Frame, 0, n)
	for {
		f, more := frames.Next()
		out = append(out, f)
		if !more {
			break
		}
	}
	return out
}

func newErr(code Code, msg string, inner error) *Error {
	return &Error{Code: code, Message: msg, InnerError: inner, Stack: captureStack(1)}
}

func NewValidation(msg string) *Error        { return newErr(Validation, msg, nil) }
func NewBadRequest(msg string) *Error        { return newErr(Validation, msg, nil) }
func NewUnauthorized(msg string) *Error      { return newErr(Unauthorized, msg, nil) }
func NewForbidden(msg string) *Error         { return newErr(Forbidden, msg, nil) }
func NewConflict(msg string) *Error          { return newErr(Conflict, msg, nil) }
func NewNotFound(msg string) *Error          { return newErr(NotFound, msg, nil) }
func NewUnavailable(msg string) *Error       { return newErr(ServiceUnavailable, msg, nil) }
func NewTransientUpstream(msg string, inner error) *Error {
	return newErr(TransientUpstream, msg, inner)
}
func NewInternalError(msg string) *Error { return newErr(Internal, msg, nil) }

// Wrap captures inner as the cause of a new Internal error, the way a
// datastore or object-store failure is surfaced: a trace id externally,
// the full error in logs.
func Wrap(inner error, msg string) *Error {
	return newErr(Internal, msg, inner)
}

// As extracts a *Error from err, the way callers decide how to respond.
func As(err error) (*Error, bool) {
	te, ok := err.(*Error)
	return te, ok
}

// Retryable reports whether a caller should retry with backoff, per the
// taxonomy table in spec §7.
func (e *Error) Retryable() bool {
	return e.Code == ServiceUnavailable || e.Code == TransientUpstream
}
