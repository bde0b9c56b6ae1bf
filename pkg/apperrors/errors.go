// Package apperrors provides structured error handling for AppPulse.
// It implements coded errors with context so stages and the HTTP layer
// can react programmatically instead of matching message strings.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies an error class for programmatic handling.
type Code string

const (
	// Source errors (1xx): the input file itself is unusable.
	CodeSourceFormat Code = "E101" // identifying column absent, unreadable header
	CodeFileNotFound Code = "E102"

	// Row errors (2xx): a single record failed validation. Recovered
	// locally (drop or default); never aborts a batch.
	CodeRowData Code = "E201"

	// Store errors (3xx): fatal to the current stage. Retry belongs to
	// the scheduler, not to the stage.
	CodeConnection     Code = "E301"
	CodeSchemaMismatch Code = "E302"

	// System errors (4xx)
	CodeContextCanceled Code = "E401"

	// Unknown
	CodeUnknown Code = "E999"
)

// Error is the coded error type used across pipeline stages.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		sb.WriteString(" (")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, v))
			first = false
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on code so sentinel comparisons work through wrapping.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds a key-value pair to the error context.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a new coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a coded error around a cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code from any error, returning CodeUnknown for
// errors that did not originate here.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsConnection reports whether err is a store-unreachable error.
func IsConnection(err error) bool {
	return CodeOf(err) == CodeConnection
}

// IsSchemaMismatch reports whether err is a schema contract violation.
func IsSchemaMismatch(err error) bool {
	return CodeOf(err) == CodeSchemaMismatch
}

// IsSourceFormat reports whether err is a fatal source format error.
func IsSourceFormat(err error) bool {
	c := CodeOf(err)
	return c == CodeSourceFormat || c == CodeFileNotFound
}
