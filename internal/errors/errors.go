// Package errors provides coded domain errors for the library engine.
//
// Usage:
//
//	// In providers and services - return typed errors
//	if resp.StatusCode == http.StatusNotFound {
//	    return errors.NotFoundf("manga %q", slug)
//	}
//
//	// In workers - branch with errors.Is
//	if errors.Is(err, errors.ErrAuth) {
//	    notifier.Send("Login required", err.Error())
//	}
//
//	// Or use the Code directly for switch statements
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodeNetwork, errors.CodeTimeout:
//	        // transient
//	    case errors.CodeParse:
//	        // provider drift
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error kind.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound    Code = "NOT_FOUND"
	CodeNetwork     Code = "NETWORK"
	CodeTimeout     Code = "TIMEOUT"
	CodeHTTPStatus  Code = "HTTP_STATUS"
	CodeParse       Code = "PARSE"
	CodeDecode      Code = "DECODE"
	CodeFilesystem  Code = "FILESYSTEM"
	CodeDatabase    Code = "DATABASE"
	CodeAuth        Code = "AUTH"
	CodeValidation  Code = "VALIDATION"
	CodeConflict    Code = "CONFLICT"
	CodeUnsupported Code = "UNSUPPORTED"
	CodeInternal    Code = "INTERNAL"
)

// Transient reports whether errors of this kind are worth retrying later.
func (c Code) Transient() bool {
	switch c {
	case CodeNetwork, CodeTimeout, CodeHTTPStatus:
		return true
	default:
		return false
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound    = &Error{Code: CodeNotFound, Message: "not found"}
	ErrNetwork     = &Error{Code: CodeNetwork, Message: "network error"}
	ErrTimeout     = &Error{Code: CodeTimeout, Message: "timeout"}
	ErrHTTPStatus  = &Error{Code: CodeHTTPStatus, Message: "unexpected http status"}
	ErrParse       = &Error{Code: CodeParse, Message: "parse error"}
	ErrDecode      = &Error{Code: CodeDecode, Message: "decode error"}
	ErrFilesystem  = &Error{Code: CodeFilesystem, Message: "filesystem error"}
	ErrDatabase    = &Error{Code: CodeDatabase, Message: "database error"}
	ErrAuth        = &Error{Code: CodeAuth, Message: "authentication required"}
	ErrValidation  = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict    = &Error{Code: CodeConflict, Message: "conflict"}
	ErrUnsupported = &Error{Code: CodeUnsupported, Message: "unsupported"}
	ErrInternal    = &Error{Code: CodeInternal, Message: "internal error"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Parse creates a parse error, used when a remote payload no longer has the expected shape.
func Parse(msg string) *Error {
	return &Error{Code: CodeParse, Message: msg}
}

// Parsef creates a parse error with formatted message.
func Parsef(format string, args ...any) *Error {
	return &Error{Code: CodeParse, Message: fmt.Sprintf(format, args...)}
}

// Decodef creates a decode error with formatted message.
func Decodef(format string, args ...any) *Error {
	return &Error{Code: CodeDecode, Message: fmt.Sprintf(format, args...)}
}

// Auth creates an authentication error.
func Auth(msg string) *Error {
	return &Error{Code: CodeAuth, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Conflictf creates a conflict error with formatted message.
func Conflictf(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// Unsupported creates an unsupported-operation error.
func Unsupported(msg string) *Error {
	return &Error{Code: CodeUnsupported, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
