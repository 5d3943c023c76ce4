// Package apperr provides the typed errors returned by the recruitment core.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeValidation covers illegal enum values and missing required fields.
	CodeValidation Code = "VALIDATION"
	// CodeAuthorization means the actor lacks a grant or the record is not public.
	CodeAuthorization Code = "AUTHORIZATION"
	// CodeNotFound means an entity, grant, campaign or call list does not exist.
	CodeNotFound Code = "NOT_FOUND"
	// CodeConflict means a concurrent write won the race.
	CodeConflict Code = "CONFLICT"
	// CodeStorageUnavailable is a transient storage failure. Safe to retry.
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	// CodeInternal is anything else.
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps a code to the status the web layer should answer with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAuthorization:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a failed call with this code may be retried as-is.
func (c Code) Retryable() bool {
	return c == CodeStorageUnavailable
}

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Sentinels for errors.Is matching by code.
var (
	ErrValidation         = &Error{Code: CodeValidation}
	ErrAuthorization      = &Error{Code: CodeAuthorization}
	ErrNotFound           = &Error{Code: CodeNotFound}
	ErrConflict           = &Error{Code: CodeConflict}
	ErrStorageUnavailable = &Error{Code: CodeStorageUnavailable}
)

func (e *Error) Error() string {
	if e.Cause != nil && e.Message != "" {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates a domain error carrying extra context.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Validation is shorthand for New(CodeValidation, message).
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Unauthorized is shorthand for New(CodeAuthorization, message).
func Unauthorized(message string) *Error {
	return New(CodeAuthorization, message)
}

// NotFound returns a not-found error naming the missing resource.
func NotFound(resource, id string) *Error {
	return WithMetadata(CodeNotFound, resource+" not found", map[string]string{
		"resource": resource,
		"id":       id,
	})
}

// CodeOf extracts the code from err, or CodeInternal when err is not an *Error.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsRetryable reports whether err is a transient failure.
func IsRetryable(err error) bool {
	return CodeOf(err).Retryable()
}
