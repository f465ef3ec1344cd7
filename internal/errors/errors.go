package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication failures are always fatal to the connection. Clients only
	// ever see ErrCodeUnauthenticated; the specific cause stays in internal logs.
	ErrCodeUnauthenticated  ErrorCode = "UNAUTHENTICATED"
	ErrCodeTimestampExpired ErrorCode = "TIMESTAMP_EXPIRED"
	ErrCodeKeyMismatch      ErrorCode = "KEY_MISMATCH"
	ErrCodeBadSignature     ErrorCode = "BAD_SIGNATURE"
	ErrCodeBlocked          ErrorCode = "BLOCKED"

	// Protocol errors are scoped to the offending frame, never fatal
	ErrCodeProtocol     ErrorCode = "PROTOCOL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// A storage failure voids the at-least-once guarantee and is reported to
	// the sender
	ErrCodeStorage ErrorCode = "STORAGE_ERROR"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeExternal ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

// Unauthenticated is the only authentication error surfaced to clients. The
// detailed cause is logged server-side and never echoed to the peer.
func Unauthenticated() *AppError {
	return New(ErrCodeUnauthenticated, "Authentication failed")
}

func TimestampExpired() *AppError {
	return New(ErrCodeTimestampExpired, "Auth timestamp outside freshness window")
}

func KeyMismatch() *AppError {
	return New(ErrCodeKeyMismatch, "Declared public key does not match registered key")
}

func BadSignature() *AppError {
	return New(ErrCodeBadSignature, "Challenge signature verification failed")
}

func Blocked() *AppError {
	return New(ErrCodeBlocked, "Blocked relationship between parties")
}

func Protocol(message string) *AppError {
	return New(ErrCodeProtocol, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func Storage(cause error) *AppError {
	return Wrap(ErrCodeStorage, "Message could not be stored for later delivery", cause)
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

func External(service string, cause error) *AppError {
	return Wrap(ErrCodeExternal, fmt.Sprintf("External service error: %s", service), cause)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsAuthFailure reports whether an error belongs to the authentication family,
// all of which terminate the connection.
func IsAuthFailure(err error) bool {
	switch GetCode(err) {
	case ErrCodeUnauthenticated, ErrCodeTimestampExpired, ErrCodeKeyMismatch,
		ErrCodeBadSignature, ErrCodeBlocked:
		return true
	}
	return false
}
