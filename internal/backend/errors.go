package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (connection refused, timeout, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeAuth indicates an authentication failure (rejected password or token)
	ErrTypeAuth
	// ErrTypeHTTP indicates an HTTP-level error (non-2xx status code)
	ErrTypeHTTP
	// ErrTypeParse indicates a parsing error (malformed JSON response)
	ErrTypeParse
	// ErrTypeTokenMissing indicates an authenticated call was attempted with no cached token
	ErrTypeTokenMissing
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeAuth:
		return "Authentication Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeTokenMissing:
		return "Token Not Available"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error represents a failure from the backend API, carried as a value across
// the client boundary. Callers inspect the category instead of matching on
// message strings; nothing in this package panics on a failed call.
type Error struct {
	Type       ErrorType // Category of error
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (if applicable)
	Err        error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a network-level error
func NewNetworkError(message string, err error) *Error {
	return &Error{Type: ErrTypeNetwork, Message: message, Err: err}
}

// NewAuthError creates an authentication error
func NewAuthError(message string, statusCode int) *Error {
	return &Error{Type: ErrTypeAuth, Message: message, StatusCode: statusCode}
}

// NewHTTPError creates an HTTP-level error
func NewHTTPError(statusCode int, message string) *Error {
	return &Error{Type: ErrTypeHTTP, Message: message, StatusCode: statusCode}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *Error {
	return &Error{Type: ErrTypeParse, Message: message, Err: err}
}

// NewTokenMissingError creates the failure returned when an authenticated
// call is attempted before any token has been cached
func NewTokenMissingError() *Error {
	return &Error{
		Type:       ErrTypeTokenMissing,
		Message:    "Token is not available",
		StatusCode: http.StatusUnauthorized,
	}
}

func isType(err error, t ErrorType) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Type == t
	}
	return false
}

// IsNetworkError checks if an error is a network error
func IsNetworkError(err error) bool { return isType(err, ErrTypeNetwork) }

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool { return isType(err, ErrTypeAuth) }

// IsHTTPError checks if an error is an HTTP error
func IsHTTPError(err error) bool { return isType(err, ErrTypeHTTP) }

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool { return isType(err, ErrTypeParse) }

// IsTokenMissing checks if an error is the missing-token failure
func IsTokenMissing(err error) bool { return isType(err, ErrTypeTokenMissing) }
