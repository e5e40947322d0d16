package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the different classes of failure in the pipeline
type ErrorType string

const (
	ErrorTypeLocator            ErrorType = "locator"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeTransient          ErrorType = "transient"
	ErrorTypeTransientExhausted ErrorType = "transient_exhausted"
	ErrorTypeTimeout            ErrorType = "timeout"
	ErrorTypeNetwork            ErrorType = "network"
	ErrorTypeStatus             ErrorType = "status"
	ErrorTypeConvert            ErrorType = "convert"
	ErrorTypeIO                 ErrorType = "io"
	ErrorTypeCanceled           ErrorType = "canceled"
	ErrorTypeUnknown            ErrorType = "unknown"
)

// Error represents a pipeline error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, err error, msg string) *Error {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &Error{Type: t, Message: msg, Err: err}
}

// WithStatus creates a typed error for an HTTP status code
func WithStatus(t ErrorType, code int, msg string) *Error {
	return &Error{Type: t, Message: msg, Code: code}
}

// TypeOf returns the type of the outermost typed error in the chain
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is matches a bare type-only target, so errors.Is(err, &Error{Type: t})
// finds a typed error anywhere in a wrapped or joined tree.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Message == "" && t.Code == 0 && t.Err == nil
}

// Is reports whether err carries the given type anywhere in its tree
func Is(err error, t ErrorType) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, &Error{Type: t})
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeTransient:
		return true
	case ErrorTypeNotFound, ErrorTypeTimeout, ErrorTypeStatus, ErrorTypeConvert,
		ErrorTypeIO, ErrorTypeLocator, ErrorTypeCanceled, ErrorTypeTransientExhausted:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a transient failure
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
