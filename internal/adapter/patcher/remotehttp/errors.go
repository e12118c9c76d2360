package remotehttp

import "fmt"

// ErrorType represents the category of error that occurred.
type ErrorType int

const (
	ErrTypeAuthentication ErrorType = iota
	ErrTypeRateLimit
	ErrTypeServiceUnavailable
	ErrTypeInvalidRequest
	ErrTypeTimeout
	ErrTypeUnknown
)

// String returns a human-readable description of the error type.
func (e ErrorType) String() string {
	switch e {
	case ErrTypeAuthentication:
		return "authentication error"
	case ErrTypeRateLimit:
		return "rate limit exceeded"
	case ErrTypeServiceUnavailable:
		return "service unavailable"
	case ErrTypeInvalidRequest:
		return "invalid request"
	case ErrTypeTimeout:
		return "timeout"
	default:
		return "unknown error"
	}
}

// Error is a patch service error with enough context to decide on a retry.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Retryable  bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("patch service: %s: %s (status: %d)", e.Type.String(), e.Message, e.StatusCode)
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// classifyStatus maps an HTTP status code to a typed error.
func classifyStatus(status int, message string) *Error {
	switch {
	case status == 401 || status == 403:
		return &Error{Type: ErrTypeAuthentication, Message: message, StatusCode: status}
	case status == 429:
		return &Error{Type: ErrTypeRateLimit, Message: message, StatusCode: status, Retryable: true}
	case status >= 500:
		return &Error{Type: ErrTypeServiceUnavailable, Message: message, StatusCode: status, Retryable: true}
	case status >= 400:
		return &Error{Type: ErrTypeInvalidRequest, Message: message, StatusCode: status}
	default:
		return &Error{Type: ErrTypeUnknown, Message: message, StatusCode: status}
	}
}
