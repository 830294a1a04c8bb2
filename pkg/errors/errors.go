package errors

import (
	"errors"
	"fmt"
)

// Error represents a typed sync error carrying a stable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so errors.Is works against the
// predefined values below regardless of message or cause.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return t.Code == e.Code
}

// New creates a new Error instance.
func New(code string, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Predefined errors for the sync pipeline.
var (
	ErrHTTPFetch     = New("HTTP_FETCH_ERROR", "failed to fetch students")
	ErrJSONDecode    = New("JSON_DECODE_ERROR", "failed to decode students payload")
	ErrEmptyData     = New("EMPTY_DATA", "API response does not contain valid data")
	ErrPersistence   = New("PERSISTENCE_ERROR", "failed to persist student")
	ErrConfiguration = New("CONFIGURATION_ERROR", "invalid configuration")
	ErrLock          = New("LOCK_ERROR", "failed to coordinate sync lock")
	ErrInternal      = New("INTERNAL_ERROR", "internal error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Code extracts the code of err, or an empty string when err is nil.
func Code(err error) string {
	if appErr := FromError(err); appErr != nil {
		return appErr.Code
	}
	return ""
}
