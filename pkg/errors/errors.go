package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
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

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound            = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict            = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation          = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal            = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss           = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrInvalidStudent      = New("INVALID_STUDENT", http.StatusBadRequest, "student missing or inactive")
	ErrInvalidBook         = New("INVALID_BOOK", http.StatusBadRequest, "book missing or inactive")
	ErrBookUnavailable     = New("BOOK_UNAVAILABLE", http.StatusConflict, "book has an outstanding loan")
	ErrInvalidDateRange    = New("INVALID_DATE_RANGE", http.StatusBadRequest, "invalid date range")
	ErrAlreadyClosed       = New("ALREADY_CLOSED", http.StatusConflict, "loan already closed")
	ErrConcurrencyConflict = New("CONCURRENCY_CONFLICT", http.StatusConflict, "record changed concurrently")
)

// FieldError reports a single failed precondition tied to an input field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validation aggregates field errors so callers see every failed
// precondition in one response instead of the first one only.
type Validation struct {
	Fields []FieldError `json:"fields"`
}

// Error implements the error interface.
func (v *Validation) Error() string {
	if v == nil || len(v.Fields) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s: %s", v.Fields[0].Field, v.Fields[0].Message)
}

// Add appends a field error and returns the receiver for chaining.
func (v *Validation) Add(field, code, message string) *Validation {
	v.Fields = append(v.Fields, FieldError{Field: field, Code: code, Message: message})
	return v
}

// HasErrors reports whether any field error was collected.
func (v *Validation) HasErrors() bool {
	return v != nil && len(v.Fields) > 0
}

// Status picks the response status for the collected set. A single
// conflict-class failure promotes the whole response to its status so
// concurrent-loser creates surface as 409 rather than 400.
func (v *Validation) Status() int {
	status := http.StatusBadRequest
	for _, f := range v.Fields {
		if f.Code == ErrBookUnavailable.Code {
			status = http.StatusConflict
		}
	}
	return status
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// AsValidation extracts a *Validation from an error chain.
func AsValidation(err error) (*Validation, bool) {
	var v *Validation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
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
