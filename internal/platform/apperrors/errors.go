// Package apperrors defines the structured error taxonomy shared by the
// ingestion pipeline, the analytics engine, and the HTTP surface.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an AppError for HTTP-status mapping and log routing.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeCIRequest  ErrorType = "ci_request"
	ErrorTypeParse      ErrorType = "parse"
	ErrorTypeImport     ErrorType = "import"
	ErrorTypeSchedule   ErrorType = "schedule"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeInternal   ErrorType = "internal"
)

var statusByType = map[ErrorType]int{
	ErrorTypeValidation: http.StatusBadRequest,
	ErrorTypeNotFound:   http.StatusNotFound,
	ErrorTypeAuth:       http.StatusUnauthorized,
	ErrorTypeCIRequest:  http.StatusBadGateway,
	ErrorTypeParse:      http.StatusUnprocessableEntity,
	ErrorTypeImport:     http.StatusConflict,
	ErrorTypeSchedule:   http.StatusConflict,
	ErrorTypeDatabase:   http.StatusInternalServerError,
	ErrorTypeInternal:   http.StatusInternalServerError,
}

// AppError is the structured error type returned by every core package.
type AppError struct {
	Type       ErrorType
	Message    string
	Details    string
	StatusCode int
	Cause      error
}

// New creates an AppError of the given type with the canonical status code.
func New(t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusByType[t],
	}
}

// Newf creates an AppError with a formatted message.
func Newf(t ErrorType, format string, args ...any) *AppError {
	return New(t, fmt.Sprintf(format, args...))
}

// Wrap creates an AppError that carries an underlying cause.
func Wrap(cause error, t ErrorType, message string) *AppError {
	err := New(t, message)
	err.Cause = cause
	return err
}

// Wrapf creates a wrapped AppError with a formatted message.
func Wrapf(cause error, t ErrorType, format string, args ...any) *AppError {
	return Wrap(cause, t, fmt.Sprintf(format, args...))
}

// WithDetails attaches additional context to an error in place.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithDetailsf attaches formatted additional context in place.
func (e *AppError) WithDetailsf(format string, args ...any) *AppError {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the canonical HTTP status code for e, defaulting to 500.
func (e *AppError) HTTPStatus() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// As is a convenience wrapper around errors.As for *AppError.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// StatusFor returns the HTTP status code that should be used for err,
// falling back to 500 for errors that are not an *AppError.
func StatusFor(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
