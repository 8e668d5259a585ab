// Package errors defines the application error taxonomy shared by every layer.
// Services return *AppError values; the HTTP layer maps them to responses.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType identifies the category of an AppError.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	ErrorTypeGeneration  ErrorType = "GENERATION"
	ErrorTypeStorage     ErrorType = "STORAGE"
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
)

// AppError is the custom error type for the application.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode sets a machine-readable code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails attaches structured details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func newError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		Cause:      cause,
		HTTPStatus: status,
	}
}

// NewValidation creates a validation error
func NewValidation(message string) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, nil)
}

// NewNotFound creates a not found error
func NewNotFound(message string) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, message, nil)
}

// NewConflict creates a conflict error
func NewConflict(message string) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message, nil)
}

// NewForbidden creates a forbidden error
func NewForbidden(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return newError(ErrorTypeForbidden, http.StatusForbidden, message, nil)
}

// NewUnauthorized creates an unauthorized error
func NewUnauthorized(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return newError(ErrorTypeUnauthorized, http.StatusUnauthorized, message, nil)
}

// NewGeneration creates an error for a failed or unusable text generation call.
func NewGeneration(message string, err error) *AppError {
	return newError(ErrorTypeGeneration, http.StatusBadGateway, message, err)
}

// NewStorage creates an error for a failed key-value store operation.
func NewStorage(operation string, err error) *AppError {
	return newError(ErrorTypeStorage, http.StatusInternalServerError,
		fmt.Sprintf("store operation '%s' failed", operation), err)
}

// NewInternal creates an internal error
func NewInternal(message string, err error) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, err)
}

// NewUnavailable creates a service unavailable error
func NewUnavailable(service string, err error) *AppError {
	return newError(ErrorTypeUnavailable, http.StatusServiceUnavailable,
		fmt.Sprintf("service '%s' is unavailable", service), err)
}

// Wrap adds context to err. AppErrors keep their type and status; anything
// else becomes an internal error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if appErr := GetAppError(err); appErr != nil {
		return &AppError{
			Type:       appErr.Type,
			Message:    fmt.Sprintf("%s: %s", message, appErr.Message),
			Code:       appErr.Code,
			Details:    appErr.Details,
			Cause:      appErr.Cause,
			HTTPStatus: appErr.HTTPStatus,
		}
	}

	return NewInternal(message, err)
}

// GetAppError extracts an AppError from the chain, or nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func isType(err error, t ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == t
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool { return isType(err, ErrorTypeValidation) }

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool { return isType(err, ErrorTypeConflict) }

// IsForbidden checks if an error is a forbidden error
func IsForbidden(err error) bool { return isType(err, ErrorTypeForbidden) }

// IsUnauthorized checks if an error is an unauthorized error
func IsUnauthorized(err error) bool { return isType(err, ErrorTypeUnauthorized) }

// IsGeneration checks if an error is a generation error
func IsGeneration(err error) bool { return isType(err, ErrorTypeGeneration) }

// IsStorage checks if an error is a storage error
func IsStorage(err error) bool { return isType(err, ErrorTypeStorage) }
