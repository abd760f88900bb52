package errors

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Error codes shared by API responses, CLI output and Temporal error types
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "RESOURCE_NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout            = "TIMEOUT"
)

// AppError is a failure with a stable code, a client-safe message and the
// HTTP status it renders as. Details are keyed by the JSON path of the
// offending field.
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"`
}

func (e *AppError) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails merges details into the error
func (e *AppError) WithDetails(details map[string]string) *AppError {
	for key, value := range details {
		e.WithDetail(key, value)
	}
	return e
}

// WithDetail sets one detail
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Wrap records err as the cause
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// Retryable reports whether repeating the same request may succeed.
// Client errors are final.
func (e *AppError) Retryable() bool {
	return e.HTTPStatus >= http.StatusInternalServerError
}

// NewAppError creates a new AppError
func NewAppError(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// ErrValidation creates a validation error
func ErrValidation(message string) *AppError {
	return NewAppError(CodeValidationError, message, http.StatusBadRequest)
}

// ErrValidationWithFields creates a validation error with per-field messages
func ErrValidationWithFields(message string, fields map[string]string) *AppError {
	return ErrValidation(message).WithDetails(fields)
}

// ErrNotFound creates a not found error
func ErrNotFound(resource string) *AppError {
	return NewAppError(CodeNotFound, resource+" not found", http.StatusNotFound)
}

// ErrNotFoundWithID creates a not found error naming the missing ID
func ErrNotFoundWithID(resource, id string) *AppError {
	return ErrNotFound(resource).WithDetail("id", id)
}

func ErrConflict(message string) *AppError {
	return NewAppError(CodeConflict, message, http.StatusConflict)
}

// ErrInternal creates an internal error. The message is shown to clients, so
// causes belong in Wrap.
func ErrInternal(message string) *AppError {
	if message == "" {
		message = "an internal error occurred"
	}
	return NewAppError(CodeInternalError, message, http.StatusInternalServerError)
}

func ErrBadRequest(message string) *AppError {
	return NewAppError(CodeBadRequest, message, http.StatusBadRequest)
}

// ErrServiceUnavailable reports a dependency that cannot serve right now
func ErrServiceUnavailable(dependency string) *AppError {
	return NewAppError(CodeServiceUnavailable, dependency+" is temporarily unavailable", http.StatusServiceUnavailable)
}

func ErrTimeout(operation string) *AppError {
	return NewAppError(CodeTimeout, operation+" timed out", http.StatusGatewayTimeout)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// AsAppError finds an AppError in err's chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FromError returns the AppError in err's chain, or an internal error wrapping err
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return ErrInternal("").Wrap(err)
}

// messageClasses recognise errors from packages that do not export sentinels.
// The first class with a matching fragment wins.
var messageClasses = []struct {
	fragments []string
	build     func(msg string) *AppError
}{
	{[]string{"not found"}, func(string) *AppError { return ErrNotFound("resource") }},
	{[]string{"already exists"}, ErrConflict},
	{[]string{"invalid", "required", "duplicate"}, ErrValidation},
	{[]string{"timeout", "deadline exceeded"}, func(string) *AppError { return ErrTimeout("operation") }},
	{[]string{"circuit breaker is open", "too many requests"}, func(string) *AppError { return ErrServiceUnavailable("storage") }},
}

// MapDomainError maps an arbitrary error onto an AppError. Callers that own
// sentinel errors should match them with errors.Is before falling back here.
func MapDomainError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout("operation").Wrap(err)
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, class := range messageClasses {
		for _, fragment := range class.fragments {
			if strings.Contains(lower, fragment) {
				return class.build(msg).Wrap(err)
			}
		}
	}
	return ErrInternal("").Wrap(err)
}
