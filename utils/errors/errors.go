package errors

import (
	"fmt"
	"net/http"
)

// APIError represents a custom error type for API responses
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`

	cause error
}

// Error returns the error message
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any APIError carrying the same code, so wrapped copies of a
// sentinel still satisfy errors.Is.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *APIError) Unwrap() error {
	return e.cause
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput = NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrUnauthorized = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotFound     = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrInternal     = NewAPIError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrConflict     = NewAPIError("CONFLICT", "Resource conflict", http.StatusConflict)

	// Discovery taxonomy
	ErrValidation          = NewAPIError("VALIDATION_ERROR", "Invalid field value", http.StatusBadRequest)
	ErrAdapterTimeout      = NewAPIError("ADAPTER_TIMEOUT", "Provider did not answer within its budget", http.StatusGatewayTimeout)
	ErrProviderUnavailable = NewAPIError("PROVIDER_UNAVAILABLE", "Provider unavailable", http.StatusServiceUnavailable)
	ErrCycleInFlight       = NewAPIError("CYCLE_IN_FLIGHT", "A discovery cycle is already running", http.StatusConflict)
	ErrNoSession           = NewAPIError("NO_SESSION", "No active trip session", http.StatusConflict)
)

func Wrap(err error, code, message string, status int) *APIError {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}
	return &APIError{Code: code, Message: message, Status: status, Details: err.Error(), cause: err}
}

// WithCause returns a copy of the sentinel carrying cause as its details.
func WithCause(sentinel *APIError, cause error) *APIError {
	e := *sentinel
	e.cause = cause
	if cause != nil {
		e.Details = cause.Error()
	}
	return &e
}

// Validation reports a malformed field.
func Validation(field, reason string) *APIError {
	e := *ErrValidation
	e.Details = field + ": " + reason
	return &e
}
