package errors

import (
	"fmt"
	"net/http"
)

// AppError is the structured error type shared by the server, the providers
// and the stream pipeline.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches another *AppError by code, so errors.Is(err, &AppError{Code: c})
// tests for a code anywhere in the chain.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithCause sets the underlying cause and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Stream pipeline errors ---

// FrameDecode reports a provider frame that could not be decoded. The frame is
// skipped; the stream continues.
func FrameDecode(reason string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeFrameDecode, Message: fmt.Sprintf("Malformed stream frame: %s", reason),
		HTTPStatus: http.StatusBadGateway, Retryable: false, Cause: cause,
	}
}

// Transport reports a failure writing to or reading from the downstream
// transport. It ends the stream.
func Transport(op string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeTransport, Message: fmt.Sprintf("Stream transport failed during %s", op),
		HTTPStatus: http.StatusBadGateway, Retryable: false, Cause: cause,
		Details: map[string]any{"operation": op},
	}
}

// Upstream reports an error returned by the model provider. status is the
// provider's HTTP status when known, otherwise 0.
func Upstream(provider, message string, status int) *AppError {
	httpStatus := http.StatusBadGateway
	retryable := false
	switch {
	case status == http.StatusTooManyRequests:
		httpStatus, retryable = http.StatusTooManyRequests, true
	case status >= 400 && status < 500:
		httpStatus = status
	case status >= 500:
		retryable = true
	}
	details := map[string]any{"provider": provider}
	if status != 0 {
		details["upstream_status"] = status
	}
	return &AppError{
		Code: ErrCodeUpstream, Message: message,
		HTTPStatus: httpStatus, Retryable: retryable, Details: details,
	}
}

// --- Common constructors ---

// ServiceUnavailable creates an error for a dependency that is temporarily unavailable.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// Timeout creates an error for an operation that ran past its deadline.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// RateLimited creates an error for too many requests.
func RateLimited() *AppError {
	return &AppError{
		Code: ErrCodeRateLimited, Message: "Too many requests. Please wait a moment and try again.",
		HTTPStatus: http.StatusTooManyRequests, Retryable: true,
	}
}

// NotFound creates an error for a missing resource.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// Conflict creates an error for a request that conflicts with current state.
func Conflict(reason string) *AppError {
	return &AppError{
		Code: ErrCodeConflict, Message: reason,
		HTTPStatus: http.StatusConflict, Retryable: false,
	}
}

// InvalidInput creates an error for a rejected request field.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates an error for a request that failed validation.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// Internal wraps an unexpected error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// ExternalServiceError creates an error for a failed call to a non-model
// dependency such as a knowledge base.
func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExternalService, Message: fmt.Sprintf("The %s service encountered an error. Please try again.", service),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"service": service}, Cause: cause,
	}
}
