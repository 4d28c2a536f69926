package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Stream pipeline errors
const (
	// ErrCodeFrameDecode marks a provider frame that could not be decoded.
	ErrCodeFrameDecode ErrorCode = "FRAME_DECODE_ERROR"
	// ErrCodeTransport marks a downstream write or read failure.
	ErrCodeTransport ErrorCode = "TRANSPORT_ERROR"
	// ErrCodeUpstream marks an error reported by the model provider.
	ErrCodeUpstream ErrorCode = "UPSTREAM_ERROR"
)

// Availability errors
const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
)

// Request errors
const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Internal errors
const (
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeRateLimited:        true,
	ErrCodeExternalService:    true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
