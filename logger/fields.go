package logger

import (
	"time"
)

// Standard field keys for structured logging.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldTraceID   = "trace_id"
	FieldRequestID = "request_id"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldDuration  = "duration_ms"

	// Stream pipeline keys.
	FieldSessionID = "session_id"
	FieldState     = "state"
	FieldSequence  = "sequence"
	FieldModel     = "model"
	FieldProvider  = "provider"
	FieldFraming   = "framing"
	FieldChunks    = "chunks"
	FieldUnits     = "units"
	FieldBytes     = "bytes"
)

// Fields builds a map from alternating key-value pairs.
//
//	logger.Info("flushed", logger.Fields("session_id", id, "units", n))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(op string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldError:     err.Error(),
	}
}

// DurationFields creates fields for a timed operation.
func DurationFields(op string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldDuration:  d.Milliseconds(),
	}
}

// MergeWithError adds an error field to an existing map.
func MergeWithError(fields map[string]interface{}, err error) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields[FieldError] = err.Error()
	return fields
}
