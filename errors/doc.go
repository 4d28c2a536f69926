// Package errors provides the structured error type used across chatstream.
// Errors carry a machine-readable code, an HTTP status, and a retryable flag;
// ToResponse renders the {"error": ..., "code": ...} body sent to clients.
package errors
