// Package server runs the chatstream HTTP API on Gin behind an h2c handler,
// so streams work over HTTP/1.1 and cleartext HTTP/2 on the same port.
//
// # Middleware
//
// Built-in middleware (server/middleware), applied at the handler level so
// it covers every mount:
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: request ID generation and propagation
//   - CORS: cross-origin resource sharing
//   - BodySizeLimit: request body size limits
//   - RequestLogger: request logging with duration tracking
//   - RateLimit: per-client limits on API routes (Gin)
//
// # Endpoints
//
// Built-in endpoints (server/endpoint): /health, /live, /ready and /info.
package server
