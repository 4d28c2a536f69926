// Package chat serves the streaming chat API:
//
//	POST /api/chat              stream a completion (raw or SSE framing)
//	POST /api/chat/:id/cancel   stop a live stream
//	GET  /api/models            list the model catalogue
//
// A chat request is validated, augmented with retrieved context, and handed
// to a session.Session that drives the provider's frames into the
// negotiated transport.Writer. Failures before the first byte answer with a
// JSON {"error", "code"} body; later failures are signalled in-stream.
package chat
