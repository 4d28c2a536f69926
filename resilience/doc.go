// Package resilience guards provider calls made before a stream starts.
//
// Opening a completion stream is retried on throttling and 5xx answers,
// counted by a circuit breaker that fails fast while the upstream keeps
// failing, and bounded by a bulkhead that caps concurrent streams. Once the
// first frame has been requested nothing is retried: a stream that fails
// midway is reported in-band.
//
//	p := resilience.Guard(bedrockRuntime, cfg.Resilience, log)
//	providers.Register(p)
package resilience
