// Package frame turns raw provider frames into ordered text deltas.
//
// A Source yields one frame at a time from the upstream byte stream. The
// Decoder strips textual event-stream framing, parses the JSON document and
// applies an ordered list of Extractors; the first match wins. Frames that
// are not JSON are passed through as text. Malformed frames are logged and
// skipped without ending the stream.
package frame
