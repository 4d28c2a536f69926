package llm

import (
	"io"

	"github.com/kbukum/chatstream/frame"
)

// StreamFormat indicates how a provider delivers streaming responses.
type StreamFormat int

const (
	// StreamEventStream is the AWS binary event-stream used by Bedrock.
	StreamEventStream StreamFormat = iota
	// StreamNDJSON uses newline-delimited JSON (one JSON object per line).
	// Used by: Ollama native API.
	StreamNDJSON
	// StreamSSE uses Server-Sent Events; the decoder strips the data: prefix.
	StreamSSE
)

func (f StreamFormat) String() string {
	switch f {
	case StreamEventStream:
		return "eventstream"
	case StreamNDJSON:
		return "ndjson"
	case StreamSSE:
		return "sse"
	}
	return "unknown"
}

// NewSource wraps an open response body in the frame source for format.
// The source owns body.
func NewSource(provider string, format StreamFormat, body io.ReadCloser) frame.Source {
	if format == StreamEventStream {
		return frame.NewEventStreamSource(provider, body)
	}
	return frame.NewLineSource(body)
}
