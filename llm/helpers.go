package llm

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/kbukum/chatstream/frame"
	"github.com/kbukum/chatstream/logger"
)

// Each streams req from p and calls fn with every non-empty decoded delta
// until the stream finishes, fails or ctx ends.
func Each(ctx context.Context, p Provider, req CompletionRequest, fn func(text string)) error {
	src, err := p.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dec := frame.NewDecoder(frame.WithExtractors(Extractors(p)...), frame.WithLogger(logger.Get("llm")))
	for !dec.Finished() {
		raw, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if d, ok := dec.Decode(raw); ok && d.Text != "" {
			fn(d.Text)
		}
	}
	return nil
}

// Collect returns the whole decoded text of req. It is the non-streaming path
// used by the CLI's --no-stream flag and by tests.
func Collect(ctx context.Context, p Provider, req CompletionRequest) (string, error) {
	var b strings.Builder
	err := Each(ctx, p, req, func(text string) { b.WriteString(text) })
	return b.String(), err
}
