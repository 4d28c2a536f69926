package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/frame"
)

// Echo is a local provider that streams the last user message back in Nova
// frame shape, one word per frame. It needs no credentials.
type Echo struct {
	delay time.Duration
}

var _ Provider = (*Echo)(nil)

// NewEcho creates an echo provider pacing frames by delay.
func NewEcho(delay time.Duration) *Echo {
	return &Echo{delay: delay}
}

func (e *Echo) Name() string { return ProviderEcho }

func (e *Echo) Stream(_ context.Context, req CompletionRequest) (frame.Source, error) {
	msg, ok := req.LastUserMessage()
	if !ok {
		return nil, apperrors.InvalidInput("messages", "no user message")
	}
	frames := [][]byte{[]byte(`{"messageStart":{"role":"assistant"}}`)}
	for _, word := range strings.SplitAfter(msg.Content, " ") {
		if word == "" {
			continue
		}
		b, err := json.Marshal(map[string]any{
			"contentBlockDelta": map[string]any{"delta": map[string]string{"text": word}, "contentBlockIndex": 0},
		})
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		frames = append(frames, b)
	}
	frames = append(frames, []byte(`{"messageStop":{"stopReason":"end_turn"}}`))

	var opts []frame.SliceOption
	if e.delay > 0 {
		opts = append(opts, frame.WithFrameDelay(e.delay))
	}
	return frame.NewSliceSource(frames, opts...), nil
}
