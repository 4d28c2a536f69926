package commands

import (
	"context"
	"fmt"

	"github.com/kbukum/chatstream/bedrock"
	"github.com/kbukum/chatstream/chat"
	"github.com/kbukum/chatstream/llm"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/reconstruct"
	"github.com/kbukum/chatstream/retrieval"
)

// localReveal feeds a provider running in-process into a reconstructor.
type localReveal struct {
	*reconstruct.Reconstructor
	stop context.CancelFunc
}

func (l *localReveal) Cancel() {
	l.Reconstructor.Cancel()
	l.stop()
}

func startLocal(ctx context.Context, g *globals, o *askOptions, req chat.Request, sink reconstruct.Sink) (reveal, error) {
	defaults := llm.Config{Provider: o.provider}
	if defaults.Provider == "" {
		defaults.Provider = llm.ProviderEcho
	}
	defaults.ApplyDefaults()
	if err := defaults.Validate(); err != nil {
		return nil, err
	}

	var (
		p         llm.Provider
		augmenter = retrieval.NewAugmenter(nil, 0)
	)
	switch defaults.Provider {
	case llm.ProviderEcho:
		p = llm.NewEcho(defaults.EchoDelay)
	case llm.ProviderBedrock:
		bc, err := bedrock.NewComponent(ctx, bedrock.Config{Region: o.region}, defaults, logger.Get("bedrock"))
		if err != nil {
			return nil, err
		}
		if h := bc.Health(ctx); h.Message != "" {
			logger.Warn("bedrock credentials", logger.Fields(logger.FieldState, string(h.Status), "message", h.Message))
		}
		p = bc.Runtime()
		augmenter = retrieval.NewAugmenter(bc.KnowledgeBase(), defaults.Timeout)
	default:
		return nil, fmt.Errorf("provider %q is not available with --local", defaults.Provider)
	}

	completion := defaults.Apply(augmenter.Augment(ctx, req.Completion(), req.KnowledgeBaseID))

	streamCtx, stop := context.WithCancel(ctx)
	rec := reconstruct.New(sink, reconstruct.WithInterval(g.interval), reconstruct.WithLogger(logger.Get("reveal")))
	go func() {
		defer stop()
		err := llm.Each(streamCtx, p, completion, func(text string) { _, _ = rec.WriteString(text) })
		switch {
		case rec.Token().Cancelled():
		case err != nil:
			rec.Fail(err)
		default:
			rec.CloseInput()
		}
	}()
	return &localReveal{Reconstructor: rec, stop: stop}, nil
}
