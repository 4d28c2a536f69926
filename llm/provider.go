package llm

import (
	"context"

	"github.com/kbukum/chatstream/frame"
)

// Provider streams a completion as raw frames. Errors the provider reports
// before the first frame are returned from Stream; later ones come out of
// the Source.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req CompletionRequest) (frame.Source, error)
}

// FrameShaper is implemented by providers whose frames need extractors
// beyond frame.DefaultExtractors.
type FrameShaper interface {
	Extractors() []frame.Extractor
}

// Extractors returns the extractor list for p's frames.
func Extractors(p Provider) []frame.Extractor {
	ex := frame.DefaultExtractors()
	if s, ok := p.(FrameShaper); ok {
		ex = append(ex, s.Extractors()...)
	}
	return ex
}
