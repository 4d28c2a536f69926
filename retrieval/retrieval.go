// Package retrieval adds knowledge-base context to a user question before
// generation.
package retrieval

import (
	"context"
	"time"

	"github.com/kbukum/chatstream/llm"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/observability"
)

// Contributor returns context text relevant to a query. An empty result
// means no context.
type Contributor interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// Scoped is implemented by contributors that can target another source,
// such as a knowledge base named in the request.
type Scoped interface {
	Scope(id string) Contributor
}

// ContributorFunc adapts a function to Contributor.
type ContributorFunc func(ctx context.Context, query string) (string, error)

func (f ContributorFunc) Retrieve(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// None contributes nothing.
var None Contributor = ContributorFunc(func(context.Context, string) (string, error) { return "", nil })

// Assemble builds the user prompt from retrieved context and the question.
func Assemble(context, question string) string {
	if context == "" {
		return question
	}
	return "Contexte: " + context + "\n\nQuestion: " + question
}

// Augmenter rewrites the last user message of a request with retrieved
// context. Retrieval failures are logged and the question goes out alone.
type Augmenter struct {
	contributor Contributor
	timeout     time.Duration
	log         *logger.Logger
}

// NewAugmenter creates an Augmenter. A nil contributor disables retrieval.
func NewAugmenter(c Contributor, timeout time.Duration) *Augmenter {
	if c == nil {
		c = None
	}
	return &Augmenter{contributor: c, timeout: timeout, log: logger.Get("retrieval")}
}

// Augment returns req with context added to its last user message. source
// selects another knowledge base when the contributor supports it.
func (a *Augmenter) Augment(ctx context.Context, req llm.CompletionRequest, source string) llm.CompletionRequest {
	question, ok := req.LastUserMessage()
	if !ok {
		return req
	}
	contributor := a.contributor
	if s, ok := contributor.(Scoped); ok && source != "" {
		contributor = s.Scope(source)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	ctx, span := observability.StartSpan(ctx, observability.SpanRetrieval)
	start := time.Now()
	text, err := contributor.Retrieve(ctx, question.Content)
	observability.EndSpan(span, err)
	if err != nil {
		a.log.WithContext(ctx).Warn("could not retrieve context, continuing without it",
			logger.MergeWithError(logger.DurationFields("retrieve", time.Since(start)), err))
		return req
	}
	if text == "" {
		return req
	}
	a.log.WithContext(ctx).Debug("context retrieved", logger.Fields(logger.FieldBytes, len(text)))
	return req.WithLastUserContent(Assemble(text, question.Content))
}
