package bedrock

import (
	"net/url"
	"strings"

	"github.com/kbukum/chatstream/httpclient"
	"github.com/kbukum/chatstream/llm"
)

const (
	ProviderName = llm.ProviderBedrock

	eventStreamAccept = "application/vnd.amazon.eventstream"
)

// InvokePath is the InvokeModelWithResponseStream path for modelID.
func InvokePath(modelID string) string {
	return "/model/" + escapeSegment(modelID) + "/invoke-with-response-stream"
}

// escapeSegment escapes a path segment the way the AWS SDK does, including
// the colon in model version suffixes.
func escapeSegment(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), ":", "%3A")
}

// NewRuntime creates the streaming provider for Bedrock models. The dialect
// is chosen per request from the model ID.
func NewRuntime(cfg Config, signer httpclient.Signer, defaults llm.Config) (*llm.Adapter, error) {
	cfg.ApplyDefaults()
	client, err := httpclient.New(httpclient.Config{
		Name:    "bedrock-runtime",
		BaseURL: cfg.RuntimeEndpoint,
		Timeout: cfg.Timeout,
	}, httpclient.WithSigner(signer))
	if err != nil {
		return nil, err
	}
	return llm.NewAdapter(ProviderName, client,
		llm.WithPath(InvokePath),
		llm.WithStreamFormat(llm.StreamEventStream),
		llm.WithHeaders(map[string]string{
			"Accept":                eventStreamAccept,
			"Content-Type":          "application/json",
			"X-Amzn-Bedrock-Accept": "application/json",
		}),
		llm.WithDefaults(defaults),
	), nil
}
