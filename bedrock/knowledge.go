package bedrock

import (
	"context"
	"strings"

	"github.com/kbukum/chatstream/httpclient"
	"github.com/kbukum/chatstream/llm"
	"github.com/kbukum/chatstream/retrieval"
)

// KnowledgeBase retrieves context passages from a Bedrock knowledge base.
type KnowledgeBase struct {
	client  *httpclient.Client
	id      string
	results int
}

var (
	_ retrieval.Contributor = (*KnowledgeBase)(nil)
	_ retrieval.Scoped      = (*KnowledgeBase)(nil)
)

type retrieveRequest struct {
	RetrievalQuery         retrievalQuery         `json:"retrievalQuery"`
	RetrievalConfiguration retrievalConfiguration `json:"retrievalConfiguration"`
}

type retrievalQuery struct {
	Text string `json:"text"`
}

type retrievalConfiguration struct {
	VectorSearchConfiguration vectorSearch `json:"vectorSearchConfiguration"`
}

type vectorSearch struct {
	NumberOfResults int `json:"numberOfResults"`
}

type retrieveResponse struct {
	RetrievalResults []struct {
		Content struct {
			Text string `json:"text"`
		} `json:"content"`
		Score float64 `json:"score"`
	} `json:"retrievalResults"`
}

// NewKnowledgeBase creates a retriever for cfg.KnowledgeBaseID.
func NewKnowledgeBase(cfg Config, signer httpclient.Signer) (*KnowledgeBase, error) {
	cfg.ApplyDefaults()
	client, err := httpclient.New(httpclient.Config{
		Name:    "bedrock-agent-runtime",
		BaseURL: cfg.AgentEndpoint,
		Timeout: cfg.Timeout,
	}, httpclient.WithSigner(signer))
	if err != nil {
		return nil, err
	}
	return &KnowledgeBase{client: client, id: cfg.KnowledgeBaseID, results: cfg.NumberOfResults}, nil
}

// ID returns the knowledge base queried.
func (k *KnowledgeBase) ID() string { return k.id }

// Scope returns a retriever for another knowledge base sharing the client.
func (k *KnowledgeBase) Scope(id string) retrieval.Contributor {
	if id == "" || id == k.id {
		return k
	}
	scoped := *k
	scoped.id = id
	return &scoped
}

// Retrieve returns the text of the top passages for query joined by blank
// lines. An unset knowledge base yields no context.
func (k *KnowledgeBase) Retrieve(ctx context.Context, query string) (string, error) {
	if k.id == "" {
		return "", nil
	}
	resp, err := httpclient.Post[retrieveResponse](ctx, k.client,
		"/knowledgebases/"+escapeSegment(k.id)+"/retrieve",
		retrieveRequest{
			RetrievalQuery: retrievalQuery{Text: query},
			RetrievalConfiguration: retrievalConfiguration{
				VectorSearchConfiguration: vectorSearch{NumberOfResults: k.results},
			},
		})
	if err != nil {
		return "", llm.UpstreamError("bedrock-knowledge-base", err)
	}

	passages := make([]string, 0, len(resp.Data.RetrievalResults))
	for _, r := range resp.Data.RetrievalResults {
		passages = append(passages, r.Content.Text)
	}
	return strings.Join(passages, "\n\n"), nil
}
