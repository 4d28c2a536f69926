package chat

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/chatstream/flush"
	"github.com/kbukum/chatstream/frame"
	"github.com/kbukum/chatstream/llm"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/observability"
	"github.com/kbukum/chatstream/retrieval"
	"github.com/kbukum/chatstream/server"
	"github.com/kbukum/chatstream/session"
	"github.com/kbukum/chatstream/transport"
)

// HeaderSessionID names the live session on a streaming response.
const HeaderSessionID = "X-Session-Id"

// Option configures a Handler.
type Option func(*Handler)

// WithAugmenter sets the retrieval step. Without one, questions go out as
// asked.
func WithAugmenter(a *retrieval.Augmenter) Option { return func(h *Handler) { h.augmenter = a } }

// WithFlushConfig sets the flush policy of every session.
func WithFlushConfig(cfg flush.Config) Option { return func(h *Handler) { h.flush = cfg } }

// WithMetrics records session instruments.
func WithMetrics(m *observability.StreamMetrics) Option { return func(h *Handler) { h.metrics = m } }

// WithModels sets the catalogue served by GET /models.
func WithModels(models []llm.Model) Option { return func(h *Handler) { h.models = models } }

// WithLogger sets the handler logger.
func WithLogger(l *logger.Logger) Option { return func(h *Handler) { h.log = l } }

// Handler serves the chat routes.
type Handler struct {
	providers *llm.Registry
	sessions  *session.Registry
	augmenter *retrieval.Augmenter
	flush     flush.Config
	metrics   *observability.StreamMetrics
	models    []llm.Model
	log       *logger.Logger
}

// NewHandler creates a Handler routing to providers and tracking streams in
// sessions.
func NewHandler(providers *llm.Registry, sessions *session.Registry, opts ...Option) *Handler {
	h := &Handler{
		providers: providers,
		sessions:  sessions,
		log:       logger.Get("chat"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.augmenter == nil {
		h.augmenter = retrieval.NewAugmenter(nil, 0)
	}
	if h.models == nil {
		h.models = llm.DefaultModels()
	}
	h.flush.ApplyDefaults()
	registerValidations()
	return h
}

// Register mounts the routes on r, typically the /api group.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/chat", h.Stream)
	r.POST("/chat/:id/cancel", h.Cancel)
	r.GET("/models", h.Models)
}

// Stream validates the request, opens the provider stream and runs a
// session over it. The response framing follows ?format= or Accept.
func (h *Handler) Stream(c *gin.Context) {
	var body Request
	if err := c.ShouldBindJSON(&body); err != nil {
		server.RespondWithError(c, bindError(err))
		return
	}

	provider, err := h.providers.Get(body.Provider)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	sess := session.New(
		session.WithFlushConfig(h.flush),
		session.WithMetrics(h.metrics),
		session.WithDecoderOptions(frame.WithExtractors(llm.Extractors(provider)...)),
	)
	if err := h.sessions.Add(sess); err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.Header(HeaderSessionID, sess.ID())

	ctx := logger.ContextWithSessionID(c.Request.Context(), sess.ID())
	log := h.log.WithContext(ctx)
	req := h.augmenter.Augment(ctx, body.Completion(), body.KnowledgeBaseID)

	src, err := h.open(ctx, provider, req)
	if err != nil {
		sess.Fail(err)
		log.Warn("provider rejected request", logger.MergeWithError(logger.Fields(logger.FieldProvider, provider.Name()), err))
		server.RespondWithError(c, err)
		return
	}

	framing := transport.Negotiate(c.Request)
	log.Debug("stream opened", logger.Fields(
		logger.FieldProvider, provider.Name(),
		logger.FieldModel, req.Model,
		logger.FieldFraming, string(framing),
	))
	// Errors are already signalled in-stream and logged by the session.
	_ = sess.Run(ctx, src, transport.NewWriter(framing, c.Writer))
}

func (h *Handler) open(ctx context.Context, p llm.Provider, req llm.CompletionRequest) (frame.Source, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanProvider)
	src, err := p.Stream(ctx, req)
	observability.EndSpan(span, err)
	return src, err
}

// CancelResponse acknowledges a cancel request.
type CancelResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Cancel stops the live session named in the path.
func (h *Handler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Cancel(id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondAccepted(c, CancelResponse{ID: id, Status: "cancelling"})
}

// Models lists the model catalogue.
func (h *Handler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.models})
}
