package bedrock

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/chatstream/component"
	"github.com/kbukum/chatstream/llm"
	"github.com/kbukum/chatstream/logger"
)

// Component owns the Bedrock runtime provider and knowledge-base retriever
// and reports credential health to the component registry.
type Component struct {
	cfg       Config
	signer    *Signer
	runtime   *llm.Adapter
	knowledge *KnowledgeBase
	log       *logger.Logger
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent resolves AWS configuration and builds the clients. No request
// is made until Start.
func NewComponent(ctx context.Context, cfg Config, defaults llm.Config, log *logger.Logger) (*Component, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newComponent(cfg, NewSigner(awsCfg.Credentials, cfg.Region), defaults, log)
}

func newComponent(cfg Config, signer *Signer, defaults llm.Config, log *logger.Logger) (*Component, error) {
	runtime, err := NewRuntime(cfg, signer, defaults)
	if err != nil {
		return nil, fmt.Errorf("bedrock runtime: %w", err)
	}
	knowledge, err := NewKnowledgeBase(cfg, signer)
	if err != nil {
		return nil, fmt.Errorf("bedrock knowledge base: %w", err)
	}
	if log == nil {
		log = logger.Get("bedrock")
	}
	return &Component{
		cfg:       cfg,
		signer:    signer,
		runtime:   runtime,
		knowledge: knowledge,
		log:       log.WithComponent("bedrock"),
	}, nil
}

// Runtime returns the streaming provider.
func (c *Component) Runtime() *llm.Adapter { return c.runtime }

// KnowledgeBase returns the retriever.
func (c *Component) KnowledgeBase() *KnowledgeBase { return c.knowledge }

// Name returns the component name.
func (c *Component) Name() string { return "bedrock" }

// Start checks that credentials resolve. Missing credentials are logged and
// leave the component degraded rather than failing startup.
func (c *Component) Start(ctx context.Context) error {
	if _, err := c.signer.Check(ctx); err != nil {
		c.log.Warn("aws credentials unavailable", logger.ErrorFields("credentials", err))
		return nil
	}
	c.log.Info("bedrock ready", logger.Fields("region", c.cfg.Region, "knowledge_base", c.cfg.KnowledgeBaseID))
	return nil
}

// Stop is a no-op; in-flight streams are owned by their sessions.
func (c *Component) Stop(context.Context) error { return nil }

// Health reports whether credentials can be retrieved and are not expired.
func (c *Component) Health(ctx context.Context) component.Health {
	expires, err := c.signer.Check(ctx)
	switch {
	case err != nil:
		return component.Health{Name: c.Name(), Status: component.StatusDegraded, Message: fmt.Sprintf("credentials: %v", err)}
	case !expires.IsZero() && time.Until(expires) <= 0:
		return component.Health{Name: c.Name(), Status: component.StatusDegraded, Message: "credentials expired"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe summarizes the component for startup logs.
func (c *Component) Describe() component.Description {
	details := fmt.Sprintf("region=%s", c.cfg.Region)
	if c.cfg.KnowledgeBaseID != "" {
		details += fmt.Sprintf(" knowledge_base=%s", c.cfg.KnowledgeBaseID)
	}
	return component.Description{Type: "provider", Details: details}
}
