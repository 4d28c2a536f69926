package main

import (
	"context"
	"fmt"

	"github.com/kbukum/chatstream/bedrock"
	"github.com/kbukum/chatstream/bootstrap"
	"github.com/kbukum/chatstream/chat"
	"github.com/kbukum/chatstream/component"
	"github.com/kbukum/chatstream/llm"
	"github.com/kbukum/chatstream/llm/ollama"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/observability"
	"github.com/kbukum/chatstream/resilience"
	"github.com/kbukum/chatstream/retrieval"
	"github.com/kbukum/chatstream/server"
	"github.com/kbukum/chatstream/server/endpoint"
	"github.com/kbukum/chatstream/server/middleware"
	"github.com/kbukum/chatstream/session"
)

// newApp wires the daemon. Components stop in reverse registration order, so
// sessions drain before the server shuts down and telemetry flushes last.
func newApp(ctx context.Context, cfg *Config, opts ...bootstrap.Option) (*bootstrap.App[*Config], *server.Server, error) {
	opts = append([]bootstrap.Option{bootstrap.WithGracefulTimeout(cfg.ShutdownTimeout)}, opts...)
	app, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	log := app.Logger

	telemetry := observability.NewTelemetry(cfg.Observability, cfg.Name, cfg.Version, cfg.Environment)
	metrics, err := observability.NewStreamMetrics(observability.Meter(serviceName))
	if err != nil {
		return nil, nil, fmt.Errorf("stream metrics: %w", err)
	}
	components := []component.Component{telemetry}

	providers := llm.NewRegistry()
	var knowledge retrieval.Contributor = retrieval.None
	defaultModel := cfg.LLM.Model
	switch cfg.LLM.Provider {
	case llm.ProviderBedrock:
		bc, err := bedrock.NewComponent(ctx, cfg.Bedrock, cfg.LLM, log.WithComponent("bedrock"))
		if err != nil {
			return nil, nil, err
		}
		providers.Register(resilience.Guard(bc.Runtime(), cfg.Resilience, log))
		knowledge = bc.KnowledgeBase()
		components = append(components, bc)
	case llm.ProviderOllama:
		p, err := ollama.NewProvider(cfg.Ollama, cfg.LLM)
		if err != nil {
			return nil, nil, err
		}
		providers.Register(resilience.Guard(p, cfg.Resilience, log))
		if cfg.Ollama.Model != "" {
			defaultModel = cfg.Ollama.Model
		}
	}
	providers.Register(resilience.Guard(llm.NewEcho(cfg.LLM.EchoDelay), cfg.Resilience, log))
	if err := providers.SetDefault(cfg.LLM.Provider); err != nil {
		return nil, nil, err
	}

	sessions := session.NewRegistry()
	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware()

	handler := chat.NewHandler(providers, sessions,
		chat.WithAugmenter(retrieval.NewAugmenter(knowledge, cfg.RetrievalTimeout)),
		chat.WithFlushConfig(cfg.Flush),
		chat.WithMetrics(metrics),
		chat.WithModels(cfg.LLM.Models),
		chat.WithLogger(log),
	)
	api := srv.GinEngine().Group("/api")
	if cfg.Server.RateLimit > 0 {
		api.Use(middleware.RateLimit(middleware.RateLimitConfig{RequestsPerMinute: cfg.Server.RateLimit}))
	}
	handler.Register(api)
	srv.RegisterDefaultEndpoints(cfg.Name, app.Components.HealthAll, endpoint.InfoSource{
		Providers:    providers.Names,
		DefaultModel: defaultModel,
		LiveSessions: sessions.Len,
	})

	components = append(components, server.NewComponent(srv), sessions)
	if err := app.Register(components...); err != nil {
		return nil, nil, err
	}
	app.OnReady(func(context.Context) error {
		log.Info("accepting chats", logger.Fields(
			"addr", srv.Addr(),
			logger.FieldProvider, cfg.LLM.Provider,
			logger.FieldModel, defaultModel,
		))
		return nil
	})
	return app, srv, nil
}
