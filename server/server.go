package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/server/endpoint"
	"github.com/kbukum/chatstream/server/middleware"
)

// Server is the HTTP server: a Gin engine mounted on a ServeMux, wrapped by
// the middleware chain and served with h2c.
type Server struct {
	httpServer  *http.Server
	engine      *gin.Engine
	mux         *http.ServeMux
	h2          *http2.Server
	middlewares []middleware.Middleware
	config      Config
	log         *logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates a Server. Call ApplyMiddleware to install the standard stack.
func New(cfg Config, log *logger.Logger) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.Get("server")
	}

	engine := gin.New()
	mux := http.NewServeMux()
	mux.Handle("/", engine)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			ReadHeaderTimeout: time.Duration(cfg.ReadTimeout) * time.Second,
			ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
			IdleTimeout:       time.Duration(cfg.IdleTimeout) * time.Second,
		},
		engine: engine,
		mux:    mux,
		h2: &http2.Server{
			MaxConcurrentStreams: 250,
			IdleTimeout:          time.Duration(cfg.IdleTimeout) * time.Second,
		},
		config: cfg,
		log:    log.WithComponent("server"),
	}
}

// GinEngine returns the Gin engine for route registration.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// Handle mounts an http.Handler on the root ServeMux beside Gin.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
	s.log.Debug("handler mounted", logger.Fields("pattern", pattern))
}

// Use appends middleware to the handler-level chain.
func (s *Server) Use(mw ...middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw...)
}

// ApplyMiddleware installs recovery, request IDs, CORS, the body size limit
// and request logging, outermost first.
func (s *Server) ApplyMiddleware() {
	s.Use(
		middleware.Recovery(s.log),
		middleware.RequestID(),
		middleware.CORS(&s.config.CORS),
		middleware.BodySizeLimit(s.config.MaxBodySize),
		middleware.RequestLogger(s.log),
	)
}

// RegisterDefaultEndpoints registers /health, /live, /ready and /info.
func (s *Server) RegisterDefaultEndpoints(serviceName string, checker endpoint.HealthChecker, info endpoint.InfoSource) {
	s.engine.GET("/health", endpoint.Health(serviceName, checker))
	s.engine.GET("/live", endpoint.Liveness(serviceName))
	s.engine.GET("/ready", endpoint.Readiness(serviceName, checker))
	s.engine.GET("/info", endpoint.Info(serviceName, info))
}

// Handler returns the full handler: middleware chain around the mux, with
// h2c upgrade support.
func (s *Server) Handler() http.Handler {
	return h2c.NewHandler(middleware.Chain(s.middlewares...)(s.mux), s.h2)
}

// Start binds the port and serves in a goroutine. It returns once the
// listener is bound.
func (s *Server) Start(_ context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.httpServer.Handler = s.Handler()
	s.logRoutes()

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server error", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	s.log.Info("HTTP server started", logger.Fields("addr", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting up to the configured stop timeout for
// in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(s.config.StopTimeout)*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("server shutdown error", logger.Fields(logger.FieldError, err.Error()))
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("HTTP server shut down")
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}
