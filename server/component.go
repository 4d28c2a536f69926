package server

import (
	"context"
	"fmt"

	"github.com/kbukum/chatstream/component"
)

const componentName = "http-server"

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component wraps Server for the component registry.
type Component struct {
	server *Server
}

// NewComponent returns a component backed by s.
func NewComponent(s *Server) *Component {
	return &Component{server: s}
}

func (sc *Component) Name() string { return componentName }

func (sc *Component) Start(ctx context.Context) error { return sc.server.Start(ctx) }

func (sc *Component) Stop(ctx context.Context) error { return sc.server.Stop(ctx) }

// Health reports unhealthy until the listener is bound.
func (sc *Component) Health(context.Context) component.Health {
	sc.server.mu.Lock()
	bound := sc.server.listener != nil
	sc.server.mu.Unlock()
	if !bound {
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not listening"}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy}
}

// Describe returns infrastructure summary info for the startup log.
func (sc *Component) Describe() component.Description {
	return component.Description{
		Type:    "server",
		Details: fmt.Sprintf("%s h2c", sc.server.config.Addr()),
	}
}
