package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/chatstream/component"
	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/logger"
)

// Registry tracks live sessions by ID so a cancel request can reach a stream
// served on another connection. On Stop it cancels everything still running.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	draining bool
	log      *logger.Logger
}

var _ component.Component = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		log:      logger.Get("session").WithComponent("registry"),
	}
}

// Add registers s. It fails if the ID is taken or the registry is shutting
// down. The session is removed automatically once it ends.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return apperrors.ServiceUnavailable("session registry")
	}
	if _, ok := r.sessions[s.ID()]; ok {
		r.mu.Unlock()
		return apperrors.Conflict(fmt.Sprintf("session %s already exists", s.ID()))
	}
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	go func() {
		<-s.Done()
		r.remove(s)
	}()
	return nil
}

// Get returns the live session with the given ID.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Cancel requests a stop for the session with the given ID.
func (r *Registry) Cancel(id string) error {
	s, ok := r.Get(id)
	if !ok {
		return apperrors.NotFound("session", id)
	}
	s.Cancel()
	r.log.Info("cancel requested", logger.Fields(logger.FieldSessionID, id))
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.ID()]; ok && cur == s {
		delete(r.sessions, s.ID())
	}
}

func (r *Registry) Name() string { return "sessions" }

func (r *Registry) Start(context.Context) error {
	r.mu.Lock()
	r.draining = false
	r.mu.Unlock()
	return nil
}

// Stop refuses new sessions, cancels live ones and waits for them to end or
// for ctx to expire.
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.draining = true
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	if len(live) > 0 {
		r.log.Info("cancelling live sessions", logger.Fields("count", len(live)))
	}
	for _, s := range live {
		s.Cancel()
	}
	for _, s := range live {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *Registry) Health(context.Context) component.Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h := component.Health{Name: r.Name(), Status: component.StatusHealthy}
	if r.draining {
		h.Status = component.StatusDegraded
		h.Message = "draining"
		return h
	}
	h.Message = fmt.Sprintf("%d live", len(r.sessions))
	return h
}

func (r *Registry) Describe() component.Description {
	return component.Description{Type: "registry", Details: "in-memory"}
}
