package llm

import (
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/kbukum/chatstream/errors"
)

// Registry holds the providers a server can route to by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	fallback  string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p under its name. The first provider registered becomes the
// default.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	if r.fallback == "" {
		r.fallback = p.Name()
	}
}

// SetDefault selects the provider used when a request names none.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("llm: provider %q is not registered", name)
	}
	r.fallback = name
	return nil
}

// Get returns the provider called name, or the default for an empty name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.fallback
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, apperrors.NotFound("provider", name)
	}
	return p, nil
}

// Names lists registered providers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
