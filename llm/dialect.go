package llm

import (
	"fmt"
	"sync"

	apperrors "github.com/kbukum/chatstream/errors"
)

// Dialect maps a universal CompletionRequest to one provider's request body.
//
// Dialects register themselves by name. ForModel picks the first registered
// dialect that claims a model ID, so a new model family is one Dialect and
// one RegisterDialect call.
type Dialect interface {
	// Name returns the dialect identifier (e.g. "nova", "anthropic").
	Name() string

	// Matches reports whether the dialect speaks for modelID.
	Matches(modelID string) bool

	// BuildRequest maps a CompletionRequest to the provider's JSON body.
	BuildRequest(req CompletionRequest) (any, error)
}

// --- Dialect Registry ---

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]Dialect{}
	order      []string
)

// RegisterDialect adds a dialect to the global registry. Registering a name
// again replaces the dialect but keeps its lookup position.
//
//	func init() {
//	    llm.RegisterDialect("ollama", Dialect{})
//	}
func RegisterDialect(name string, d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	if _, ok := dialects[name]; !ok {
		order = append(order, name)
	}
	dialects[name] = d
}

// GetDialect retrieves a dialect by name from the global registry.
func GetDialect(name string) (Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("llm: unknown dialect %q (forgot to import driver?)", name)
	}
	return d, nil
}

// Dialects returns the names of all registered dialects in lookup order.
func Dialects() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	return append([]string(nil), order...)
}

// ForModel returns the dialect for modelID. A model ARN is reduced to its ID
// first.
func ForModel(modelID string) (Dialect, error) {
	id := ModelID(modelID)
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	for _, name := range order {
		if d := dialects[name]; d.Matches(id) {
			return d, nil
		}
	}
	return nil, apperrors.InvalidInput("model", fmt.Sprintf("no dialect for model %q", modelID))
}
