package providers

import (
	"sort"
	"sync"

	"github.com/deepnoodle-ai/relay/llm"
)

// Factory creates a backend provider for a given model name and optional
// endpoint override. Factories must be cheap: expensive client setup happens
// lazily inside the provider on first use.
type Factory func(model, endpoint string) llm.LLM

// Registry maps backend identifiers to statically-known provider factories.
// Providers register themselves during init(), and nothing is constructed
// until a caller asks for a specific backend, so unused backends are never
// initialized.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given backend identifier.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// New instantiates the named backend and wraps it in an Adapter exposing the
// unified operation set. Unknown identifiers fail with
// llm.UnsupportedBackendError.
func (r *Registry) New(name, model, endpoint string) (*Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &llm.UnsupportedBackendError{Backend: name}
	}
	return NewAdapter(factory(model, endpoint)), nil
}

// Names returns the registered backend identifiers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Global default registry, populated by provider init() functions.
var defaultRegistry = NewRegistry()

// Register adds a factory to the default registry.
func Register(name string, factory Factory) {
	defaultRegistry.Register(name, factory)
}

// New instantiates a backend from the default registry.
func New(name, model, endpoint string) (*Adapter, error) {
	return defaultRegistry.New(name, model, endpoint)
}

// Names returns the backend identifiers in the default registry.
func Names() []string {
	return defaultRegistry.Names()
}

// DefaultRegistry returns the default global registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
