package provider

import (
	"fmt"
	"sync"
)

// Factory builds a provider from region/profile style options.
type Factory func(options map[string]string) (Provider, error)

// Registry manages the lifecycle of providers. Factories register at init
// time; instances are built lazily and cached per name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		providers: make(map[string]Provider),
	}
}

// Register makes a provider factory available under name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Load initializes and caches the named provider.
func (r *Registry) Load(name string, options map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return nil
	}

	f, ok := r.factories[name]
	if !ok {
		return fmt.Errorf("unknown provider: %s", name)
	}

	p, err := f(options)
	if err != nil {
		return fmt.Errorf("failed to initialize provider %s: %w", name, err)
	}

	r.providers[name] = p
	return nil
}

// Get returns a loaded provider.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not loaded: %s", name)
	}
	return p, nil
}
