package providers

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Registry is the lookup of available provider adapters by name. It is an
// explicitly constructed instance injected where needed, never a
// package-level global.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Provider
	logger   zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Provider),
		logger:   log.With().Str("component", "providers").Logger(),
	}
}

// Register inserts an adapter by name. Re-registration under the same
// name overwrites the previous adapter with a warning.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.adapters[name]; exists {
		r.logger.Warn().Str("provider", name).Msg("overwriting registered provider")
	}
	r.adapters[name] = p
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.adapters[name]
	return p, ok
}

// List returns the registered adapter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether an adapter is registered under name.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.adapters[name]
	return ok
}
