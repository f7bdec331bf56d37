package report

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicateSource is returned when a name is registered twice.
var ErrDuplicateSource = errors.New("report: duplicate source name")

// Provider is anything that can produce a statistics snapshot.
type Provider interface {
	Statistics() any
}

// Registry maps report section names to snapshot providers, preserving
// registration order. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	names     []string
	providers map[string]Provider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p under name.
func (r *Registry) Register(name string, p Provider) error {
	if name == "" {
		return fmt.Errorf("report: source name is required")
	}
	if p == nil {
		return fmt.Errorf("report: source %q has no provider", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("register %q: %w", name, ErrDuplicateSource)
	}
	r.providers[name] = p
	r.names = append(r.names, name)
	return nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

type entry struct {
	name string
	p    Provider
}

func (r *Registry) entries() []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entry, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, entry{name: n, p: r.providers[n]})
	}
	return out
}
