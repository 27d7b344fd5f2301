package provider

import (
	"fmt"
	"sync"

	"github.com/stockpile-io/stockpile/internal/ir"
)

// Registry maps resource kinds to the provider that manages them.
type Registry struct {
	mu        sync.RWMutex
	providers map[ir.Kind]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[ir.Kind]Provider),
	}
}

// Register binds a provider to a kind, replacing any prior binding.
func (r *Registry) Register(kind ir.Kind, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[kind] = p
}

// Get returns the provider registered for kind.
func (r *Registry) Get(kind ir.Kind) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("no provider registered for kind %q", kind)
	}
	return p, nil
}
