// Package resource provides the in-process registry of externally owned
// connection handles and the key convention used to address them.
package resource

import (
	"fmt"
	"sync"

	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
)

var _ contracts.ResourceRegistry = (*Registry)(nil)

// Registry is a concurrency-safe contracts.ResourceRegistry backed by a map.
// Registering an existing key overwrites the previous handle. The zero value
// is an empty registry ready for use.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]any
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{resources: make(map[string]any)}
}

// NewFrom returns a registry pre-populated with a copy of seed.
func NewFrom(seed map[string]any) *Registry {
	r := &Registry{resources: make(map[string]any, len(seed))}
	for k, v := range seed {
		r.resources[k] = v
	}
	registrationsTotal.Add(float64(len(seed)))
	return r
}

func (r *Registry) Register(key string, resource any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resources == nil {
		r.resources = make(map[string]any)
	}
	r.resources[key] = resource
	registrationsTotal.Inc()
}

func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.resources[key]
	return ok
}

func (r *Registry) Get(key string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[key]
	if !ok {
		lookupMissesTotal.Inc()
		return nil, fmt.Errorf("resource %q: %w", key, sentinel.ErrNotFound)
	}
	return res, nil
}

func (r *Registry) All() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.resources))
	for k, v := range r.resources {
		out[k] = v
	}
	return out
}

func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.resources[key]; !ok {
		return
	}
	delete(r.resources, key)
	unregistrationsTotal.Inc()
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.resources)
}
