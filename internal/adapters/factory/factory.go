// Package factory implements contracts.Factory as a registry of named
// constructors.
package factory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
)

// Constructor builds a new value from caller-supplied arguments.
type Constructor func(args ...any) (any, error)

// Factory is safe for concurrent use. Registering a name again replaces the
// previous constructor.
type Factory struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

func New() *Factory {
	return &Factory{constructors: make(map[string]Constructor)}
}

func (f *Factory) Register(name string, ctor Constructor) error {
	if name == "" {
		return fmt.Errorf("constructor name is empty: %w", sentinel.ErrInvalidArgument)
	}
	if ctor == nil {
		return fmt.Errorf("constructor %q is nil: %w", name, sentinel.ErrInvalidArgument)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[name] = ctor
	return nil
}

// Create runs the constructor registered under name. Panics inside the
// constructor are returned as errors.
func (f *Factory) Create(name string, args ...any) (obj any, err error) {
	f.mu.RLock()
	ctor, ok := f.constructors[name]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("constructor %q: %w", name, sentinel.ErrNotFound)
	}

	defer func() {
		if p := recover(); p != nil {
			obj, err = nil, fmt.Errorf("constructor %q panicked: %v", name, p)
		}
	}()

	obj, err = ctor(args...)
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", name, err)
	}
	return obj, nil
}

func (f *Factory) Has(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.constructors[name]
	return ok
}

// Names returns the registered names in sorted order.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.constructors))
	for name := range f.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
