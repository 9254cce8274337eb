// Package kernel implements contracts.DomainKernel: an immutable bundle of
// paths, configuration and optional infrastructure collaborators handed to
// domain code at startup.
package kernel

import (
	"fmt"
	"path/filepath"
	"reflect"

	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
	"github.com/jardisPsr/foundation/pkg/resource"
)

var _ contracts.DomainKernel = (*Kernel)(nil)

// Kernel is safe for concurrent use; nothing mutates it after New returns.
type Kernel struct {
	appRoot    string
	domainRoot string
	env        map[string]any

	factory   contracts.Factory
	cache     contracts.Cache
	pool      contracts.ConnectionPool
	logger    contracts.Logger
	messaging contracts.MessagingService
	resources contracts.ResourceRegistry
}

// Option configures a Kernel during construction. Collaborator options
// ignore nil, including interfaces wrapping a nil pointer.
type Option func(*Kernel)

// WithEnv sets the configuration mapping. The map is copied.
func WithEnv(env map[string]any) Option {
	return func(k *Kernel) {
		k.env = make(map[string]any, len(env))
		for key, v := range env {
			k.env[key] = v
		}
	}
}

func WithFactory(f contracts.Factory) Option {
	return func(k *Kernel) {
		if !isNil(f) {
			k.factory = f
		}
	}
}

func WithCache(c contracts.Cache) Option {
	return func(k *Kernel) {
		if !isNil(c) {
			k.cache = c
		}
	}
}

func WithConnectionPool(p contracts.ConnectionPool) Option {
	return func(k *Kernel) {
		if !isNil(p) {
			k.pool = p
		}
	}
}

func WithLogger(l contracts.Logger) Option {
	return func(k *Kernel) {
		if !isNil(l) {
			k.logger = l
		}
	}
}

func WithMessaging(m contracts.MessagingService) Option {
	return func(k *Kernel) {
		if !isNil(m) {
			k.messaging = m
		}
	}
}

// WithResources hands the kernel an existing, possibly pre-populated
// registry. Without it the kernel starts with an empty one.
func WithResources(r contracts.ResourceRegistry) Option {
	return func(k *Kernel) {
		if !isNil(r) {
			k.resources = r
		}
	}
}

// New builds a kernel rooted at appRoot and domainRoot, both of which must be
// absolute paths.
func New(appRoot, domainRoot string, opts ...Option) (*Kernel, error) {
	app, err := absRoot("app root", appRoot)
	if err != nil {
		return nil, err
	}
	domain, err := absRoot("domain root", domainRoot)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		appRoot:    app,
		domainRoot: domain,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(k)
		}
	}
	if k.env == nil {
		k.env = map[string]any{}
	}
	if k.resources == nil {
		k.resources = resource.New()
	}
	return k, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func absRoot(name, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%s is empty: %w", name, sentinel.ErrInvalidArgument)
	}
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%s %q is not absolute: %w", name, path, sentinel.ErrInvalidArgument)
	}
	return filepath.Clean(path), nil
}

func (k *Kernel) AppRoot() string    { return k.appRoot }
func (k *Kernel) DomainRoot() string { return k.domainRoot }

func (k *Kernel) Env(key string) (any, bool) {
	v, ok := k.env[key]
	return v, ok
}

func (k *Kernel) EnvAll() map[string]any {
	out := make(map[string]any, len(k.env))
	for key, v := range k.env {
		out[key] = v
	}
	return out
}

// EnvString returns the value under key formatted as a string, or def when
// the key is missing.
func (k *Kernel) EnvString(key, def string) string {
	v, ok := k.env[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (k *Kernel) Factory() (contracts.Factory, bool) {
	return k.factory, k.factory != nil
}

func (k *Kernel) Cache() (contracts.Cache, bool) {
	return k.cache, k.cache != nil
}

func (k *Kernel) ConnectionPool() (contracts.ConnectionPool, bool) {
	return k.pool, k.pool != nil
}

func (k *Kernel) Logger() (contracts.Logger, bool) {
	return k.logger, k.logger != nil
}

func (k *Kernel) Message() (contracts.MessagingService, bool) {
	return k.messaging, k.messaging != nil
}

func (k *Kernel) Resources() contracts.ResourceRegistry {
	return k.resources
}
