// Package bootstrap is the composition root: it opens the configured
// connections, registers them under their conventional keys, and assembles
// the DomainKernel from them.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jardisPsr/foundation/internal/adapters/connpool"
	"github.com/jardisPsr/foundation/internal/adapters/factory"
	"github.com/jardisPsr/foundation/internal/platform/config"
	"github.com/jardisPsr/foundation/internal/platform/logger"
	"github.com/jardisPsr/foundation/pkg/boundedcontext"
	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/kernel"
	"github.com/jardisPsr/foundation/pkg/resource"
)

// App holds the assembled kernel and everything the bootstrap created.
type App struct {
	Config   config.Config
	Kernel   *kernel.Kernel
	Registry contracts.ResourceRegistry
	Logger   *logger.Logger
	Factory  *factory.Factory
	Pool     *connpool.Pool

	messaging contracts.MessagingService
	owned     []owned

	closeOnce sync.Once
	closeErr  error
}

// owned is a registry entry the bootstrap created and must release.
type owned struct {
	key   string
	close func() error
}

type Option func(*options)

type options struct {
	registry contracts.ResourceRegistry
	factory  *factory.Factory
}

// WithRegistry starts from a pre-populated registry. Connections already
// registered are reused and never closed by the App.
func WithRegistry(reg contracts.ResourceRegistry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithFactory exposes f through the kernel instead of an empty factory.
func WithFactory(f *factory.Factory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// New builds an App from cfg. On error every resource opened so far is
// released.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = resource.New()
	}
	if o.factory == nil {
		o.factory = factory.New()
	}

	app := &App{
		Config:   cfg,
		Registry: o.registry,
		Factory:  o.factory,
	}

	if err := app.openConnections(ctx); err != nil {
		return nil, errors.Join(err, app.Close())
	}
	if err := app.assemble(); err != nil {
		return nil, errors.Join(err, app.Close())
	}

	app.Logger.Info("bootstrap complete",
		"app_root", cfg.AppRoot,
		"domain_root", cfg.DomainRoot,
		"resources", len(app.Registry.All()),
		"owned", len(app.owned),
	)
	return app, nil
}

func (a *App) assemble() error {
	cfg := a.Config

	if err := a.ensureLogHandler(); err != nil {
		return err
	}
	log, err := logger.FromRegistry(a.Registry, cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.Logger = log

	kopts := []kernel.Option{
		kernel.WithEnv(cfg.Env),
		kernel.WithFactory(a.Factory),
		kernel.WithLogger(log),
		kernel.WithResources(a.Registry),
	}

	c, err := a.buildCache()
	if err != nil {
		return err
	}
	if c != nil {
		kopts = append(kopts, kernel.WithCache(c))
	}

	if a.Registry.Has(resource.KeyPDOWriter) {
		pool, err := connpool.FromRegistry(a.Registry)
		if err != nil {
			return fmt.Errorf("init connection pool: %w", err)
		}
		a.Pool = pool
		kopts = append(kopts, kernel.WithConnectionPool(pool))
	}

	bus, err := a.buildMessaging()
	if err != nil {
		return err
	}
	if bus != nil {
		a.messaging = bus
		kopts = append(kopts, kernel.WithMessaging(bus))
	}

	k, err := kernel.New(cfg.AppRoot, cfg.DomainRoot, kopts...)
	if err != nil {
		return fmt.Errorf("init kernel: %w", err)
	}
	a.Kernel = k
	return nil
}

// ensureLogHandler registers a console core when no log handler exists.
func (a *App) ensureLogHandler() error {
	if len(resource.LoggerHandlers(a.Registry)) > 0 {
		return nil
	}
	core, err := logger.NewConsoleCore(a.Config.Log)
	if err != nil {
		return fmt.Errorf("init console log handler: %w", err)
	}
	a.own(resource.LoggerHandlerKey(logger.ConsoleHandler), core, nil)
	return nil
}

// NewExecutor returns a bounded-context executor bound to the App's kernel.
// Events are published to the configured event topic, if any.
func (a *App) NewExecutor(opts ...boundedcontext.Option) *boundedcontext.Executor {
	if topic := a.Config.Messaging.EventTopic; topic != "" {
		opts = append([]boundedcontext.Option{boundedcontext.WithEventTopic(topic)}, opts...)
	}
	return boundedcontext.NewExecutor(a.Kernel, opts...)
}

// Owned returns the registry keys this App created, in creation order.
func (a *App) Owned() []string {
	keys := make([]string, len(a.owned))
	for i, o := range a.owned {
		keys[i] = o.key
	}
	return keys
}

// Close stops messaging, then closes and unregisters owned resources in
// reverse creation order. Reused resources are left untouched. Safe to call
// more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.messaging != nil {
			if err := a.messaging.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close messaging: %w", err))
			}
		}
		for i := len(a.owned) - 1; i >= 0; i-- {
			o := a.owned[i]
			if o.close != nil {
				if err := o.close(); err != nil {
					errs = append(errs, fmt.Errorf("close %s: %w", o.key, err))
				}
			}
			a.Registry.Unregister(o.key)
		}
		a.owned = nil
		if a.Logger != nil {
			a.Logger.Sync()
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

func (a *App) own(key string, value any, closeFn func() error) {
	a.Registry.Register(key, value)
	a.owned = append(a.owned, owned{key: key, close: closeFn})
}
