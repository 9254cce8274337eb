package bootstrap

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	_ "modernc.org/sqlite"

	"github.com/jardisPsr/foundation/internal/adapters/factory"
	"github.com/jardisPsr/foundation/internal/platform/config"
	"github.com/jardisPsr/foundation/pkg/boundedcontext"
	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
	"github.com/jardisPsr/foundation/pkg/resource"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	return config.Config{
		AppRoot:    root,
		DomainRoot: filepath.Join(root, "domain"),
		Log:        config.LogConfig{Mode: "development", Level: "error"},
		Cache:      config.CacheConfig{Driver: DriverMemory, DefaultTTL: time.Minute},
		Messaging:  config.MessagingConfig{Driver: DriverMemory},
		Env:        map[string]any{"APP_NAME": "billing"},
	}
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_MemoryOnly(t *testing.T) {
	app, err := New(context.Background(), memoryConfig(t))
	require.NoError(t, err)
	defer app.Close()

	k := app.Kernel
	v, ok := k.Env("APP_NAME")
	assert.True(t, ok)
	assert.Equal(t, "billing", v)

	_, ok = k.Cache()
	assert.True(t, ok)
	_, ok = k.Message()
	assert.True(t, ok)
	_, ok = k.Logger()
	assert.True(t, ok)
	_, ok = k.Factory()
	assert.True(t, ok)
	_, ok = k.ConnectionPool()
	assert.False(t, ok, "no writer configured")

	assert.Same(t, app.Registry, k.Resources())
	assert.True(t, app.Registry.Has(resource.LoggerHandlerKey("console")))
	assert.Equal(t, []string{resource.LoggerHandlerKey("console")}, app.Owned())
}

func TestNew_DisabledCollaborators(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Cache.Driver = ""
	cfg.Messaging.Driver = ""

	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	c, ok := app.Kernel.Cache()
	assert.False(t, ok)
	assert.Nil(t, c)
	m, ok := app.Kernel.Message()
	assert.False(t, ok)
	assert.Nil(t, m)
}

func TestNew_ReusesRegisteredConnections(t *testing.T) {
	writer := openSQLite(t)
	reader := openSQLite(t)
	reg := resource.New()
	reg.Register(resource.KeyPDOWriter, writer)
	reg.Register(resource.PDOReaderKey(1), reader)

	cfg := memoryConfig(t)
	cfg.Database.WriterDSN = "postgres://unreachable.invalid/app"
	cfg.Database.ReaderDSNs = []string{"postgres://unreachable.invalid/app"}

	app, err := New(context.Background(), cfg, WithRegistry(reg))
	require.NoError(t, err)

	pool, ok := app.Kernel.ConnectionPool()
	require.True(t, ok)
	assert.Same(t, writer, pool.Writer())
	assert.Same(t, reader, pool.Reader())
	assert.NotContains(t, app.Owned(), resource.KeyPDOWriter)

	report := app.Health(context.Background())
	assert.True(t, report.OK())
	assert.Equal(t, []string{resource.PDOReaderKey(1), resource.KeyPDOWriter}, report.Keys())

	require.NoError(t, app.Close())

	assert.True(t, reg.Has(resource.KeyPDOWriter), "reused connections stay registered")
	assert.NoError(t, writer.Ping(), "reused connections stay open")
	assert.False(t, reg.Has(resource.LoggerHandlerKey("console")), "owned entries are unregistered")
}

func TestNew_UsesRegisteredLogHandlers(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	reg := resource.New()
	reg.Register(resource.LoggerHandlerKey("audit"), core)

	app, err := New(context.Background(), memoryConfig(t), WithRegistry(reg))
	require.NoError(t, err)
	defer app.Close()

	assert.False(t, reg.Has(resource.LoggerHandlerKey("console")))
	assert.Empty(t, app.Owned())
	assert.Equal(t, 1, logs.FilterMessage("bootstrap complete").Len())
}

func TestNew_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		target error
	}{
		{
			name:   "unknown cache driver",
			mutate: func(c *config.Config) { c.Cache.Driver = "memcached" },
			target: sentinel.ErrInvalidArgument,
		},
		{
			name:   "unknown messaging driver",
			mutate: func(c *config.Config) { c.Messaging.Driver = "nats" },
			target: sentinel.ErrInvalidArgument,
		},
		{
			name:   "redis cache without client",
			mutate: func(c *config.Config) { c.Cache.Driver = DriverRedis },
			target: sentinel.ErrNotFound,
		},
		{
			name:   "kafka messaging without brokers",
			mutate: func(c *config.Config) { c.Messaging.Driver = DriverKafka },
			target: sentinel.ErrNotFound,
		},
		{
			name:   "amqp messaging without connection",
			mutate: func(c *config.Config) { c.Messaging.Driver = DriverAMQP },
			target: sentinel.ErrNotFound,
		},
		{
			name:   "relative app root",
			mutate: func(c *config.Config) { c.AppRoot = "relative" },
			target: sentinel.ErrInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig(t)
			tt.mutate(&cfg)
			reg := resource.New()

			app, err := New(context.Background(), cfg, WithRegistry(reg))

			assert.Nil(t, app)
			assert.ErrorIs(t, err, tt.target)
			assert.Zero(t, reg.Len(), "partial bootstrap must release what it created")
		})
	}
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	app, err := New(context.Background(), memoryConfig(t))
	require.NoError(t, err)

	require.NoError(t, app.Close())
	require.NoError(t, app.Close())

	bus, ok := app.Kernel.Message()
	require.True(t, ok)
	err = bus.Publish(context.Background(), contracts.Message{Topic: "orders"})
	assert.ErrorIs(t, err, sentinel.ErrClosed)
}

func TestApp_HealthReportsClosedConnection(t *testing.T) {
	broken, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, broken.Close())

	reg := resource.New()
	reg.Register(resource.KeyPDOWriter, openSQLite(t))
	reg.Register(resource.PDOReaderKey(1), broken)
	reg.Register("app.settings", map[string]string{})

	app, err := New(context.Background(), memoryConfig(t), WithRegistry(reg))
	require.NoError(t, err)
	defer app.Close()

	report := app.Health(context.Background())
	assert.False(t, report.OK())
	assert.NoError(t, report[resource.KeyPDOWriter])
	assert.Error(t, report[resource.PDOReaderKey(1)])
	assert.NotContains(t, report, "app.settings")
	assert.ErrorContains(t, report.Err(), resource.PDOReaderKey(1))
}

func TestApp_NewExecutorPublishesToEventTopic(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Messaging.EventTopic = "domain-events"

	f := factory.New()
	require.NoError(t, f.Register("clock", func(...any) (any, error) { return time.Unix(0, 0).UTC(), nil }))

	app, err := New(context.Background(), cfg, WithFactory(f))
	require.NoError(t, err)
	defer app.Close()

	bus, ok := app.Kernel.Message()
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	received := make(chan contracts.Message, 1)
	go func() {
		_ = bus.Consume(ctx, "domain-events", func(_ context.Context, msg contracts.Message) error {
			received <- msg
			return nil
		})
	}()
	// Wait until the consumer is attached before executing.
	require.Eventually(t, func() bool {
		return bus.(interface{ SubscriberCount(string) int }).SubscriberCount("domain-events") == 1
	}, time.Second, 5*time.Millisecond)

	exec := app.NewExecutor()
	exec.Register("order", boundedcontext.HandlerFunc(func(_ context.Context, req *boundedcontext.Request) *boundedcontext.Response {
		fac, _ := req.Kernel.Factory()
		now, err := fac.Create("clock")
		if err != nil {
			return req.Response().AddError(err)
		}
		return req.Response().Set("placed_at", now).AddEvent("OrderPlaced", map[string]string{"id": "o-1"})
	}))

	res, err := exec.Execute(context.Background(), "order")
	require.NoError(t, err)
	require.True(t, res.Success())

	select {
	case msg := <-received:
		assert.Equal(t, "OrderPlaced", msg.Headers[boundedcontext.HeaderEventName])
	case <-time.After(time.Second):
		require.Fail(t, "event was not published")
	}
}
