//go:build integration

package bootstrap_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/jardisPsr/foundation/internal/bootstrap"
	"github.com/jardisPsr/foundation/internal/platform/config"
	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/resource"
	"github.com/jardisPsr/foundation/pkg/testutil/containers"
)

type BootstrapSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redis    *containers.RedisContainer
	redpanda *containers.RedpandaContainer
}

func TestBootstrapSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(BootstrapSuite))
}

func (s *BootstrapSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.redis = mgr.GetRedis(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())
}

func (s *BootstrapSuite) config() config.Config {
	root := s.T().TempDir()
	return config.Config{
		AppRoot:        root,
		DomainRoot:     filepath.Join(root, "domain"),
		Log:            config.LogConfig{Level: "warn"},
		Cache:          config.CacheConfig{Driver: bootstrap.DriverRedis, Prefix: "it:", DefaultTTL: time.Minute},
		RedisCache:     config.RedisConfig{URL: s.redis.URL},
		RedisMessaging: config.RedisConfig{URL: s.redis.URL},
		Database: config.DatabaseConfig{
			Driver:       "pgx",
			WriterDSN:    s.postgres.DSN,
			ReaderDSNs:   []string{s.postgres.DSN, s.postgres.DSN},
			MaxOpenConns: 4,
		},
		Kafka: config.KafkaConfig{
			Brokers:       []string{s.redpanda.Broker},
			ClientID:      "bootstrap-it",
			ConsumerGroup: "bootstrap-it",
			CreateTopics:  true,
			Topics:        []string{"bootstrap-it"},
		},
		Messaging: config.MessagingConfig{Driver: bootstrap.DriverKafka},
	}
}

func (s *BootstrapSuite) TestOpensAndRegistersConnections() {
	ctx := context.Background()
	app, err := bootstrap.New(ctx, s.config())
	s.Require().NoError(err)

	reg := app.Registry
	_, err = resource.Lookup[*sql.DB](reg, resource.KeyPDOWriter)
	s.NoError(err)
	s.Equal([]string{resource.PDOReaderKey(1), resource.PDOReaderKey(2)}, resource.ReaderKeys(reg))
	_, err = resource.Lookup[*redis.Client](reg, resource.KeyRedisCache)
	s.NoError(err)
	_, err = resource.Lookup[*kgo.Client](reg, resource.KeyKafkaProducer)
	s.NoError(err)
	_, err = resource.Lookup[*kgo.Client](reg, resource.KeyKafkaConsumer)
	s.NoError(err)
	s.False(reg.Has(resource.KeyRedisMessaging), "redis messaging only opens for the redis driver")

	report := app.Health(ctx)
	s.True(report.OK(), "health: %v", report.Err())

	pool, ok := app.Kernel.ConnectionPool()
	s.Require().True(ok)
	s.NoError(pool.WithinTx(ctx, func(ctx context.Context) error {
		_, err := pool.Executor(ctx).ExecContext(ctx, "SELECT 1")
		return err
	}))

	cache, ok := app.Kernel.Cache()
	s.Require().True(ok)
	s.NoError(cache.Set(ctx, "greeting", []byte("hello"), 0))
	v, found, err := cache.Get(ctx, "greeting")
	s.NoError(err)
	s.True(found)
	s.Equal([]byte("hello"), v)

	s.Require().NoError(app.Close())
	for _, key := range []string{
		resource.KeyPDOWriter,
		resource.PDOReaderKey(1),
		resource.KeyRedisCache,
		resource.KeyKafkaProducer,
		resource.KeyKafkaConsumer,
	} {
		s.False(reg.Has(key), "%s should be unregistered after close", key)
	}
}

func (s *BootstrapSuite) TestKafkaMessagingRoundTrip() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := bootstrap.New(ctx, s.config())
	s.Require().NoError(err)
	defer app.Close()

	bus, ok := app.Kernel.Message()
	s.Require().True(ok)

	received := make(chan contracts.Message, 1)
	go func() {
		_ = bus.Consume(ctx, "bootstrap-it", func(_ context.Context, msg contracts.Message) error {
			received <- msg
			return nil
		})
	}()

	s.Require().NoError(bus.Publish(ctx, contracts.Message{Topic: "bootstrap-it", Payload: []byte("ping")}))

	select {
	case msg := <-received:
		s.Equal([]byte("ping"), msg.Payload)
	case <-ctx.Done():
		s.Fail("timeout waiting for kafka message")
	}
}
