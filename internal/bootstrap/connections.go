package bootstrap

import (
	"context"
	"fmt"

	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/jardisPsr/foundation/internal/adapters/cache/memcache"
	"github.com/jardisPsr/foundation/internal/adapters/cache/rediscache"
	"github.com/jardisPsr/foundation/internal/adapters/messaging/amqpbus"
	"github.com/jardisPsr/foundation/internal/adapters/messaging/kafkabus"
	"github.com/jardisPsr/foundation/internal/adapters/messaging/membus"
	"github.com/jardisPsr/foundation/internal/adapters/messaging/redisbus"
	"github.com/jardisPsr/foundation/internal/platform/amqp"
	"github.com/jardisPsr/foundation/internal/platform/kafka"
	"github.com/jardisPsr/foundation/internal/platform/metrics"
	"github.com/jardisPsr/foundation/internal/platform/postgres"
	redisclient "github.com/jardisPsr/foundation/internal/platform/redis"
	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
	strs "github.com/jardisPsr/foundation/pkg/platform/strings"
	"github.com/jardisPsr/foundation/pkg/resource"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverKafka  = "kafka"
	DriverAMQP   = "amqp"
)

// openConnections creates every configured connection whose key is not yet
// registered.
func (a *App) openConnections(ctx context.Context) error {
	cfg := a.Config

	if err := a.openSQL(ctx, resource.KeyPDOWriter, cfg.Database.WriterDSN); err != nil {
		return err
	}
	for i, dsn := range cfg.Database.ReaderDSNs {
		if err := a.openSQL(ctx, resource.PDOReaderKey(i+1), dsn); err != nil {
			return err
		}
	}

	if err := a.openRedis(resource.KeyRedisCache, cfg.RedisCache.URL != "", func() (*redis.Client, error) {
		return redisclient.New(ctx, cfg.RedisCache)
	}); err != nil {
		return err
	}
	if err := a.openRedis(resource.KeyRedisMessaging, cfg.Messaging.Driver == DriverRedis, func() (*redis.Client, error) {
		return redisclient.New(ctx, cfg.RedisMessaging)
	}); err != nil {
		return err
	}

	if err := a.openKafka(ctx); err != nil {
		return err
	}
	return a.openAMQP()
}

func (a *App) openSQL(ctx context.Context, key, dsn string) error {
	if dsn == "" || a.Registry.Has(key) {
		return nil
	}
	db, err := postgres.Open(ctx, a.Config.Database, dsn)
	if err != nil {
		return fmt.Errorf("open %s: %w", key, err)
	}
	a.own(key, db, db.Close)
	metrics.IncrementConnectionsOpened(key)
	return nil
}

func (a *App) openRedis(key string, wanted bool, open func() (*redis.Client, error)) error {
	if !wanted || a.Registry.Has(key) {
		return nil
	}
	client, err := open()
	if err != nil {
		return fmt.Errorf("open %s: %w", key, err)
	}
	if client == nil {
		return nil
	}
	a.own(key, client, client.Close)
	metrics.IncrementConnectionsOpened(key)
	return nil
}

func (a *App) openKafka(ctx context.Context) error {
	cfg := a.Config.Kafka
	if len(cfg.Brokers) == 0 {
		return nil
	}

	if !a.Registry.Has(resource.KeyKafkaProducer) {
		producer, err := kafka.NewProducer(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open %s: %w", resource.KeyKafkaProducer, err)
		}
		a.own(resource.KeyKafkaProducer, producer, closeKafka(producer))
		metrics.IncrementConnectionsOpened(resource.KeyKafkaProducer)
	}

	if cfg.CreateTopics {
		producer, err := resource.Lookup[*kgo.Client](a.Registry, resource.KeyKafkaProducer)
		if err != nil {
			return err
		}
		topics := append(append([]string(nil), cfg.Topics...), a.Config.Messaging.EventTopic)
		if err := kafka.EnsureTopics(ctx, producer, strs.DedupeAndTrim(topics)...); err != nil {
			return err
		}
	}

	if !a.Registry.Has(resource.KeyKafkaConsumer) {
		consumer, err := kafka.NewConsumer(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open %s: %w", resource.KeyKafkaConsumer, err)
		}
		a.own(resource.KeyKafkaConsumer, consumer, closeKafka(consumer))
		metrics.IncrementConnectionsOpened(resource.KeyKafkaConsumer)
	}
	return nil
}

func closeKafka(client *kgo.Client) func() error {
	return func() error {
		client.Close()
		return nil
	}
}

func (a *App) openAMQP() error {
	if a.Config.AMQP.URL == "" || a.Registry.Has(resource.KeyAMQP) {
		return nil
	}
	conn, err := amqp.Dial(a.Config.AMQP)
	if err != nil {
		return fmt.Errorf("open %s: %w", resource.KeyAMQP, err)
	}
	a.own(resource.KeyAMQP, conn, conn.Close)
	metrics.IncrementConnectionsOpened(resource.KeyAMQP)
	return nil
}

func (a *App) buildCache() (contracts.Cache, error) {
	cfg := a.Config.Cache
	switch cfg.Driver {
	case "":
		return nil, nil
	case DriverMemory:
		return memcache.New(cfg.DefaultTTL, 0), nil
	case DriverRedis:
		client, err := resource.Lookup[*redis.Client](a.Registry, resource.KeyRedisCache)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return rediscache.New(client, cfg.Prefix, cfg.DefaultTTL), nil
	default:
		return nil, fmt.Errorf("cache driver %q: %w", cfg.Driver, sentinel.ErrInvalidArgument)
	}
}

func (a *App) buildMessaging() (contracts.MessagingService, error) {
	cfg := a.Config
	switch cfg.Messaging.Driver {
	case "":
		return nil, nil
	case DriverMemory:
		return membus.New(a.Logger), nil
	case DriverRedis:
		client, err := resource.Lookup[*redis.Client](a.Registry, resource.KeyRedisMessaging)
		if err != nil {
			return nil, fmt.Errorf("redis messaging: %w", err)
		}
		return redisbus.New(client, a.Logger), nil
	case DriverKafka:
		producer, err := resource.Lookup[*kgo.Client](a.Registry, resource.KeyKafkaProducer)
		if err != nil {
			return nil, fmt.Errorf("kafka messaging: %w", err)
		}
		var consumer *kgo.Client
		if a.Registry.Has(resource.KeyKafkaConsumer) {
			if consumer, err = resource.Lookup[*kgo.Client](a.Registry, resource.KeyKafkaConsumer); err != nil {
				return nil, fmt.Errorf("kafka messaging: %w", err)
			}
		}
		return kafkabus.New(producer, consumer, a.Logger), nil
	case DriverAMQP:
		conn, err := resource.Lookup[*amqp091.Connection](a.Registry, resource.KeyAMQP)
		if err != nil {
			return nil, fmt.Errorf("amqp messaging: %w", err)
		}
		bus, err := amqpbus.New(conn, cfg.AMQP.Exchange, cfg.AMQP.Queue, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("amqp messaging: %w", err)
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("messaging driver %q: %w", cfg.Messaging.Driver, sentinel.ErrInvalidArgument)
	}
}
