// Package kafka opens franz-go clients for producing and consuming.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/jardisPsr/foundation/internal/platform/config"
)

// NewProducer returns a producer client, or nil when no brokers are
// configured.
func NewProducer(ctx context.Context, cfg config.KafkaConfig) (*kgo.Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	return newClient(ctx, cfg,
		kgo.ClientID(cfg.ClientID+"-producer"),
		kgo.AllowAutoTopicCreation(),
	)
}

// NewConsumer returns a consumer-group client for cfg.Topics, or nil when no
// brokers are configured. Every topic starts paused: records are fetched only
// once a caller resumes the topic, and only offsets marked with
// MarkCommitRecords are committed.
func NewConsumer(ctx context.Context, cfg config.KafkaConfig) (*kgo.Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	opts := []kgo.Opt{
		kgo.ClientID(cfg.ClientID + "-consumer"),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.AutoCommitMarks(),
	}
	if len(cfg.Topics) > 0 {
		opts = append(opts, kgo.ConsumeTopics(cfg.Topics...))
	}
	client, err := newClient(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if len(cfg.Topics) > 0 {
		client.PauseFetchTopics(cfg.Topics...)
	}
	return client, nil
}

func newClient(ctx context.Context, cfg config.KafkaConfig, opts ...kgo.Opt) (*kgo.Client, error) {
	opts = append([]kgo.Opt{kgo.SeedBrokers(cfg.Brokers...)}, opts...)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}
	return client, nil
}

// EnsureTopics creates the given topics with one partition and replication
// factor one, ignoring topics that already exist.
func EnsureTopics(ctx context.Context, client *kgo.Client, topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, r := range resp.Sorted() {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}
