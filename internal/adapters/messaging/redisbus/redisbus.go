// Package redisbus implements MessagingService over Redis pub/sub. Delivery
// is at-most-once: consumers only see messages published while subscribed.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jardisPsr/foundation/internal/adapters/messaging"
	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
)

const Transport = "redis"

// envelope is the JSON wire form of a contracts.Message.
type envelope struct {
	ID        string            `json:"id"`
	Key       string            `json:"key,omitempty"`
	Payload   []byte            `json:"payload,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type Bus struct {
	client     *redis.Client
	dispatcher messaging.Dispatcher

	closeOnce sync.Once
	done      chan struct{}
}

// New wraps a client registered under connection.redis.messaging. The bus
// does not own the client.
func New(client *redis.Client, log contracts.Logger) *Bus {
	return &Bus{
		client:     client,
		dispatcher: messaging.NewDispatcher(Transport, log),
		done:       make(chan struct{}),
	}
}

func (b *Bus) Publish(ctx context.Context, msg contracts.Message) error {
	msg, err := messaging.Prepare(msg)
	if err != nil {
		return err
	}
	if b.isClosed() {
		return fmt.Errorf("publish to %q: %w", msg.Topic, sentinel.ErrClosed)
	}

	data, err := encode(msg)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, msg.Topic, data).Err(); err != nil {
		return fmt.Errorf("publish to %q: %w", msg.Topic, err)
	}
	b.dispatcher.Published()
	return nil
}

func (b *Bus) Consume(ctx context.Context, topic string, handler contracts.MessageHandler) error {
	if err := messaging.ValidateTopic(topic); err != nil {
		return err
	}
	if b.isClosed() {
		return fmt.Errorf("consume %q: %w", topic, sentinel.ErrClosed)
	}

	sub := b.client.Subscribe(ctx, topic)
	defer sub.Close()

	// Wait for the subscription confirmation so messages published after
	// Consume starts are not missed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %q: %w", topic, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return nil
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := decode(raw.Channel, []byte(raw.Payload))
			if err != nil {
				b.dispatcher.Dropped(messaging.DropUndecodable)
				b.dispatcher.Logger().Warn("dropping undecodable message", "transport", Transport, "topic", raw.Channel, "error", err)
				continue
			}
			b.dispatcher.Dispatch(ctx, handler, msg)
		}
	}
}

// Close stops running consumers. The underlying client stays open.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}

func (b *Bus) isClosed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

func encode(msg contracts.Message) ([]byte, error) {
	data, err := json.Marshal(envelope{
		ID:        msg.ID,
		Key:       msg.Key,
		Payload:   msg.Payload,
		Headers:   msg.Headers,
		Timestamp: msg.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("encode message %s: %w", msg.ID, err)
	}
	return data, nil
}

func decode(topic string, data []byte) (contracts.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return contracts.Message{}, fmt.Errorf("decode message: %w", err)
	}
	return contracts.Message{
		ID:        env.ID,
		Topic:     topic,
		Key:       env.Key,
		Payload:   env.Payload,
		Headers:   env.Headers,
		Timestamp: env.Timestamp,
	}, nil
}
