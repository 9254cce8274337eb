// Package amqpbus implements MessagingService on a RabbitMQ topic exchange.
// Topics map to routing keys; each Consume binds its own queue.
package amqpbus

import (
	"context"
	"fmt"
	"sync"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/jardisPsr/foundation/internal/adapters/messaging"
	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
)

const (
	Transport = "amqp"

	// HeaderMessageKey carries Message.Key, which AMQP has no field for.
	HeaderMessageKey = "x-message-key"

	contentType = "application/octet-stream"
)

// Bus publishes on a shared channel and opens one channel per consumer.
// The connection belongs to the caller.
type Bus struct {
	conn        *amqp091.Connection
	exchange    string
	queuePrefix string
	dispatcher  messaging.Dispatcher

	mu      sync.Mutex
	publish *amqp091.Channel
	closed  bool
	done    chan struct{}
}

// New declares exchange as a durable topic exchange. With a non-empty
// queuePrefix consumers use durable queues named "<prefix>.<topic>";
// otherwise each consumer gets an exclusive server-named queue.
func New(conn *amqp091.Connection, exchange, queuePrefix string, log contracts.Logger) (*Bus, error) {
	if conn == nil {
		return nil, fmt.Errorf("amqp connection is nil: %w", sentinel.ErrInvalidArgument)
	}
	if exchange == "" {
		return nil, fmt.Errorf("amqp exchange is empty: %w", sentinel.ErrInvalidArgument)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := declareExchange(ch, exchange); err != nil {
		_ = ch.Close()
		return nil, err
	}

	return &Bus{
		conn:        conn,
		exchange:    exchange,
		queuePrefix: queuePrefix,
		dispatcher:  messaging.NewDispatcher(Transport, log),
		publish:     ch,
		done:        make(chan struct{}),
	}, nil
}

func (b *Bus) Publish(ctx context.Context, msg contracts.Message) error {
	msg, err := messaging.Prepare(msg)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("publish to %q: %w", msg.Topic, sentinel.ErrClosed)
	}
	if err := b.publish.PublishWithContext(ctx, b.exchange, msg.Topic, false, false, toPublishing(msg)); err != nil {
		return fmt.Errorf("publish to %q: %w", msg.Topic, err)
	}
	b.dispatcher.Published()
	return nil
}

// Consume acknowledges a delivery once its handler returns. Failed
// deliveries are rejected without requeue so a poison message cannot stall
// the queue.
func (b *Bus) Consume(ctx context.Context, topic string, handler contracts.MessageHandler) error {
	if err := messaging.ValidateTopic(topic); err != nil {
		return err
	}
	if b.isClosed() {
		return fmt.Errorf("consume %q: %w", topic, sentinel.ErrClosed)
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open amqp channel: %w", err)
	}
	defer ch.Close()

	deliveries, err := b.subscribe(ch, topic)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if b.dispatcher.Dispatch(ctx, handler, fromDelivery(d)) {
				_ = d.Ack(false)
			} else {
				_ = d.Nack(false, false)
			}
		}
	}
}

// Close closes the publish channel and stops consumers. The connection
// stays open.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	if err := b.publish.Close(); err != nil && !b.conn.IsClosed() {
		return fmt.Errorf("close amqp channel: %w", err)
	}
	return nil
}

func (b *Bus) subscribe(ch *amqp091.Channel, topic string) (<-chan amqp091.Delivery, error) {
	name, durable, exclusive := "", false, true
	if b.queuePrefix != "" {
		name, durable, exclusive = b.queuePrefix+"."+topic, true, false
	}

	q, err := ch.QueueDeclare(name, durable, !durable, exclusive, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue for %q: %w", topic, err)
	}
	if err := ch.QueueBind(q.Name, topic, b.exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s to %q: %w", q.Name, topic, err)
	}
	deliveries, err := ch.Consume(q.Name, "", false, exclusive, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume queue %s: %w", q.Name, err)
	}
	return deliveries, nil
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func declareExchange(ch *amqp091.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, amqp091.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return nil
}

func toPublishing(msg contracts.Message) amqp091.Publishing {
	headers := make(amqp091.Table, len(msg.Headers)+1)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	if msg.Key != "" {
		headers[HeaderMessageKey] = msg.Key
	}
	return amqp091.Publishing{
		Headers:      headers,
		ContentType:  contentType,
		DeliveryMode: amqp091.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.Timestamp,
		Body:         msg.Payload,
	}
}

func fromDelivery(d amqp091.Delivery) contracts.Message {
	msg := contracts.Message{
		ID:        d.MessageId,
		Topic:     d.RoutingKey,
		Payload:   d.Body,
		Timestamp: d.Timestamp,
	}
	for k, v := range d.Headers {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		if k == HeaderMessageKey {
			msg.Key = s
			continue
		}
		if msg.Headers == nil {
			msg.Headers = make(map[string]string, len(d.Headers))
		}
		msg.Headers[k] = s
	}
	return msg
}
