// Package membus is an in-process MessagingService. Messages are fanned out
// to every active consumer of a topic and are lost on restart.
package membus

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/jardisPsr/foundation/internal/adapters/messaging"
	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
)

const (
	Transport         = "memory"
	defaultBufferSize = 64
)

// Bus delivers messages to consumers through buffered channels. Publish
// never blocks: a consumer whose buffer is full misses the message.
type Bus struct {
	mu         sync.RWMutex
	topics     map[string]map[chan contracts.Message]struct{}
	done       chan struct{}
	bufferSize int
	dispatcher messaging.Dispatcher
}

type Option func(*Bus)

// WithBufferSize sets the per-consumer buffer. Values below 1 are ignored.
func WithBufferSize(size int) Option {
	return func(b *Bus) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

func New(log contracts.Logger, opts ...Option) *Bus {
	b := &Bus{
		topics:     make(map[string]map[chan contracts.Message]struct{}),
		done:       make(chan struct{}),
		bufferSize: defaultBufferSize,
		dispatcher: messaging.NewDispatcher(Transport, log),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Publish(_ context.Context, msg contracts.Message) error {
	msg, err := messaging.Prepare(msg)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed() {
		return fmt.Errorf("publish to %q: %w", msg.Topic, sentinel.ErrClosed)
	}

	for sub := range b.topics[msg.Topic] {
		select {
		case sub <- cloneMessage(msg):
		default:
			b.dispatcher.Dropped(messaging.DropBufferFull)
		}
	}
	b.dispatcher.Published()
	return nil
}

func (b *Bus) Consume(ctx context.Context, topic string, handler contracts.MessageHandler) error {
	if err := messaging.ValidateTopic(topic); err != nil {
		return err
	}

	sub, err := b.subscribe(topic)
	if err != nil {
		return err
	}
	defer b.unsubscribe(topic, sub)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub:
			if !ok {
				return nil
			}
			b.dispatcher.Dispatch(ctx, handler, msg)
		}
	}
}

// Close stops every consumer. Further publishes fail with sentinel.ErrClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed() {
		return nil
	}
	close(b.done)
	for _, subs := range b.topics {
		for sub := range subs {
			close(sub)
		}
	}
	b.topics = nil
	return nil
}

// SubscriberCount returns the number of active consumers of topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Bus) subscribe(topic string) (chan contracts.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed() {
		return nil, fmt.Errorf("consume %q: %w", topic, sentinel.ErrClosed)
	}
	sub := make(chan contracts.Message, b.bufferSize)
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[chan contracts.Message]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	return sub, nil
}

func (b *Bus) unsubscribe(topic string, sub chan contracts.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Close already released every channel.
	if b.closed() {
		return
	}
	delete(b.topics[topic], sub)
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
	close(sub)
}

func (b *Bus) closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

func cloneMessage(msg contracts.Message) contracts.Message {
	if msg.Payload != nil {
		msg.Payload = append([]byte(nil), msg.Payload...)
	}
	if msg.Headers != nil {
		msg.Headers = maps.Clone(msg.Headers)
	}
	return msg
}
