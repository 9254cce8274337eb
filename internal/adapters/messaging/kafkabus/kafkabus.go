// Package kafkabus implements MessagingService on franz-go clients. One
// background poll loop serves every topic a caller consumes.
package kafkabus

import (
	"context"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/jardisPsr/foundation/internal/adapters/messaging"
	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
)

const (
	Transport = "kafka"

	// HeaderMessageID carries Message.ID, which Kafka records lack.
	HeaderMessageID = "message-id"
)

// Bus publishes with the producer client and consumes with the consumer
// client. Either may be nil, in which case the matching operation fails with
// sentinel.ErrUnavailable. The bus does not close the clients.
type Bus struct {
	producer   *kgo.Client
	consumer   *kgo.Client
	dispatcher messaging.Dispatcher

	mu       sync.Mutex
	handlers map[string]contracts.MessageHandler
	closed   bool

	pollOnce   sync.Once
	pollCtx    context.Context
	stopPoll   context.CancelFunc
	pollExited chan struct{}
	done       chan struct{}
}

func New(producer, consumer *kgo.Client, log contracts.Logger) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		producer:   producer,
		consumer:   consumer,
		dispatcher: messaging.NewDispatcher(Transport, log),
		handlers:   make(map[string]contracts.MessageHandler),
		pollCtx:    ctx,
		stopPoll:   cancel,
		pollExited: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (b *Bus) Publish(ctx context.Context, msg contracts.Message) error {
	msg, err := messaging.Prepare(msg)
	if err != nil {
		return err
	}
	if b.producer == nil {
		return fmt.Errorf("publish to %q: no kafka producer: %w", msg.Topic, sentinel.ErrUnavailable)
	}
	if b.isClosed() {
		return fmt.Errorf("publish to %q: %w", msg.Topic, sentinel.ErrClosed)
	}

	if err := b.producer.ProduceSync(ctx, toRecord(msg)).FirstErr(); err != nil {
		return fmt.Errorf("publish to %q: %w", msg.Topic, err)
	}
	b.dispatcher.Published()
	return nil
}

// Consume registers handler for topic and blocks until ctx is done or the
// bus is closed. Only one handler per topic may be active at a time; a
// second concurrent Consume on the same topic fails with
// sentinel.ErrConflict.
func (b *Bus) Consume(ctx context.Context, topic string, handler contracts.MessageHandler) error {
	if err := messaging.ValidateTopic(topic); err != nil {
		return err
	}
	if b.consumer == nil {
		return fmt.Errorf("consume %q: no kafka consumer: %w", topic, sentinel.ErrUnavailable)
	}
	if err := b.register(topic, handler); err != nil {
		return err
	}
	defer b.unregister(topic)

	b.pollOnce.Do(func() { go b.poll() })

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return nil
	}
}

// Close stops the poll loop and releases blocked consumers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.stopPoll()
	started := true
	b.pollOnce.Do(func() { started = false })
	if started {
		<-b.pollExited
	}
	close(b.done)
	return nil
}

func (b *Bus) register(topic string, handler contracts.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("consume %q: %w", topic, sentinel.ErrClosed)
	}
	if _, exists := b.handlers[topic]; exists {
		return fmt.Errorf("consume %q: topic already has a consumer: %w", topic, sentinel.ErrConflict)
	}
	b.handlers[topic] = handler
	b.consumer.AddConsumeTopics(topic)
	b.consumer.ResumeFetchTopics(topic)
	return nil
}

func (b *Bus) unregister(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, topic)
	// Paused topics keep their offsets so a later Consume resumes there.
	b.consumer.PauseFetchTopics(topic)
}

func (b *Bus) handler(topic string) contracts.MessageHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handlers[topic]
}

func (b *Bus) poll() {
	defer close(b.pollExited)
	log := b.dispatcher.Logger()

	for {
		fetches := b.consumer.PollFetches(b.pollCtx)
		if fetches.IsClientClosed() || b.pollCtx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			log.Warn("kafka fetch failed", "topic", topic, "partition", partition, "error", err)
		})
		var rewind map[string]map[int32]kgo.EpochOffset
		fetches.EachRecord(func(rec *kgo.Record) {
			handler := b.handler(rec.Topic)
			if handler == nil {
				rewind = addRewind(rewind, rec)
				return
			}
			b.dispatcher.Dispatch(b.pollCtx, handler, fromRecord(rec))
			b.consumer.MarkCommitRecords(rec)
		})
		if len(rewind) > 0 {
			// Records fetched just before their consumer left are neither
			// handled nor committed; fetching restarts at them on resume.
			b.consumer.SetOffsets(rewind)
			for topic := range rewind {
				if b.handler(topic) == nil {
					b.consumer.PauseFetchTopics(topic)
				}
			}
		}
	}
}

// addRewind records rec's offset unless an earlier record of the same
// partition is already recorded.
func addRewind(rewind map[string]map[int32]kgo.EpochOffset, rec *kgo.Record) map[string]map[int32]kgo.EpochOffset {
	if rewind == nil {
		rewind = make(map[string]map[int32]kgo.EpochOffset)
	}
	partitions, ok := rewind[rec.Topic]
	if !ok {
		partitions = make(map[int32]kgo.EpochOffset)
		rewind[rec.Topic] = partitions
	}
	if _, seen := partitions[rec.Partition]; !seen {
		partitions[rec.Partition] = kgo.EpochOffset{Epoch: rec.LeaderEpoch, Offset: rec.Offset}
	}
	return rewind
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func toRecord(msg contracts.Message) *kgo.Record {
	rec := &kgo.Record{
		Topic:     msg.Topic,
		Value:     msg.Payload,
		Timestamp: msg.Timestamp,
		Headers:   make([]kgo.RecordHeader, 0, len(msg.Headers)+1),
	}
	if msg.Key != "" {
		rec.Key = []byte(msg.Key)
	}
	rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: HeaderMessageID, Value: []byte(msg.ID)})
	for k, v := range msg.Headers {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return rec
}

func fromRecord(rec *kgo.Record) contracts.Message {
	msg := contracts.Message{
		Topic:     rec.Topic,
		Key:       string(rec.Key),
		Payload:   rec.Value,
		Timestamp: rec.Timestamp,
	}
	for _, h := range rec.Headers {
		if h.Key == HeaderMessageID {
			msg.ID = string(h.Value)
			continue
		}
		if msg.Headers == nil {
			msg.Headers = make(map[string]string, len(rec.Headers))
		}
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}
