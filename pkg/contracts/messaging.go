package contracts

import (
	"context"
	"time"
)

// Message is the transport-neutral envelope exchanged through a
// MessagingService.
type Message struct {
	ID        string
	Topic     string
	Key       string
	Payload   []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one consumed message.
type MessageHandler func(ctx context.Context, msg Message) error

// MessagingService publishes and consumes messages on named topics.
type MessagingService interface {
	// Publish sends msg to msg.Topic. A missing ID is filled with a UUID and a
	// zero Timestamp with the current time.
	Publish(ctx context.Context, msg Message) error
	// Consume delivers messages from topic to handler until ctx is done or the
	// service is closed. Handler errors do not stop consumption. It returns
	// ctx.Err() when ctx ends and nil once the service is closed.
	Consume(ctx context.Context, topic string, handler MessageHandler) error
	Close() error
}
