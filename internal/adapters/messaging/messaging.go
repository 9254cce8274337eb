// Package messaging holds the pieces shared by the contracts.MessagingService
// transports: envelope validation and handler dispatch.
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jardisPsr/foundation/internal/platform/logger"
	"github.com/jardisPsr/foundation/internal/platform/metrics"
	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
)

// Prepare validates msg and fills a missing ID and Timestamp.
func Prepare(msg contracts.Message) (contracts.Message, error) {
	if msg.Topic == "" {
		return msg, fmt.Errorf("message topic is empty: %w", sentinel.ErrInvalidArgument)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return msg, nil
}

// ValidateTopic rejects empty topic names.
func ValidateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("topic is empty: %w", sentinel.ErrInvalidArgument)
	}
	return nil
}

// Dispatcher runs handlers for one transport, counting outcomes and logging
// handler failures without propagating them.
type Dispatcher struct {
	transport string
	log       contracts.Logger
}

func NewDispatcher(transport string, log contracts.Logger) Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return Dispatcher{transport: transport, log: log}
}

// Dispatch calls handler and reports whether it succeeded. Panics are
// recovered and treated as failures.
func (d Dispatcher) Dispatch(ctx context.Context, handler contracts.MessageHandler, msg contracts.Message) (ok bool) {
	metrics.IncrementConsumed(d.transport)
	defer func() {
		if p := recover(); p != nil {
			metrics.IncrementHandlerFailures(d.transport)
			d.log.Error("message handler panicked", "transport", d.transport, "topic", msg.Topic, "message_id", msg.ID, "panic", fmt.Sprint(p))
			ok = false
		}
	}()
	if err := handler(ctx, msg); err != nil {
		metrics.IncrementHandlerFailures(d.transport)
		d.log.Warn("message handler failed", "transport", d.transport, "topic", msg.Topic, "message_id", msg.ID, "error", err)
		return false
	}
	return true
}

// Published records a successful publish for the transport.
func (d Dispatcher) Published() {
	metrics.IncrementPublished(d.transport)
}

// Reasons a message is discarded before reaching a handler.
const (
	DropBufferFull  = "buffer_full"
	DropUndecodable = "undecodable"
)

// Dropped records a message discarded before reaching a handler.
func (d Dispatcher) Dropped(reason string) {
	metrics.IncrementDropped(d.transport, reason)
}

// Logger returns the dispatcher's logger.
func (d Dispatcher) Logger() contracts.Logger {
	return d.log
}
