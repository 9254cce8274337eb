// Package boundedcontext runs named domain handlers against a DomainKernel
// and aggregates their results into a Response tree.
package boundedcontext

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
)

const (
	tracerName = "github.com/jardisPsr/foundation/pkg/boundedcontext"
	spanPrefix = "boundedcontext.Execute "

	// Headers set on published domain events.
	HeaderEventName = "event-name"
	HeaderContext   = "bounded-context"
)

// Handler implements one bounded context.
type Handler interface {
	Handle(ctx context.Context, req *Request) *Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) *Response

func (f HandlerFunc) Handle(ctx context.Context, req *Request) *Response {
	return f(ctx, req)
}

type Option func(*Executor)

// WithTracer replaces the global otel tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithEventTopic publishes the events of every successful top-level
// execution to topic through the kernel's MessagingService.
func WithEventTopic(topic string) Option {
	return func(e *Executor) {
		e.eventTopic = topic
	}
}

type Executor struct {
	kernel     contracts.DomainKernel
	tracer     trace.Tracer
	eventTopic string

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewExecutor(kernel contracts.DomainKernel, opts ...Option) *Executor {
	e := &Executor{
		kernel:   kernel,
		tracer:   otel.Tracer(tracerName),
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register binds h to name, replacing any earlier handler.
func (e *Executor) Register(name string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = h
}

func (e *Executor) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.handlers[name]
	return ok
}

// Names returns the registered context names in sorted order.
func (e *Executor) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the handler registered under name. The returned error is
// non-nil only when no such handler exists; handler failures, including
// panics, are reported through the response.
func (e *Executor) Execute(ctx context.Context, name string, params ...any) (*Response, error) {
	res, err := e.run(ctx, name, params)
	if err != nil {
		return nil, err
	}
	if e.eventTopic != "" && res.Success() {
		e.publishEvents(ctx, res)
	}
	return res, nil
}

func (e *Executor) run(ctx context.Context, name string, params []any) (res *Response, err error) {
	e.mu.RLock()
	h, ok := e.handlers[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("bounded context %q: %w", name, sentinel.ErrNotFound)
	}

	ctx, span := e.tracer.Start(ctx, spanPrefix+name, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	req := &Request{
		Name:     name,
		Kernel:   e.kernel,
		Params:   params,
		executor: e,
		response: NewResponse(name),
	}
	span.SetAttributes(
		attribute.String("boundedcontext.name", name),
		attribute.String("boundedcontext.response_id", req.response.ID()),
		attribute.Int("boundedcontext.params", len(params)),
	)

	start := time.Now()
	defer func() {
		success := res.Success()
		observeExecution(name, success, time.Since(start).Seconds())
		if success {
			span.SetStatus(codes.Ok, "")
			return
		}
		for _, resErr := range res.AllErrors() {
			span.RecordError(resErr)
		}
		span.SetStatus(codes.Error, "bounded context reported errors")
	}()

	return e.handle(ctx, h, req), nil
}

func (e *Executor) handle(ctx context.Context, h Handler, req *Request) (res *Response) {
	defer func() {
		if p := recover(); p != nil {
			res = req.response
			res.AddError(fmt.Errorf("bounded context %q panicked: %v", req.Name, p))
			e.logger().Error("bounded context panicked", "context", req.Name, "panic", fmt.Sprint(p))
		}
	}()

	res = h.Handle(ctx, req)
	if res == nil {
		return req.response
	}
	res.adopt(req.response)
	return res
}

func (e *Executor) publishEvents(ctx context.Context, res *Response) {
	events := res.AllEvents()
	if len(events) == 0 || e.kernel == nil {
		return
	}
	bus, ok := e.kernel.Message()
	if !ok {
		return
	}

	for _, ev := range events {
		msg, err := eventMessage(e.eventTopic, ev)
		if err == nil {
			err = bus.Publish(ctx, msg)
		}
		if err != nil {
			eventPublishFailures.WithLabelValues(ev.Context).Inc()
			res.AddError(fmt.Errorf("publish event %s (%s): %w", ev.Name, ev.ID, err))
			e.logger().Warn("domain event publish failed", "event", ev.Name, "event_id", ev.ID, "error", err)
		}
	}
}

func (e *Executor) logger() contracts.Logger {
	if e.kernel != nil {
		if log, ok := e.kernel.Logger(); ok {
			return log
		}
	}
	return nopLogger{}
}

func eventMessage(topic string, ev Event) (contracts.Message, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return contracts.Message{}, fmt.Errorf("encode event payload: %w", err)
	}
	return contracts.Message{
		ID:      ev.ID,
		Topic:   topic,
		Key:     ev.Context,
		Payload: payload,
		Headers: map[string]string{
			HeaderEventName: ev.Name,
			HeaderContext:   ev.Context,
		},
		Timestamp: ev.OccurredAt,
	}, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any)           {}
func (nopLogger) Info(string, ...any)            {}
func (nopLogger) Warn(string, ...any)            {}
func (nopLogger) Error(string, ...any)           {}
func (n nopLogger) With(...any) contracts.Logger { return n }
