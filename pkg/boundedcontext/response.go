package boundedcontext

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a domain event recorded while a handler runs.
type Event struct {
	ID         string
	Name       string
	Context    string
	Payload    any
	OccurredAt time.Time
}

// Response collects what one bounded-context execution produced. Nested
// executions are attached as sub-responses. All methods are safe for
// concurrent use.
type Response struct {
	id      string
	context string

	mu       sync.RWMutex
	data     map[string]any
	messages []string
	errs     []error
	events   []Event
	subs     []*Response
}

// NewResponse returns an empty response for the named context.
func NewResponse(contextName string) *Response {
	return &Response{
		id:      uuid.NewString(),
		context: contextName,
		data:    make(map[string]any),
	}
}

func (r *Response) ID() string      { return r.id }
func (r *Response) Context() string { return r.context }

func (r *Response) Set(key string, value any) *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = value
	return r
}

func (r *Response) Get(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[key]
	return v, ok
}

// Data returns a copy of the response's own data.
func (r *Response) Data() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.data)
}

func (r *Response) AddMessage(msg string) *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return r
}

// AddError records err. Nil errors are ignored.
func (r *Response) AddError(err error) *Response {
	if err == nil {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	return r
}

// AddEvent records a domain event stamped with a fresh ID, this response's
// context and the current time.
func (r *Response) AddEvent(name string, payload any) *Response {
	return r.RecordEvent(Event{Name: name, Payload: payload})
}

// RecordEvent records ev, filling ID, Context and OccurredAt when empty.
func (r *Response) RecordEvent(ev Event) *Response {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Context == "" {
		ev.Context = r.context
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r
}

// AddSub attaches a nested response. Nil subs and subs that already contain
// r are ignored, so the tree stays acyclic.
func (r *Response) AddSub(sub *Response) *Response {
	if sub == nil || sub.contains(r) {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, sub)
	return r
}

func (r *Response) contains(target *Response) bool {
	if r == target {
		return true
	}
	for _, sub := range r.Subs() {
		if sub.contains(target) {
			return true
		}
	}
	return false
}

func (r *Response) Messages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.messages...)
}

func (r *Response) Errors() []error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]error(nil), r.errs...)
}

func (r *Response) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Event(nil), r.events...)
}

func (r *Response) Subs() []*Response {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Response(nil), r.subs...)
}

// Success reports whether neither r nor any sub-response holds an error.
func (r *Response) Success() bool {
	if len(r.Errors()) > 0 {
		return false
	}
	for _, sub := range r.Subs() {
		if !sub.Success() {
			return false
		}
	}
	return true
}

// AllEvents returns r's events followed by those of each sub-response,
// depth-first.
func (r *Response) AllEvents() []Event {
	out := r.Events()
	for _, sub := range r.Subs() {
		out = append(out, sub.AllEvents()...)
	}
	return out
}

func (r *Response) AllErrors() []error {
	out := r.Errors()
	for _, sub := range r.Subs() {
		out = append(out, sub.AllErrors()...)
	}
	return out
}

func (r *Response) AllMessages() []string {
	out := r.Messages()
	for _, sub := range r.Subs() {
		out = append(out, sub.AllMessages()...)
	}
	return out
}

// adopt merges everything recorded on other into r. other's messages,
// errors and events come first; r's data wins on key collisions.
func (r *Response) adopt(other *Response) {
	if other == nil || other == r {
		return
	}
	data := other.Data()
	messages := other.Messages()
	errs := other.Errors()
	events := other.Events()
	subs := other.Subs()

	r.mu.Lock()
	for k, v := range data {
		if _, ok := r.data[k]; !ok {
			r.data[k] = v
		}
	}
	r.messages = append(messages, r.messages...)
	r.errs = append(errs, r.errs...)
	r.events = append(events, r.events...)
	r.mu.Unlock()

	for _, sub := range subs {
		r.AddSub(sub)
	}
}
