package boundedcontext

import (
	"context"
	"fmt"

	"github.com/jardisPsr/foundation/pkg/contracts"
)

// Request is the input handed to a Handler.
type Request struct {
	Name   string
	Kernel contracts.DomainKernel
	Params []any

	executor *Executor
	response *Response
}

// Param returns the i-th parameter, or (nil, false) when out of range.
func (r *Request) Param(i int) (any, bool) {
	if i < 0 || i >= len(r.Params) {
		return nil, false
	}
	return r.Params[i], true
}

// Response is the response the executor prepared for this request.
func (r *Request) Response() *Response {
	return r.response
}

// Call executes another bounded context and attaches its response to this
// request's response. Events of the nested call are published together with
// the outermost execution.
func (r *Request) Call(ctx context.Context, name string, params ...any) (*Response, error) {
	if r.executor == nil {
		return nil, fmt.Errorf("request %q has no executor", r.Name)
	}
	sub, err := r.executor.run(ctx, name, params)
	if err != nil {
		return nil, err
	}
	r.response.AddSub(sub)
	return sub, nil
}
