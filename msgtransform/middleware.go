package msgtransform

import (
	"context"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
)

// Middleware applies Upstream reconstruction to the request and Downstream
// ordering assignment to the reply, wrapping the inner agent bidirectionally
// per spec §4.7.
type Middleware struct {
	upstream *Upstream
}

// New constructs a Middleware.
func New() *Middleware {
	return &Middleware{upstream: NewUpstream()}
}

// Invoke reconstructs aggregates in messages, calls inner, then assigns
// dense ordering to every reply.
func (m *Middleware) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options, inner agent.Agent) ([]message.Message, error) {
	replies, err := inner.Invoke(ctx, m.upstream.Reconstruct(messages), opts)
	if err != nil {
		return nil, err
	}
	d := NewDownstream()
	out := make([]message.Message, 0, len(replies))
	for _, r := range replies {
		assigned, err := d.Assign(r)
		if err != nil {
			return nil, err
		}
		out = append(out, assigned...)
	}
	return out, nil
}

// InvokeStreaming reconstructs aggregates in messages, then assigns dense
// ordering to each reply item as the stream is pulled.
func (m *Middleware) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options, inner agent.StreamingAgent) (<-chan agent.StreamItem, error) {
	upstream, err := inner.InvokeStreaming(ctx, m.upstream.Reconstruct(messages), opts)
	if err != nil {
		return nil, err
	}
	out := make(chan agent.StreamItem)
	go m.pumpDownstream(ctx, upstream, out)
	return out, nil
}

func (m *Middleware) pumpDownstream(ctx context.Context, upstream <-chan agent.StreamItem, out chan<- agent.StreamItem) {
	defer close(out)
	d := NewDownstream()
	for item := range upstream {
		if item.Err != nil {
			sendDownstreamItem(ctx, out, item)
			return
		}
		assigned, err := d.Assign(item.Message)
		if err != nil {
			sendDownstreamItem(ctx, out, agent.StreamItem{Err: err})
			return
		}
		for _, a := range assigned {
			if !sendDownstreamItem(ctx, out, agent.StreamItem{Message: a}) {
				return
			}
		}
	}
}

func sendDownstreamItem(ctx context.Context, out chan<- agent.StreamItem, item agent.StreamItem) bool {
	select {
	case out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}
