// Package jsonfrag enriches streamed tool-call argument deltas with
// per-tool-call, JSON-path-level mutation events, so a consumer can render a
// tool call's arguments incrementally instead of waiting for the full
// ToolCall to complete.
package jsonfrag

import (
	"context"
	"sync"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
)

// Middleware implements agent.StreamingMiddleware per spec §4.6. Unlike the
// rest of the pipeline's middlewares, it owns generator state per instance
// rather than per request: generators persist across requests so that a
// tool call's argument scanner keeps accumulating across reconnects within
// the same logical call. Per spec §8's concurrency note, _generators (here,
// Middleware.generators) is NOT safe for concurrent mutation: build and
// populate a Middleware single-threaded, or instantiate one per request if
// concurrent requests must not share generator state.
type Middleware struct {
	mu         sync.Mutex
	generators map[string]*generator
}

// New constructs an empty Middleware.
func New() *Middleware {
	return &Middleware{generators: map[string]*generator{}}
}

// Reset discards all generator state, as if no tool call had been observed.
func (m *Middleware) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generators = map[string]*generator{}
}

// Invoke passes non-streaming calls through unchanged: a bounded reply
// carries complete ToolCalls, never the incremental updates this middleware
// enriches.
func (m *Middleware) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options, inner agent.Agent) ([]message.Message, error) {
	return inner.Invoke(ctx, messages, opts)
}

// InvokeStreaming implements agent.StreamingMiddleware.
func (m *Middleware) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options, inner agent.StreamingAgent) (<-chan agent.StreamItem, error) {
	upstream, err := inner.InvokeStreaming(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	out := make(chan agent.StreamItem)
	go m.pump(ctx, upstream, out)
	return out, nil
}

func (m *Middleware) pump(ctx context.Context, upstream <-chan agent.StreamItem, out chan<- agent.StreamItem) {
	defer close(out)

	for item := range upstream {
		if item.Err != nil {
			if !sendItem(ctx, out, item) {
				return
			}
			return
		}

		v, ok := item.Message.(message.ToolsCallUpdate)
		if !ok {
			if !sendItem(ctx, out, item) {
				return
			}
			continue
		}

		updates := make([]message.ToolCallUpdate, len(v.ToolCallUpdates))
		for i, u := range v.ToolCallUpdates {
			u.JSONFragmentUpdates = m.feed(u)
			updates[i] = u
		}
		v.ToolCallUpdates = updates
		if !sendItem(ctx, out, agent.StreamItem{Message: v}) {
			return
		}
	}
}

// feed resolves u's generator (creating it on first sight) and runs its
// argument delta through the scanner.
func (m *Middleware) feed(u message.ToolCallUpdate) []message.JSONFragmentUpdate {
	key := identityKey(u)

	m.mu.Lock()
	g, ok := m.generators[key]
	if !ok {
		g = newGenerator()
		m.generators[key] = g
	}
	m.mu.Unlock()

	return g.feed(u.FunctionArgs)
}

func sendItem(ctx context.Context, out chan<- agent.StreamItem, item agent.StreamItem) bool {
	select {
	case out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}
