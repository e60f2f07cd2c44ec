package cache

import (
	"context"
	"time"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
	"goa.design/streampipe/telemetry"
)

// replayDelay is the inter-message pause used to simulate streaming cadence
// when replaying a cached reply, per spec §4.9.
const replayDelay = 20 * time.Millisecond

// Middleware implements agent.Middleware/agent.StreamingMiddleware per spec
// §4.9: fingerprint the request, replay a stored reply on a hit, and
// memoize the inner agent's reply on a miss. Stateless itself; all state
// lives in Store.
type Middleware struct {
	Store  Store
	Logger telemetry.Logger
}

// New constructs a Middleware backed by store.
func New(store Store) *Middleware {
	return &Middleware{Store: store}
}

func (m *Middleware) logger() telemetry.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return telemetry.NewNoopLogger()
}

func (m *Middleware) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options, inner agent.Agent) ([]message.Message, error) {
	key, err := Fingerprint(messages, opts)
	if err != nil {
		return inner.Invoke(ctx, messages, opts)
	}

	if cached, hit, err := m.Store.Get(ctx, key); err == nil && hit {
		if msgs, err := message.DecodeAll(cached); err == nil {
			return msgs, nil
		}
		m.logger().Warn(ctx, "cache: failed to decode cached entry, invoking inner agent", "key", key)
	}

	reply, err := inner.Invoke(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	if encoded, encErr := message.EncodeAll(reply); encErr == nil {
		if setErr := m.Store.Set(ctx, key, encoded); setErr != nil {
			m.logger().Warn(ctx, "cache: failed to store entry", "key", key, "error", setErr)
		}
	}
	return reply, nil
}

func (m *Middleware) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options, inner agent.StreamingAgent) (<-chan agent.StreamItem, error) {
	key, err := Fingerprint(messages, opts)
	if err != nil {
		return inner.InvokeStreaming(ctx, messages, opts)
	}

	if cached, hit, err := m.Store.Get(ctx, key); err == nil && hit {
		if msgs, err := message.DecodeAll(cached); err == nil {
			out := make(chan agent.StreamItem)
			go replay(ctx, msgs, out)
			return out, nil
		}
		m.logger().Warn(ctx, "cache: failed to decode cached entry, invoking inner agent", "key", key)
	}

	upstream, err := inner.InvokeStreaming(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	out := make(chan agent.StreamItem)
	go m.pumpAndStore(ctx, key, upstream, out)
	return out, nil
}

// replay re-emits a cached reply's messages with a small inter-message delay
// to simulate streaming cadence, per spec §4.9.
func replay(ctx context.Context, msgs []message.Message, out chan<- agent.StreamItem) {
	defer close(out)
	for i, m := range msgs {
		if i > 0 {
			select {
			case <-time.After(replayDelay):
			case <-ctx.Done():
				return
			}
		}
		select {
		case out <- agent.StreamItem{Message: m}:
		case <-ctx.Done():
			return
		}
	}
}

// pumpAndStore forwards every item from upstream to out as it arrives,
// buffering each message's serialized form. On a clean end of stream the
// buffered entries are stored under key; on failure nothing is stored, per
// spec §4.9.
func (m *Middleware) pumpAndStore(ctx context.Context, key string, upstream <-chan agent.StreamItem, out chan<- agent.StreamItem) {
	defer close(out)

	var buffered []message.Message
	for item := range upstream {
		if item.Err != nil {
			select {
			case out <- item:
			case <-ctx.Done():
			}
			return
		}
		buffered = append(buffered, item.Message)
		select {
		case out <- item:
		case <-ctx.Done():
			return
		}
	}

	encoded, err := message.EncodeAll(buffered)
	if err != nil {
		m.logger().Warn(ctx, "cache: failed to encode reply for storage", "key", key, "error", err)
		return
	}
	if err := m.Store.Set(ctx, key, encoded); err != nil {
		m.logger().Warn(ctx, "cache: failed to store entry", "key", key, "error", err)
	}
}
