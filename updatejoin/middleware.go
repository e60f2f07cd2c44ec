// Package updatejoin coalesces per-chunk update messages into completed
// messages while still forwarding the raw updates to the consumer, and
// summarizes token usage metadata into a single trailing Usage message.
package updatejoin

import (
	"context"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
)

// Middleware implements agent.StreamingMiddleware per spec §4.2's Idle/
// Accumulating state machine. It is stateless and safe to share across
// concurrent requests: all per-stream state lives in the goroutine spawned
// by InvokeStreaming.
type Middleware struct{}

// New constructs a Middleware.
func New() *Middleware { return &Middleware{} }

// Invoke passes non-streaming calls through unchanged: a bounded reply never
// carries update variants, so there is nothing to coalesce.
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
	go pump(ctx, upstream, out)
	return out, nil
}

// activeKind names which variant the current builder, if any, is
// accumulating.
type activeKind int

const (
	kindNone activeKind = iota
	kindText
	kindReasoning
	kindToolCall
)

// joiner tracks the single active builder for one generation's stream.
type joiner struct {
	kind         activeKind
	text         *message.TextBuilder
	reasoning    *message.ReasoningBuilder
	tool         *message.ToolsCallBuilder
	toolIdentity string
}

// finalize emits the active builder's completed message, if any, and resets
// to Idle.
func (j *joiner) finalize() (message.Message, bool) {
	switch j.kind {
	case kindText:
		msg := j.text.Finalize()
		*j = joiner{}
		return msg, true
	case kindReasoning:
		msg := j.reasoning.Finalize()
		*j = joiner{}
		return msg, true
	case kindToolCall:
		msg := j.tool.Finalize()
		*j = joiner{}
		return msg, true
	default:
		return nil, false
	}
}

func sendItem(ctx context.Context, out chan<- agent.StreamItem, item agent.StreamItem) bool {
	select {
	case out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}

func pump(ctx context.Context, upstream <-chan agent.StreamItem, out chan<- agent.StreamItem) {
	defer close(out)

	var j joiner
	var usage message.UsageAccumulator

	flush := func() bool {
		msg, ok := j.finalize()
		if !ok {
			return true
		}
		return sendItem(ctx, out, agent.StreamItem{Message: msg})
	}

	for item := range upstream {
		if item.Err != nil {
			flush()
			sendItem(ctx, out, item)
			return
		}

		msg := item.Message
		h := msg.GetHeader()
		if stripped, hadUsage := usage.Extract(h, h.Metadata); hadUsage {
			msg = message.WithMetadata(msg, stripped)
		}

		switch v := msg.(type) {
		case message.TextUpdate:
			if v.Text == "" {
				continue
			}
			if j.kind != kindText {
				if !flush() {
					return
				}
				j = joiner{kind: kindText, text: message.NewTextBuilder(v)}
			} else {
				j.text.Add(v)
			}
			if !sendItem(ctx, out, agent.StreamItem{Message: v}) {
				return
			}

		case message.ReasoningUpdate:
			if j.kind != kindReasoning {
				if !flush() {
					return
				}
				j = joiner{kind: kindReasoning, reasoning: message.NewReasoningBuilder(v)}
			} else {
				j.reasoning.Add(v)
			}
			if !sendItem(ctx, out, agent.StreamItem{Message: v}) {
				return
			}

		case message.ToolCallUpdate:
			id := v.Identity()
			if j.kind != kindToolCall || id != j.toolIdentity {
				if !flush() {
					return
				}
				j = joiner{kind: kindToolCall, tool: message.NewToolsCallBuilder(v.Header), toolIdentity: id}
			}
			j.tool.Add(v)
			if !sendItem(ctx, out, agent.StreamItem{Message: v}) {
				return
			}

		case message.ToolsCallUpdate:
			// A bundled batch of deltas arrives atomically: fold every entry
			// into one builder without per-entry identity comparisons.
			if j.kind != kindToolCall {
				if !flush() {
					return
				}
				ident := ""
				if len(v.ToolCallUpdates) > 0 {
					ident = v.ToolCallUpdates[0].Identity()
				}
				j = joiner{kind: kindToolCall, tool: message.NewToolsCallBuilder(v.Header), toolIdentity: ident}
			}
			for _, u := range v.ToolCallUpdates {
				j.tool.Add(u)
			}
			if !sendItem(ctx, out, agent.StreamItem{Message: v}) {
				return
			}

		default:
			if !flush() {
				return
			}
			if !sendItem(ctx, out, agent.StreamItem{Message: msg}) {
				return
			}
		}
	}

	if !flush() {
		return
	}
	if usage.Any() {
		sendItem(ctx, out, agent.StreamItem{Message: usage.Finalize()})
	}
}
