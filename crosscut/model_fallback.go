package crosscut

import (
	"context"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
	"goa.design/streampipe/telemetry"
)

// ModelFallback is a leaf agent.StreamingAgent that selects a fallback chain
// of agents by the call's ModelID and tries each in order until one
// succeeds, per spec §4.10. Unlike the other crosscut components it does
// not wrap a single inner agent: it IS the agent, composed from many.
type ModelFallback struct {
	// Agents maps a model id to its ordered fallback chain.
	Agents map[string][]agent.Agent
	// Default is tried last when every mapped agent fails and
	// TryDefaultLast is set.
	Default        agent.Agent
	TryDefaultLast bool
	Logger         telemetry.Logger
}

// NewModelFallback constructs a ModelFallback over the given per-model
// chains.
func NewModelFallback(agents map[string][]agent.Agent) *ModelFallback {
	return &ModelFallback{Agents: agents}
}

func (f *ModelFallback) logger() telemetry.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return telemetry.NewNoopLogger()
}

func (f *ModelFallback) chain(opts *agent.Options) []agent.Agent {
	if opts == nil {
		return nil
	}
	return f.Agents[opts.ModelID]
}

// Invoke tries each agent in the resolved chain in order, returning the
// first success. If every candidate fails, and TryDefaultLast is set, the
// default agent is tried last. The first failure is what gets returned if
// everything fails, per spec §4.10.
func (f *ModelFallback) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error) {
	var firstErr error
	for _, a := range f.chain(opts) {
		msgs, err := a.Invoke(ctx, messages, opts)
		if err == nil {
			return msgs, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		f.logger().Warn(ctx, "model fallback candidate failed", "error", err)
	}
	if f.TryDefaultLast && f.Default != nil {
		msgs, err := f.Default.Invoke(ctx, messages, opts)
		if err == nil {
			return msgs, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// InvokeStreaming mirrors Invoke, adapting any candidate that does not
// implement agent.StreamingAgent to a lazy stream over its bounded reply.
func (f *ModelFallback) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options) (<-chan agent.StreamItem, error) {
	var firstErr error
	for _, a := range f.chain(opts) {
		ch, err := f.invokeStreamingCandidate(ctx, messages, opts, a)
		if err == nil {
			return ch, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		f.logger().Warn(ctx, "model fallback streaming candidate failed", "error", err)
	}
	if f.TryDefaultLast && f.Default != nil {
		ch, err := f.invokeStreamingCandidate(ctx, messages, opts, f.Default)
		if err == nil {
			return ch, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func (f *ModelFallback) invokeStreamingCandidate(ctx context.Context, messages []message.Message, opts *agent.Options, a agent.Agent) (<-chan agent.StreamItem, error) {
	if sa, ok := a.(agent.StreamingAgent); ok {
		return sa.InvokeStreaming(ctx, messages, opts)
	}
	msgs, err := a.Invoke(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	return adaptToStream(msgs), nil
}

// adaptToStream turns a bounded reply into a lazy stream that yields every
// message and then closes, for agents that only implement agent.Agent.
func adaptToStream(msgs []message.Message) <-chan agent.StreamItem {
	out := make(chan agent.StreamItem, len(msgs))
	for _, m := range msgs {
		out <- agent.StreamItem{Message: m}
	}
	close(out)
	return out
}
