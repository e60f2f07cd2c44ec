// Package crosscut implements the pipeline's cross-cutting concerns: merging
// pre-configured options into a call, falling back between model agents, and
// injecting outstanding-work context. None of these touch message content
// the way the C5/C6/C7 middlewares do; they only adjust options or prepend a
// message.
package crosscut

import (
	"context"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
)

// OptionsOverride merges a pre-configured Options into every call, per spec
// §4.10: the caller's options are the base, Override's fields win wherever
// set.
type OptionsOverride struct {
	Override *agent.Options
}

// NewOptionsOverride constructs an OptionsOverride that layers override on
// top of whatever options a call already carries.
func NewOptionsOverride(override *agent.Options) *OptionsOverride {
	return &OptionsOverride{Override: override}
}

func (m *OptionsOverride) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options, inner agent.Agent) ([]message.Message, error) {
	return inner.Invoke(ctx, messages, agent.MergeOptions(opts, m.Override))
}

func (m *OptionsOverride) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options, inner agent.StreamingAgent) (<-chan agent.StreamItem, error) {
	return inner.InvokeStreaming(ctx, messages, agent.MergeOptions(opts, m.Override))
}
