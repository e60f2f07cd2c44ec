package agent

import (
	"context"

	"goa.design/streampipe/message"
)

// link is a single wrapping of inner by mw. Chains are built leaves-first by
// repeated calls to With: a.With(m1).With(m2) constructs
// link{mw: m2, inner: link{mw: m1, inner: a}}, so invoking the chain runs m2
// first, matching spec §4.1's right-associative composition rule.
type link struct {
	mw    StreamingMiddleware
	inner StreamingAgent
}

// With wraps base with mw, returning a new StreamingAgent. Composition is
// right-associative: the last middleware passed to the last With call runs
// first on every call.
func With(base StreamingAgent, mw StreamingMiddleware) StreamingAgent {
	return &link{mw: mw, inner: base}
}

// Chain applies mws to base in order, equivalent to calling With repeatedly:
// Chain(a, m1, m2) == With(With(a, m1), m2).
func Chain(base StreamingAgent, mws ...StreamingMiddleware) StreamingAgent {
	out := base
	for _, mw := range mws {
		out = With(out, mw)
	}
	return out
}

func (l *link) Invoke(ctx context.Context, messages []message.Message, opts *Options) ([]message.Message, error) {
	return l.mw.Invoke(ctx, messages, opts, l.inner)
}

func (l *link) InvokeStreaming(ctx context.Context, messages []message.Message, opts *Options) (<-chan StreamItem, error) {
	return l.mw.InvokeStreaming(ctx, messages, opts, l.inner)
}
