package crosscut

import (
	"context"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
)

// TodoContext prepends a message.TodoContext describing outstanding work to
// every call, per spec §4.10. The text is produced by a closure so the
// caller can compute it fresh (e.g. from a todo list that changes between
// calls); nothing is injected when the closure returns an empty string.
type TodoContext struct {
	TextFunc func(ctx context.Context) string
}

// NewTodoContext constructs a TodoContext middleware around textFunc.
func NewTodoContext(textFunc func(ctx context.Context) string) *TodoContext {
	return &TodoContext{TextFunc: textFunc}
}

func (m *TodoContext) prepend(ctx context.Context, messages []message.Message) []message.Message {
	if m.TextFunc == nil {
		return messages
	}
	text := m.TextFunc(ctx)
	if text == "" {
		return messages
	}
	out := make([]message.Message, 0, len(messages)+1)
	out = append(out, message.TodoContext{
		Header:          message.Header{Role: message.RoleSystem},
		TodoContextText: text,
	})
	return append(out, messages...)
}

func (m *TodoContext) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options, inner agent.Agent) ([]message.Message, error) {
	return inner.Invoke(ctx, m.prepend(ctx, messages), opts)
}

func (m *TodoContext) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options, inner agent.StreamingAgent) (<-chan agent.StreamItem, error) {
	return inner.InvokeStreaming(ctx, m.prepend(ctx, messages), opts)
}
