package crosscut_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/crosscut"
	"goa.design/streampipe/message"
)

func TestTodoContext_PrependsSystemMessageWhenNonEmpty(t *testing.T) {
	inner := &stubInvokeAgent{}
	m := crosscut.NewTodoContext(func(ctx context.Context) string { return "finish the report" })

	_, err := m.Invoke(context.Background(), []message.Message{message.Text{Text: "hi"}}, nil, inner)
	require.NoError(t, err)

	require.Len(t, inner.seen, 2)
	todo, ok := inner.seen[0].(message.TodoContext)
	require.True(t, ok)
	assert.Equal(t, "finish the report", todo.TodoContextText)
	assert.Equal(t, message.RoleSystem, todo.Header.Role)
}

func TestTodoContext_SkipsInjectionWhenEmpty(t *testing.T) {
	inner := &stubInvokeAgent{}
	m := crosscut.NewTodoContext(func(ctx context.Context) string { return "" })

	_, err := m.Invoke(context.Background(), []message.Message{message.Text{Text: "hi"}}, nil, inner)
	require.NoError(t, err)
	require.Len(t, inner.seen, 1)
}

type stubInvokeAgent struct {
	seen []message.Message
}

func (a *stubInvokeAgent) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error) {
	a.seen = messages
	return nil, nil
}

func (a *stubInvokeAgent) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options) (<-chan agent.StreamItem, error) {
	a.seen = messages
	ch := make(chan agent.StreamItem)
	close(ch)
	return ch, nil
}
