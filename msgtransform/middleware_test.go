package msgtransform_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
	"goa.design/streampipe/msgtransform"
)

type stubAgent struct {
	seenMessages []message.Message
	invoke       func(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error)
}

func (s *stubAgent) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error) {
	s.seenMessages = messages
	return s.invoke(ctx, messages, opts)
}

func TestInvoke_ReconstructsRequestAndOrdersReply(t *testing.T) {
	mw := msgtransform.New()
	inner := &stubAgent{invoke: func(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error) {
		return []message.Message{message.Text{Text: "a"}, message.Reasoning{Text: "b"}}, nil
	}}

	n := 0
	in := []message.Message{
		message.ToolCall{Header: message.Header{GenerationID: "g1", MessageOrderIdx: &n}, FunctionName: "c0"},
	}
	out, err := mw.Invoke(context.Background(), in, nil, inner)
	require.NoError(t, err)

	require.Len(t, inner.seenMessages, 1)
	call, ok := inner.seenMessages[0].(message.ToolsCall)
	require.True(t, ok, "a lone ToolCall still merges into a ToolsCall, the shape the rest of the pipeline expects")
	assert.Equal(t, "c0", call.ToolCalls[0].FunctionName)

	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].GetHeader().Order())
	assert.Equal(t, 1, out[1].GetHeader().Order())
}
