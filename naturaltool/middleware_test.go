package naturaltool_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
	"goa.design/streampipe/naturaltool"
	"goa.design/streampipe/registry"
)

type stubAgent struct {
	invoke          func(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error)
	invokeStreaming func(ctx context.Context, messages []message.Message, opts *agent.Options) (<-chan agent.StreamItem, error)
	seenMessages    []message.Message
	seenOpts        *agent.Options
}

func (s *stubAgent) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error) {
	s.seenMessages = messages
	s.seenOpts = opts
	return s.invoke(ctx, messages, opts)
}

func (s *stubAgent) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options) (<-chan agent.StreamItem, error) {
	s.seenMessages = messages
	s.seenOpts = opts
	return s.invokeStreaming(ctx, messages, opts)
}

func chanOf(items ...agent.StreamItem) <-chan agent.StreamItem {
	out := make(chan agent.StreamItem, len(items))
	for _, it := range items {
		out <- it
	}
	close(out)
	return out
}

func drain(ch <-chan agent.StreamItem) []agent.StreamItem {
	var out []agent.StreamItem
	for item := range ch {
		out = append(out, item)
	}
	return out
}

func TestInvoke_InjectsPromptOnFirstCallOnly(t *testing.T) {
	contracts := []registry.FunctionContract{{Name: "lookup", Description: "looks things up"}}
	mw := naturaltool.New(contracts)
	inner := &stubAgent{invoke: func(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error) {
		return []message.Message{message.Text{Text: "hi"}}, nil
	}}

	_, err := mw.Invoke(context.Background(), []message.Message{message.Text{Header: message.Header{Role: message.RoleUser}, Text: "hello"}},
		&agent.Options{Functions: []registry.FunctionContract{{Name: "lookup"}}}, inner)
	require.NoError(t, err)
	require.Len(t, inner.seenMessages, 2)
	sys, ok := inner.seenMessages[0].(message.Text)
	require.True(t, ok)
	assert.Equal(t, message.RoleSystem, sys.Header.Role)
	assert.Contains(t, sys.Text, "lookup")
	assert.Empty(t, inner.seenOpts.Functions)

	_, err = mw.Invoke(context.Background(), []message.Message{message.Text{Header: message.Header{Role: message.RoleUser}, Text: "again"}}, nil, inner)
	require.NoError(t, err)
	require.Len(t, inner.seenMessages, 1)
	assert.Equal(t, "again", inner.seenMessages[0].(message.Text).Text)
}

func TestInvoke_ExtractsToolCallFromText(t *testing.T) {
	mw := naturaltool.New(nil)
	inner := &stubAgent{invoke: func(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error) {
		return []message.Message{message.Text{Text: `before <tool_call name="lookup">{"q":"x"}</tool_call> after`}}, nil
	}}

	out, err := mw.Invoke(context.Background(), nil, nil, inner)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "before ", out[0].(message.Text).Text)
	call, ok := out[1].(message.ToolsCall)
	require.True(t, ok)
	assert.Equal(t, "lookup", call.ToolCalls[0].FunctionName)
	assert.Equal(t, `{"q":"x"}`, call.ToolCalls[0].FunctionArgs)
	assert.Equal(t, " after", out[2].(message.Text).Text)
}

func TestInvoke_PassesThroughPlainText(t *testing.T) {
	mw := naturaltool.New(nil)
	inner := &stubAgent{invoke: func(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error) {
		return []message.Message{message.Text{Text: "just a regular reply"}}, nil
	}}

	out, err := mw.Invoke(context.Background(), nil, nil, inner)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "just a regular reply", out[0].(message.Text).Text)
}

func TestInvokeStreaming_BuffersUnsafeTailAcrossDeltas(t *testing.T) {
	mw := naturaltool.New(nil)
	inner := &stubAgent{invokeStreaming: func(ctx context.Context, messages []message.Message, opts *agent.Options) (<-chan agent.StreamItem, error) {
		return chanOf(
			agent.StreamItem{Message: message.TextUpdate{Text: "hello <tool_"}},
			agent.StreamItem{Message: message.TextUpdate{Text: `call name="lookup">{"q":1}</tool_call> bye`}},
		), nil
	}}

	out, err := mw.InvokeStreaming(context.Background(), nil, nil, inner)
	require.NoError(t, err)
	items := drain(out)
	require.Len(t, items, 3)

	first, ok := items[0].Message.(message.TextUpdate)
	require.True(t, ok)
	assert.Equal(t, "hello ", first.Text)

	call, ok := items[1].Message.(message.ToolsCall)
	require.True(t, ok)
	assert.Equal(t, "lookup", call.ToolCalls[0].FunctionName)
	assert.Equal(t, `{"q":1}`, call.ToolCalls[0].FunctionArgs)

	last, ok := items[2].Message.(message.TextUpdate)
	require.True(t, ok)
	assert.Equal(t, " bye", last.Text)
}

func TestInvokeStreaming_NeverSplitsASingleUpstreamUpdate(t *testing.T) {
	mw := naturaltool.New(nil)
	update1 := "AAAAAA"
	update2 := "BBBBBBBBBBB<tool_ca"
	inner := &stubAgent{invokeStreaming: func(ctx context.Context, messages []message.Message, opts *agent.Options) (<-chan agent.StreamItem, error) {
		return chanOf(
			agent.StreamItem{Message: message.TextUpdate{Text: update1}},
			agent.StreamItem{Message: message.TextUpdate{Text: update2}},
		), nil
	}}

	out, err := mw.InvokeStreaming(context.Background(), nil, nil, inner)
	require.NoError(t, err)
	items := drain(out)

	// The safe prefix after both deltas arrive falls in the middle of
	// update2 (at its unmatched "<tool_ca" suffix). A char-sliced buffer
	// would emit "AAAAAABBBBBBBBBBB" as one combined update, splitting
	// update2 across two emitted messages. The fix must instead emit each
	// whole upstream update as its own TextUpdate, never merged or split.
	require.Len(t, items, 2)
	first, ok := items[0].Message.(message.TextUpdate)
	require.True(t, ok)
	assert.Equal(t, update1, first.Text)
	second, ok := items[1].Message.(message.TextUpdate)
	require.True(t, ok)
	assert.Equal(t, update2, second.Text)
}

func TestInvokeStreaming_PassesThroughNonTextItems(t *testing.T) {
	mw := naturaltool.New(nil)
	inner := &stubAgent{invokeStreaming: func(ctx context.Context, messages []message.Message, opts *agent.Options) (<-chan agent.StreamItem, error) {
		return chanOf(
			agent.StreamItem{Message: message.TextUpdate{Text: "plain"}},
			agent.StreamItem{Message: message.Reasoning{Text: "thinking"}},
		), nil
	}}

	out, err := mw.InvokeStreaming(context.Background(), nil, nil, inner)
	require.NoError(t, err)
	items := drain(out)
	require.Len(t, items, 2)
	assert.Equal(t, "plain", items[0].Message.(message.TextUpdate).Text)
	assert.Equal(t, "thinking", items[1].Message.(message.Reasoning).Text)
}
