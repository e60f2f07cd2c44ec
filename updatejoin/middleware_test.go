package updatejoin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
	"goa.design/streampipe/updatejoin"
)

type stubStreamingAgent struct {
	items []agent.StreamItem
}

func (s stubStreamingAgent) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error) {
	return nil, nil
}

func (s stubStreamingAgent) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options) (<-chan agent.StreamItem, error) {
	out := make(chan agent.StreamItem, len(s.items))
	for _, it := range s.items {
		out <- it
	}
	close(out)
	return out, nil
}

func drain(ch <-chan agent.StreamItem) []agent.StreamItem {
	var out []agent.StreamItem
	for item := range ch {
		out = append(out, item)
	}
	return out
}

func TestInvokeStreaming_CoalescesTextUpdatesAndForwardsRaw(t *testing.T) {
	mw := updatejoin.New()
	inner := stubStreamingAgent{items: []agent.StreamItem{
		{Message: message.TextUpdate{Text: "hel"}},
		{Message: message.TextUpdate{Text: "lo"}},
	}}

	out, err := mw.InvokeStreaming(context.Background(), nil, nil, inner)
	require.NoError(t, err)
	items := drain(out)
	require.Len(t, items, 3)
	assert.Equal(t, "hel", items[0].Message.(message.TextUpdate).Text)
	assert.Equal(t, "lo", items[1].Message.(message.TextUpdate).Text)
	text, ok := items[2].Message.(message.Text)
	require.True(t, ok)
	assert.Equal(t, "hello", text.Text)
}

func TestInvokeStreaming_DifferentVariantFinalizesPreviousBuilder(t *testing.T) {
	mw := updatejoin.New()
	inner := stubStreamingAgent{items: []agent.StreamItem{
		{Message: message.TextUpdate{Text: "abc"}},
		{Message: message.ReasoningUpdate{Text: "thinking"}},
	}}

	out, err := mw.InvokeStreaming(context.Background(), nil, nil, inner)
	require.NoError(t, err)
	items := drain(out)
	// raw(abc), finalized Text(abc), raw(thinking), finalized Reasoning(thinking) [end of stream]
	require.Len(t, items, 4)
	assert.Equal(t, "abc", items[0].Message.(message.TextUpdate).Text)
	text, ok := items[1].Message.(message.Text)
	require.True(t, ok)
	assert.Equal(t, "abc", text.Text)
	assert.Equal(t, "thinking", items[2].Message.(message.ReasoningUpdate).Text)
}

func TestInvokeStreaming_ToolCallIdentityChangeFinalizesPreviousCall(t *testing.T) {
	mw := updatejoin.New()
	inner := stubStreamingAgent{items: []agent.StreamItem{
		{Message: message.ToolCallUpdate{ToolCallID: "a", FunctionName: "echo", FunctionArgs: `{"x":1}`}},
		{Message: message.ToolCallUpdate{ToolCallID: "b", FunctionName: "lookup", FunctionArgs: `{}`}},
	}}

	out, err := mw.InvokeStreaming(context.Background(), nil, nil, inner)
	require.NoError(t, err)
	items := drain(out)
	// raw(a), finalized(a) [identity change flushes before processing b's raw forward], raw(b), finalized(b) [end of stream]
	require.Len(t, items, 4)
	firstCall, ok := items[1].Message.(message.ToolsCall)
	require.True(t, ok)
	require.Len(t, firstCall.ToolCalls, 1)
	assert.Equal(t, "echo", firstCall.ToolCalls[0].FunctionName)

	secondCall, ok := items[3].Message.(message.ToolsCall)
	require.True(t, ok)
	require.Len(t, secondCall.ToolCalls, 1)
	assert.Equal(t, "lookup", secondCall.ToolCalls[0].FunctionName)
}

func TestInvokeStreaming_EndOfStreamFinalizesRemainingBuilder(t *testing.T) {
	mw := updatejoin.New()
	inner := stubStreamingAgent{items: []agent.StreamItem{
		{Message: message.TextUpdate{Text: "done"}},
	}}

	out, err := mw.InvokeStreaming(context.Background(), nil, nil, inner)
	require.NoError(t, err)
	items := drain(out)
	require.Len(t, items, 2)
	text, ok := items[1].Message.(message.Text)
	require.True(t, ok)
	assert.Equal(t, "done", text.Text)
}

func TestInvokeStreaming_DropsEmptyTextUpdate(t *testing.T) {
	mw := updatejoin.New()
	inner := stubStreamingAgent{items: []agent.StreamItem{
		{Message: message.TextUpdate{Text: ""}},
	}}

	out, err := mw.InvokeStreaming(context.Background(), nil, nil, inner)
	require.NoError(t, err)
	items := drain(out)
	assert.Empty(t, items)
}

func TestInvokeStreaming_AccumulatesUsageAndAppendsAtEnd(t *testing.T) {
	mw := updatejoin.New()
	inner := stubStreamingAgent{items: []agent.StreamItem{
		{Message: message.TextUpdate{
			Header: message.Header{Metadata: map[string]any{"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}}},
			Text:   "hi",
		}},
	}}

	out, err := mw.InvokeStreaming(context.Background(), nil, nil, inner)
	require.NoError(t, err)
	items := drain(out)
	require.Len(t, items, 3)

	rawUpdate, ok := items[0].Message.(message.TextUpdate)
	require.True(t, ok)
	assert.NotContains(t, rawUpdate.Header.Metadata, "usage")

	text, ok := items[1].Message.(message.Text)
	require.True(t, ok)
	assert.Equal(t, "hi", text.Text)

	usage, ok := items[2].Message.(message.Usage)
	require.True(t, ok)
	assert.Equal(t, 15, usage.TotalTokens)
}
