package provideradapter

import (
	"context"
	"encoding/json"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
)

// testDecoder feeds a fixed sequence of events to an ssestream.Stream.
type testDecoder struct {
	events []ssestream.Event
	i      int
}

func (d *testDecoder) Event() ssestream.Event { return d.events[d.i-1] }

func (d *testDecoder) Next() bool {
	if d.i >= len(d.events) {
		return false
	}
	d.i++
	return true
}

func (d *testDecoder) Close() error { return nil }
func (d *testDecoder) Err() error   { return nil }

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

type fakeAnthropicClient struct {
	resp   *sdk.Message
	events []ssestream.Event
}

func (f *fakeAnthropicClient) New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error) {
	return f.resp, nil
}

func (f *fakeAnthropicClient) NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	dec := &testDecoder{events: f.events}
	return ssestream.NewStream[sdk.MessageStreamEventUnion](dec, nil)
}

func TestAnthropic_InvokeStreaming_TextAndToolCall(t *testing.T) {
	textDelta := sdk.MessageStreamEventUnion{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"type": "content_block_delta",
		"index": 0,
		"delta": { "type": "text_delta", "text": "hello" }
	}`), &textDelta))

	toolStart := sdk.MessageStreamEventUnion{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"type": "content_block_start",
		"index": 1,
		"content_block": { "type": "tool_use", "id": "t1", "name": "toolset_tool" }
	}`), &toolStart))

	toolDelta := sdk.MessageStreamEventUnion{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"type": "content_block_delta",
		"index": 1,
		"delta": { "type": "input_json_delta", "partial_json": "{\"x\":1}" }
	}`), &toolDelta))

	events := []ssestream.Event{
		{Type: "content_block_delta", Data: mustJSON(t, textDelta)},
		{Type: "content_block_start", Data: mustJSON(t, toolStart)},
		{Type: "content_block_delta", Data: mustJSON(t, toolDelta)},
	}

	client := &fakeAnthropicClient{events: events}
	a := NewAnthropic(client, "claude-3", 1024)

	ch, err := a.InvokeStreaming(context.Background(), []message.Message{
		message.Text{Header: message.Header{Role: message.RoleUser}, Text: "hi"},
	}, &agent.Options{
		Functions: nil,
	})
	require.NoError(t, err)

	var sawText, sawTool bool
	for item := range ch {
		require.NoError(t, item.Err)
		switch m := item.Message.(type) {
		case message.TextUpdate:
			sawText = true
			assert.Equal(t, "hello", m.Text)
		case message.ToolsCallUpdate:
			sawTool = true
			require.Len(t, m.ToolCallUpdates, 1)
			assert.Equal(t, "toolset_tool", m.ToolCallUpdates[0].FunctionName)
		}
	}
	assert.True(t, sawText)
	assert.True(t, sawTool)
}

func TestAnthropic_Invoke_TranslatesToolUseAndUsage(t *testing.T) {
	resp := &sdk.Message{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"content": [
			{"type": "text", "text": "done"},
			{"type": "tool_use", "id": "t1", "name": "toolset_tool", "input": {"x": 1}}
		],
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`), resp))

	client := &fakeAnthropicClient{resp: resp}
	a := NewAnthropic(client, "claude-3", 1024)

	out, err := a.Invoke(context.Background(), []message.Message{
		message.Text{Header: message.Header{Role: message.RoleUser}, Text: "hi"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, out, 3)

	text, ok := out[0].(message.Text)
	require.True(t, ok)
	assert.Equal(t, "done", text.Text)

	calls, ok := out[1].(message.ToolsCall)
	require.True(t, ok)
	require.Len(t, calls.ToolCalls, 1)
	assert.Equal(t, "toolset_tool", calls.ToolCalls[0].FunctionName)

	usage, ok := out[2].(message.Usage)
	require.True(t, ok)
	assert.Equal(t, 10, usage.PromptTokens)
	assert.Equal(t, 5, usage.CompletionTokens)
}

func TestAnthropic_Invoke_RequiresMessages(t *testing.T) {
	a := NewAnthropic(&fakeAnthropicClient{}, "claude-3", 1024)
	_, err := a.Invoke(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestAnthropic_Invoke_RequiresMaxTokens(t *testing.T) {
	a := NewAnthropic(&fakeAnthropicClient{}, "claude-3", 0)
	_, err := a.Invoke(context.Background(), []message.Message{
		message.Text{Header: message.Header{Role: message.RoleUser}, Text: "hi"},
	}, nil)
	assert.Error(t, err)
}
