package crosscut_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/crosscut"
	"goa.design/streampipe/message"
)

type fakeAgent struct {
	reply []message.Message
	err   error
}

func (a *fakeAgent) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error) {
	return a.reply, a.err
}

// fakeStreamingAgent additionally implements agent.StreamingAgent.
type fakeStreamingAgent struct {
	fakeAgent
}

func (a *fakeStreamingAgent) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options) (<-chan agent.StreamItem, error) {
	if a.err != nil {
		return nil, a.err
	}
	ch := make(chan agent.StreamItem, len(a.reply))
	for _, m := range a.reply {
		ch <- agent.StreamItem{Message: m}
	}
	close(ch)
	return ch, nil
}

func TestModelFallback_TriesNextOnFailure(t *testing.T) {
	f := crosscut.NewModelFallback(map[string][]agent.Agent{
		"gpt": {
			&fakeAgent{err: errors.New("boom")},
			&fakeAgent{reply: []message.Message{message.Text{Text: "ok"}}},
		},
	})

	out, err := f.Invoke(context.Background(), nil, &agent.Options{ModelID: "gpt"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "ok", out[0].(message.Text).Text)
}

func TestModelFallback_ReturnsFirstErrorWhenAllFail(t *testing.T) {
	firstErr := errors.New("first")
	f := crosscut.NewModelFallback(map[string][]agent.Agent{
		"gpt": {
			&fakeAgent{err: firstErr},
			&fakeAgent{err: errors.New("second")},
		},
	})

	_, err := f.Invoke(context.Background(), nil, &agent.Options{ModelID: "gpt"})
	assert.Equal(t, firstErr, err)
}

func TestModelFallback_TriesDefaultLastWhenConfigured(t *testing.T) {
	f := crosscut.NewModelFallback(map[string][]agent.Agent{
		"gpt": {&fakeAgent{err: errors.New("boom")}},
	})
	f.Default = &fakeAgent{reply: []message.Message{message.Text{Text: "default"}}}
	f.TryDefaultLast = true

	out, err := f.Invoke(context.Background(), nil, &agent.Options{ModelID: "gpt"})
	require.NoError(t, err)
	assert.Equal(t, "default", out[0].(message.Text).Text)
}

func TestModelFallback_StreamingAdaptsNonStreamingCandidate(t *testing.T) {
	f := crosscut.NewModelFallback(map[string][]agent.Agent{
		"gpt": {&fakeAgent{reply: []message.Message{message.Text{Text: "adapted"}}}},
	})

	ch, err := f.InvokeStreaming(context.Background(), nil, &agent.Options{ModelID: "gpt"})
	require.NoError(t, err)

	var items []agent.StreamItem
	for it := range ch {
		items = append(items, it)
	}
	require.Len(t, items, 1)
	assert.Equal(t, "adapted", items[0].Message.(message.Text).Text)
}

func TestModelFallback_StreamingPrefersNativeStreamingCandidate(t *testing.T) {
	f := crosscut.NewModelFallback(map[string][]agent.Agent{
		"gpt": {&fakeStreamingAgent{fakeAgent{reply: []message.Message{message.Text{Text: "native"}}}}},
	})

	ch, err := f.InvokeStreaming(context.Background(), nil, &agent.Options{ModelID: "gpt"})
	require.NoError(t, err)

	var items []agent.StreamItem
	for it := range ch {
		items = append(items, it)
	}
	require.Len(t, items, 1)
	assert.Equal(t, "native", items[0].Message.(message.Text).Text)
}
