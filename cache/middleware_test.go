package cache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/cache"
	"goa.design/streampipe/message"
)

type stubAgent struct {
	calls int
	reply []message.Message
	err   error
}

func (a *stubAgent) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error) {
	a.calls++
	return a.reply, a.err
}

func (a *stubAgent) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options) (<-chan agent.StreamItem, error) {
	a.calls++
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

func drain(ch <-chan agent.StreamItem) []agent.StreamItem {
	var out []agent.StreamItem
	for it := range ch {
		out = append(out, it)
	}
	return out
}

func TestMiddleware_Invoke_MissCallsInnerAndStores(t *testing.T) {
	store := cache.NewMemoryStore()
	mw := cache.New(store)
	inner := &stubAgent{reply: []message.Message{message.Text{Text: "hello"}}}

	in := []message.Message{message.Text{Text: "hi"}}
	out, err := mw.Invoke(context.Background(), in, nil, inner)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "hello", out[0].(message.Text).Text)
	assert.Equal(t, 1, inner.calls)
}

func TestMiddleware_Invoke_HitSkipsInner(t *testing.T) {
	store := cache.NewMemoryStore()
	mw := cache.New(store)
	inner := &stubAgent{reply: []message.Message{message.Text{Text: "hello"}}}

	in := []message.Message{message.Text{Text: "hi"}}
	_, err := mw.Invoke(context.Background(), in, nil, inner)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	out, err := mw.Invoke(context.Background(), in, nil, inner)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "hello", out[0].(message.Text).Text)
	assert.Equal(t, 1, inner.calls, "a cache hit must not re-invoke the inner agent")
}

func TestMiddleware_Invoke_FailureIsNotStored(t *testing.T) {
	store := cache.NewMemoryStore()
	mw := cache.New(store)
	inner := &stubAgent{err: errors.New("boom")}

	in := []message.Message{message.Text{Text: "hi"}}
	_, err := mw.Invoke(context.Background(), in, nil, inner)
	require.Error(t, err)

	_, hit, _ := store.Get(context.Background(), mustFingerprint(t, in))
	assert.False(t, hit)
}

func TestMiddleware_InvokeStreaming_HitReplaysWithoutInner(t *testing.T) {
	store := cache.NewMemoryStore()
	mw := cache.New(store)
	inner := &stubAgent{reply: []message.Message{message.Text{Text: "a"}, message.Text{Text: "b"}}}

	in := []message.Message{message.Text{Text: "hi"}}
	ch, err := mw.InvokeStreaming(context.Background(), in, nil, inner)
	require.NoError(t, err)
	drain(ch)
	assert.Equal(t, 1, inner.calls)

	ch, err = mw.InvokeStreaming(context.Background(), in, nil, inner)
	require.NoError(t, err)
	items := drain(ch)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Message.(message.Text).Text)
	assert.Equal(t, "b", items[1].Message.(message.Text).Text)
	assert.Equal(t, 1, inner.calls, "a cache hit must not re-invoke the inner agent")
}

func mustFingerprint(t *testing.T, msgs []message.Message) string {
	t.Helper()
	key, err := cache.Fingerprint(msgs, nil)
	require.NoError(t, err)
	return key
}
