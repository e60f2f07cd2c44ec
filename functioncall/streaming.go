package functioncall

import (
	"context"
	"errors"
	"fmt"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
	"goa.design/streampipe/toolexec"
)

// pendingTask is a speculatively-spawned execution of one tool call, started
// before the surrounding ToolsCallUpdate run has finished streaming.
type pendingTask struct {
	done   chan struct{}
	result message.ToolCallResult
	err    error
}

func (m *Middleware) spawnExecute(ctx context.Context, call message.ToolCall) *pendingTask {
	t := &pendingTask{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		single := message.ToolsCall{Header: call.Header, ToolCalls: []message.ToolCall{call}}
		res, err := toolexec.Execute(ctx, single, m.Fns, m.Callback, m.logger(), m.tracer())
		if err != nil {
			t.err = err
			return
		}
		if len(res.Results) > 0 {
			t.result = res.Results[0]
		}
	}()
	return t
}

func (t *pendingTask) await(ctx context.Context) (message.ToolCallResult, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return message.ToolCallResult{}, ctx.Err()
	}
}

// InvokeStreaming implements agent.StreamingMiddleware.
func (m *Middleware) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options, inner agent.StreamingAgent) (<-chan agent.StreamItem, error) {
	if tc, ok := lastToolsCall(messages); ok {
		out := make(chan agent.StreamItem, 1)
		go func() {
			defer close(out)
			result, err := toolexec.Execute(ctx, tc, m.Fns, m.Callback, m.logger(), m.tracer())
			if err != nil {
				out <- agent.StreamItem{Err: err}
				return
			}
			out <- agent.StreamItem{Message: result}
		}()
		return out, nil
	}

	merged := m.injectFunctions(opts)
	src, err := inner.InvokeStreaming(ctx, messages, merged)
	if err != nil {
		return nil, err
	}

	out := make(chan agent.StreamItem)
	go m.pumpStreaming(ctx, src, out)
	return out, nil
}

func (m *Middleware) pumpStreaming(ctx context.Context, src <-chan agent.StreamItem, out chan<- agent.StreamItem) {
	defer close(out)

	var usage message.UsageAccumulator
	var builder *message.ToolsCallBuilder
	pending := map[string]*pendingTask{}

	emit := func(item agent.StreamItem) bool {
		select {
		case out <- item:
			return true
		case <-ctx.Done():
			return false
		}
	}

	finalize := func() bool {
		if builder == nil || builder.Empty() {
			return true
		}
		calls := builder.Finalize()
		builder = nil
		aggregate, ok := m.finalizeAggregate(ctx, calls, pending)
		for id := range pending {
			delete(pending, id)
		}
		if !ok {
			return emit(agent.StreamItem{Err: ctx.Err()})
		}
		return emit(agent.StreamItem{Message: aggregate})
	}

	for item := range src {
		if item.Err != nil {
			if !finalize() {
				return
			}
			emit(item)
			return
		}

		msg := item.Message
		h := msg.GetHeader()
		strippedMeta, hadUsage := usage.Extract(h, h.Metadata)
		if hadUsage {
			msg = message.WithMetadata(msg, strippedMeta)
		}

		switch v := msg.(type) {
		case message.ToolCallUpdate:
			if builder == nil {
				builder = message.NewToolsCallBuilder(v.Header)
			}
			builder.Add(v)
			for _, ready := range builder.Ready() {
				pending[ready.ToolCallID] = m.spawnExecute(ctx, ready)
			}
			continue
		case message.ToolsCallUpdate:
			if builder == nil {
				builder = message.NewToolsCallBuilder(v.Header)
			}
			for _, u := range v.ToolCallUpdates {
				builder.Add(u)
			}
			for _, ready := range builder.Ready() {
				pending[ready.ToolCallID] = m.spawnExecute(ctx, ready)
			}
			continue
		default:
			if !finalize() {
				return
			}
			if !emit(agent.StreamItem{Message: msg}) {
				return
			}
		}
	}

	if !finalize() {
		return
	}
	if usage.Any() {
		emit(agent.StreamItem{Message: usage.Finalize()})
	}
}

// finalizeAggregate awaits (or, for calls with no pre-spawned task, executes
// now) the result for every call in calls, in calls' original order, per
// spec §4.4.4's failure-handling rule: a failed pre-spawned task is converted
// to an error-text ToolCallResult; a canceled context aborts the whole
// aggregation.
func (m *Middleware) finalizeAggregate(ctx context.Context, calls message.ToolsCall, pending map[string]*pendingTask) (message.ToolsCallAggregate, bool) {
	results := make([]message.ToolCallResult, 0, len(calls.ToolCalls))
	for _, call := range calls.ToolCalls {
		task, ok := pending[call.ToolCallID]
		if !ok {
			task = m.spawnExecute(ctx, call)
		}
		result, err := task.await(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return message.ToolsCallAggregate{}, false
			}
			result = message.ToolCallResult{ToolCallID: call.ToolCallID, Result: fmt.Sprintf("Tool call failed: %s", err.Error())}
		}
		results = append(results, result)
	}
	h := calls.Header
	h.Role = message.RoleTool
	h.FromAgent = ""
	return message.ToolsCallAggregate{
		Header:  calls.Header,
		Calls:   calls,
		Results: message.ToolsCallResult{Header: h, Results: results},
	}, true
}
