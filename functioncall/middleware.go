// Package functioncall implements the Function-Call Middleware (spec §4.4):
// it advertises available functions to the inner agent, executes tool calls
// the inner agent asks for, and executes tool calls the caller hands it
// directly, speculatively overlapping execution with continued streaming.
package functioncall

import (
	"context"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
	"goa.design/streampipe/registry"
	"goa.design/streampipe/telemetry"
	"goa.design/streampipe/toolexec"
)

// Middleware injects contracts, executes tool calls pre- and
// post-invocation, and performs speculative streaming aggregation.
type Middleware struct {
	Contracts []registry.FunctionContract
	Fns       toolexec.FnMap
	Callback  *toolexec.Callback
	Logger    telemetry.Logger
	Tracer    telemetry.Tracer
}

// New constructs a Middleware advertising contracts and executing calls
// through fns.
func New(contracts []registry.FunctionContract, fns toolexec.FnMap) *Middleware {
	return &Middleware{Contracts: contracts, Fns: fns}
}

func (m *Middleware) logger() telemetry.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return telemetry.NewNoopLogger()
}

func (m *Middleware) tracer() telemetry.Tracer {
	if m.Tracer != nil {
		return m.Tracer
	}
	return telemetry.NewNoopTracer()
}

func (m *Middleware) injectFunctions(opts *agent.Options) *agent.Options {
	merged := &agent.Options{}
	if opts != nil {
		cp := *opts
		merged = &cp
	}
	merged.Functions = unionContracts(merged.Functions, m.Contracts)
	return merged
}

func unionContracts(base, add []registry.FunctionContract) []registry.FunctionContract {
	seen := make(map[string]bool, len(base))
	out := make([]registry.FunctionContract, 0, len(base)+len(add))
	for _, c := range base {
		seen[c.Name] = true
		out = append(out, c)
	}
	for _, c := range add {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	return out
}

// lastToolsCall returns the trailing ToolsCall with at least one call, if
// messages ends with one.
func lastToolsCall(messages []message.Message) (message.ToolsCall, bool) {
	if len(messages) == 0 {
		return message.ToolsCall{}, false
	}
	tc, ok := messages[len(messages)-1].(message.ToolsCall)
	if !ok || len(tc.ToolCalls) == 0 {
		return message.ToolsCall{}, false
	}
	return tc, true
}

// Invoke implements agent.Middleware.
func (m *Middleware) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options, inner agent.Agent) ([]message.Message, error) {
	merged := m.injectFunctions(opts)

	if tc, ok := lastToolsCall(messages); ok {
		result, err := toolexec.Execute(ctx, tc, m.Fns, m.Callback, m.logger(), m.tracer())
		if err != nil {
			return nil, err
		}
		return []message.Message{result}, nil
	}

	replies, err := inner.Invoke(ctx, messages, merged)
	if err != nil {
		return nil, err
	}
	return m.postExecuteNonStreaming(ctx, replies)
}

func (m *Middleware) postExecuteNonStreaming(ctx context.Context, replies []message.Message) ([]message.Message, error) {
	var usage message.UsageAccumulator
	out := make([]message.Message, 0, len(replies)+1)

	for _, reply := range replies {
		h := reply.GetHeader()
		strippedMeta, hadUsage := usage.Extract(h, h.Metadata)
		if hadUsage {
			reply = message.WithMetadata(reply, strippedMeta)
			h = reply.GetHeader()
		}

		if t, ok := reply.(message.Text); ok && t.Text == "" && hadUsage {
			continue
		}

		if tc, ok := reply.(message.ToolsCall); ok && len(tc.ToolCalls) > 0 {
			result, err := toolexec.Execute(ctx, tc, m.Fns, m.Callback, m.logger(), m.tracer())
			if err != nil {
				return nil, err
			}
			out = append(out, message.ToolsCallAggregate{Header: h, Calls: tc, Results: result})
			continue
		}

		out = append(out, reply)
	}

	if usage.Any() {
		out = append(out, usage.Finalize())
	}
	return out, nil
}
