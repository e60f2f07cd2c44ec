// Package toolexec runs a resolved ToolsCall against a map of named handlers
// and collects a ToolsCallResult, in call order, regardless of which handler
// finishes first. It is stateless: all state needed to execute one batch is
// passed into Execute.
package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"goa.design/streampipe/message"
	"goa.design/streampipe/registry"
	"goa.design/streampipe/streampipeerr"
	"goa.design/streampipe/telemetry"
)

type (
	// RichHandler executes a function call and returns a fully-formed
	// ToolCallResult, including content blocks. Used by handlers that need to
	// return multi-modal results (images, multiple text blocks) rather than a
	// single string.
	RichHandler func(ctx context.Context, args json.RawMessage) (message.ToolCallResult, error)

	// Fn is one entry in a FnMap. Exactly one of Handler or Rich should be
	// set; if both are, Rich takes precedence.
	Fn struct {
		Handler registry.Handler
		Rich    RichHandler
	}

	// FnMap resolves a function name to its executable handler.
	FnMap map[string]Fn

	// Callback receives lifecycle notifications as calls execute. Any method
	// may be left nil; result_callback as a whole may also be nil.
	Callback struct {
		OnToolCallStarted     func(ctx context.Context, toolCallID, name, args string)
		OnToolCallError       func(ctx context.Context, toolCallID, name string, err error)
		OnToolResultAvailable func(ctx context.Context, result message.ToolCallResult)
	}
)

// FnMapFromProviders builds a FnMap from resolved FunctionDescriptors, keyed
// by the post-registry-resolution contract name (the name the model actually
// saw), not the descriptor's original Key.
func FnMapFromProviders(descs []registry.FunctionDescriptor) FnMap {
	out := make(FnMap, len(descs))
	for _, d := range descs {
		out[d.Contract.Name] = Fn{Handler: d.Handler}
	}
	return out
}

// Execute runs every call in calls.ToolCalls against fns and returns a
// ToolsCallResult with one ToolCallResult per input call, in the same order,
// per spec §4.3. GenerationID, ThreadID, and RunID are copied from calls into
// the returned result's Header; Role is set to Tool and FromAgent to "".
//
// Calls are dispatched concurrently (one goroutine per call) and their
// results merged back into call order, so a slow handler does not block
// independent calls from starting. callback, logger, and tracer may be nil.
func Execute(ctx context.Context, calls message.ToolsCall, fns FnMap, callback *Callback, logger telemetry.Logger, tracer telemetry.Tracer) (message.ToolsCallResult, error) {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}

	n := len(calls.ToolCalls)
	results := make([]message.ToolCallResult, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i, call := range calls.ToolCalls {
		go func(i int, call message.ToolCall) {
			defer wg.Done()
			results[i] = executeOne(ctx, call, fns, callback, logger, tracer)
		}(i, call)
	}
	wg.Wait()

	select {
	case <-ctx.Done():
		return message.ToolsCallResult{}, streampipeerr.Wrap(streampipeerr.KindCancelled, "tool execution canceled", ctx.Err())
	default:
	}

	header := calls.Header
	header.Role = message.RoleTool
	header.FromAgent = ""
	return message.ToolsCallResult{Header: header, Results: results}, nil
}

func executeOne(ctx context.Context, call message.ToolCall, fns FnMap, callback *Callback, logger telemetry.Logger, tracer telemetry.Tracer) message.ToolCallResult {
	ctx, span := tracer.Start(ctx, "toolexec.execute",
		oteltrace.WithAttributes(
			attribute.String("toolexec.name", call.FunctionName),
			attribute.String("toolexec.tool_call_id", call.ToolCallID),
		),
	)
	defer span.End()

	if callback != nil && callback.OnToolCallStarted != nil {
		callback.OnToolCallStarted(ctx, call.ToolCallID, call.FunctionName, call.FunctionArgs)
	}
	logger.Debug(ctx, "tool call started", "component", "toolexec", "tool_call_id", call.ToolCallID, "name", call.FunctionName)

	fn, ok := fns[call.FunctionName]
	if !ok {
		err := fmt.Errorf("function %q is not available", call.FunctionName)
		text := fmt.Sprintf("Function '%s' is not available. Available functions: %s", call.FunctionName, strings.Join(availableNames(fns), ", "))
		return errorResult(ctx, call, text, err, callback, logger, span)
	}

	if fn.Rich != nil {
		result, err := fn.Rich(ctx, json.RawMessage(call.FunctionArgs))
		if err != nil {
			text := fmt.Sprintf("Error executing function: %s", err.Error())
			return errorResult(ctx, call, text, err, callback, logger, span)
		}
		result.ToolCallID = call.ToolCallID
		if callback != nil && callback.OnToolResultAvailable != nil {
			callback.OnToolResultAvailable(ctx, result)
		}
		logger.Debug(ctx, "tool result available", "component", "toolexec", "tool_call_id", call.ToolCallID, "name", call.FunctionName)
		span.SetStatus(codes.Ok, "")
		return result
	}

	if fn.Handler == nil {
		err := fmt.Errorf("function %q has no handler", call.FunctionName)
		text := fmt.Sprintf("Error executing function: %s", err.Error())
		return errorResult(ctx, call, text, err, callback, logger, span)
	}

	raw, err := fn.Handler(ctx, json.RawMessage(call.FunctionArgs))
	if err != nil {
		text := fmt.Sprintf("Error executing function: %s", err.Error())
		return errorResult(ctx, call, text, err, callback, logger, span)
	}

	result := message.ToolCallResult{ToolCallID: call.ToolCallID, Result: string(raw)}
	if callback != nil && callback.OnToolResultAvailable != nil {
		callback.OnToolResultAvailable(ctx, result)
	}
	logger.Debug(ctx, "tool result available", "component", "toolexec", "tool_call_id", call.ToolCallID, "name", call.FunctionName)
	span.SetStatus(codes.Ok, "")
	return result
}

func errorResult(ctx context.Context, call message.ToolCall, text string, err error, callback *Callback, logger telemetry.Logger, span telemetry.Span) message.ToolCallResult {
	if callback != nil && callback.OnToolCallError != nil {
		callback.OnToolCallError(ctx, call.ToolCallID, call.FunctionName, err)
	}
	logger.Error(ctx, "tool call failed", "component", "toolexec", "tool_call_id", call.ToolCallID, "name", call.FunctionName, "err", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	result := message.ToolCallResult{ToolCallID: call.ToolCallID, Result: text}
	if callback != nil && callback.OnToolResultAvailable != nil {
		callback.OnToolResultAvailable(ctx, result)
	}
	return result
}

func availableNames(fns FnMap) []string {
	names := make([]string, 0, len(fns))
	for name := range fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
