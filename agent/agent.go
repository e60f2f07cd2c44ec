// Package agent defines the Agent/Middleware abstraction that the rest of
// the pipeline composes against. An Agent maps a conversation plus options to
// either a bounded reply or a lazy stream of replies; a Middleware wraps an
// inner Agent to add behavior (function injection, caching, parsing, ...)
// without the inner Agent knowing it has been wrapped.
package agent

import (
	"context"

	"goa.design/streampipe/message"
	"goa.design/streampipe/registry"
)

type (
	// Options carries the recognized call-level configuration named in spec
	// §6.1. Extra carries provider-specific keys the core does not interpret.
	Options struct {
		ModelID        string
		ThreadID       string
		RunID          string
		Functions      []registry.FunctionContract
		ResponseFormat *ResponseFormat
		Extra          map[string]any
	}

	// ResponseFormat requests structured output from the model, used by the
	// natural tool-use parser's fallback repair path (spec §4.5.4).
	ResponseFormat struct {
		Name   string
		Schema []byte // JSON-Schema
		Strict bool
	}

	// StreamItem is one element of a streaming reply. Err is set, and
	// Message is the zero value, exactly once: on the final item of a failed
	// stream. No further items follow an item with a non-nil Err.
	StreamItem struct {
		Message message.Message
		Err     error
	}

	// Agent produces a bounded reply for a conversation.
	Agent interface {
		Invoke(ctx context.Context, messages []message.Message, opts *Options) ([]message.Message, error)
	}

	// StreamingAgent additionally produces a lazy reply stream. Implementors
	// must close the returned channel after the final item (success or
	// failure) and must stop sending promptly when ctx is canceled.
	StreamingAgent interface {
		Agent
		InvokeStreaming(ctx context.Context, messages []message.Message, opts *Options) (<-chan StreamItem, error)
	}

	// Middleware wraps an inner Agent's non-streaming call.
	Middleware interface {
		Invoke(ctx context.Context, messages []message.Message, opts *Options, inner Agent) ([]message.Message, error)
	}

	// StreamingMiddleware additionally wraps an inner StreamingAgent's
	// streaming call. A StreamingMiddleware must not create its own stream
	// from scratch: it obtains one from inner and either forwards each
	// message (interceptor) or builds a new stream that pulls from it
	// (transformer). See spec §4.1.
	StreamingMiddleware interface {
		Middleware
		InvokeStreaming(ctx context.Context, messages []message.Message, opts *Options, inner StreamingAgent) (<-chan StreamItem, error)
	}
)

// MergeOptions returns the base options with override's non-zero fields
// layered on top; used by crosscut.OptionsOverride and by callers composing
// partial option sets. base is not mutated.
func MergeOptions(base, override *Options) *Options {
	if base == nil {
		base = &Options{}
	}
	merged := *base
	if override == nil {
		return &merged
	}
	if override.ModelID != "" {
		merged.ModelID = override.ModelID
	}
	if override.ThreadID != "" {
		merged.ThreadID = override.ThreadID
	}
	if override.RunID != "" {
		merged.RunID = override.RunID
	}
	if len(override.Functions) > 0 {
		merged.Functions = mergeFunctions(base.Functions, override.Functions)
	}
	if override.ResponseFormat != nil {
		merged.ResponseFormat = override.ResponseFormat
	}
	if len(override.Extra) > 0 {
		merged.Extra = mergeExtra(base.Extra, override.Extra)
	}
	return &merged
}

func mergeFunctions(base, add []registry.FunctionContract) []registry.FunctionContract {
	pos := make(map[string]int, len(base)+len(add))
	out := make([]registry.FunctionContract, 0, len(base)+len(add))
	for _, f := range base {
		pos[f.Name] = len(out)
		out = append(out, f)
	}
	for _, f := range add {
		if i, ok := pos[f.Name]; ok {
			out[i] = f
			continue
		}
		pos[f.Name] = len(out)
		out = append(out, f)
	}
	return out
}

func mergeExtra(base, add map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(add))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range add {
		out[k] = v
	}
	return out
}
