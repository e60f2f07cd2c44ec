package message

import (
	"strconv"
	"strings"
)

// TextBuilder accumulates TextUpdate deltas into a completed Text message. It
// is mutable and owned exclusively by the middleware assembling one message;
// callers must not share a builder across concurrent requests.
type TextBuilder struct {
	header     Header
	buf        strings.Builder
	isThinking bool
}

// NewTextBuilder starts a builder seeded from the first update's header.
func NewTextBuilder(first TextUpdate) *TextBuilder {
	b := &TextBuilder{header: first.Header, isThinking: first.IsThinking}
	b.buf.WriteString(first.Text)
	return b
}

// Add appends another delta's text to the accumulator.
func (b *TextBuilder) Add(u TextUpdate) {
	b.buf.WriteString(u.Text)
}

// Finalize produces the completed Text message. It does not reset the
// accumulator; the builder must not be reused afterward.
func (b *TextBuilder) Finalize() Text {
	return Text{Header: b.header, Text: b.buf.String()}
}

// ReasoningBuilder accumulates ReasoningUpdate deltas into a completed
// Reasoning message.
type ReasoningBuilder struct {
	header     Header
	buf        strings.Builder
	visibility Visibility
}

// NewReasoningBuilder starts a builder seeded from the first update's header.
func NewReasoningBuilder(first ReasoningUpdate) *ReasoningBuilder {
	b := &ReasoningBuilder{header: first.Header, visibility: first.Visibility}
	b.buf.WriteString(first.Text)
	return b
}

// Add appends another delta's text to the accumulator.
func (b *ReasoningBuilder) Add(u ReasoningUpdate) {
	b.buf.WriteString(u.Text)
}

// Finalize produces the completed Reasoning message.
func (b *ReasoningBuilder) Finalize() Reasoning {
	return Reasoning{Header: b.header, Text: b.buf.String(), Visibility: b.visibility}
}

// toolCallAccumulator tracks the in-progress fields of a single ToolCall
// within a ToolsCallBuilder.
type toolCallAccumulator struct {
	functionName string
	args         strings.Builder
	index        int
	toolCallID   string
	toolCallIdx  int
}

// Identity returns the key used to detect "a different tool call than the one
// currently being accumulated", per spec §4.2: prefer ToolCallID, fall back to
// Index.
func (u ToolCallUpdate) Identity() string {
	if u.ToolCallID != "" {
		return "id:" + u.ToolCallID
	}
	return "index:" + strconv.Itoa(u.Index)
}

// ToolsCallBuilder accumulates one or more ToolCallUpdate/ToolsCallUpdate
// deltas into a completed ToolsCall. Unlike TextBuilder/ReasoningBuilder, a
// single ToolsCallBuilder spans multiple concurrently-in-progress tool calls
// (see functioncall.Middleware), so it tracks accumulators keyed by
// ToolCallUpdate.Identity while preserving first-seen order.
type ToolsCallBuilder struct {
	header  Header
	order   []string
	byKey   map[string]*toolCallAccumulator
	lastKey string
}

// NewToolsCallBuilder creates an empty builder seeded with header.
func NewToolsCallBuilder(header Header) *ToolsCallBuilder {
	return &ToolsCallBuilder{header: header, byKey: map[string]*toolCallAccumulator{}}
}

// Add folds one ToolCallUpdate into the builder, creating a new per-call
// accumulator on first sight of its identity.
func (b *ToolsCallBuilder) Add(u ToolCallUpdate) {
	key := u.Identity()
	acc, ok := b.byKey[key]
	if !ok {
		acc = &toolCallAccumulator{
			functionName: u.FunctionName,
			index:        u.Index,
			toolCallID:   u.ToolCallID,
			toolCallIdx:  u.ToolCallIdx,
		}
		b.byKey[key] = acc
		b.order = append(b.order, key)
	}
	if u.FunctionName != "" {
		acc.functionName = u.FunctionName
	}
	if u.ToolCallID != "" {
		acc.toolCallID = u.ToolCallID
	}
	acc.args.WriteString(u.FunctionArgs)
	b.lastKey = key
}

// Empty reports whether the builder has accumulated no tool calls.
func (b *ToolsCallBuilder) Empty() bool {
	return len(b.order) == 0
}

func (b *ToolsCallBuilder) finalizeKey(key string) ToolCall {
	acc := b.byKey[key]
	return ToolCall{
		Header:       b.header,
		FunctionName: acc.functionName,
		FunctionArgs: acc.args.String(),
		Index:        acc.index,
		ToolCallID:   acc.toolCallID,
		ToolCallIdx:  acc.toolCallIdx,
	}
}

// Ready pops and returns, in first-seen order, every accumulated call other
// than the one currently receiving updates (identified by lastKey): once a
// later update targets a different identity, every earlier call is done
// accumulating and can be executed speculatively while the stream continues.
// Used by functioncall.Middleware's streaming aggregation (spec §4.4.4).
func (b *ToolsCallBuilder) Ready() []ToolCall {
	var ready []ToolCall
	remaining := b.order[:0:0]
	for _, key := range b.order {
		if key == b.lastKey {
			remaining = append(remaining, key)
			continue
		}
		ready = append(ready, b.finalizeKey(key))
		delete(b.byKey, key)
	}
	b.order = remaining
	return ready
}

// Finalize produces the completed ToolsCall message in first-seen order. It
// does not reset the accumulator state.
func (b *ToolsCallBuilder) Finalize() ToolsCall {
	calls := make([]ToolCall, 0, len(b.order))
	for _, key := range b.order {
		calls = append(calls, b.finalizeKey(key))
	}
	return ToolsCall{Header: b.header, ToolCalls: calls}
}
