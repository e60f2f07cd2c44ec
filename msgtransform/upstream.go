// Package msgtransform reshapes message lists at the two boundaries of the
// pipeline: Upstream reconstructs provider-shaped aggregates from a flat
// request-side list before it reaches an inner agent, and Downstream expands
// plural reply variants into densely-ordered singular ones on the way back
// to the consumer (spec §4.7).
package msgtransform

import (
	"sort"

	"goa.design/streampipe/message"
)

// Upstream implements spec §4.7.1.
type Upstream struct{}

// NewUpstream constructs an Upstream transformer.
func NewUpstream() *Upstream { return &Upstream{} }

// Reconstruct groups consecutive same-generation messages, merges singular
// ToolCall/ToolCallResult runs into ToolsCall/ToolsCallResult (further
// collapsed into a ToolsCallAggregate when they form a call-then-result
// pair), and wraps any group that still has more than one message into a
// Composite.
func (u *Upstream) Reconstruct(messages []message.Message) []message.Message {
	out := make([]message.Message, 0, len(messages))
	for _, group := range groupByGeneration(messages) {
		out = append(out, reconstructGroup(group)...)
	}
	return out
}

// groupByGeneration splits messages into runs of consecutive messages
// sharing the same Header.GenerationID.
func groupByGeneration(messages []message.Message) [][]message.Message {
	var groups [][]message.Message
	for _, m := range messages {
		gen := m.GetHeader().GenerationID
		if n := len(groups); n > 0 && groups[n-1][0].GetHeader().GenerationID == gen {
			groups[n-1] = append(groups[n-1], m)
			continue
		}
		groups = append(groups, []message.Message{m})
	}
	return groups
}

// orderIdxOrMax returns a message's MessageOrderIdx, or an arbitrarily large
// sentinel so that unset indices sort last.
func orderIdxOrMax(m message.Message) int {
	if idx := m.GetHeader().MessageOrderIdx; idx != nil {
		return *idx
	}
	return int(^uint(0) >> 1)
}

func reconstructGroup(group []message.Message) []message.Message {
	sorted := make([]message.Message, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		return orderIdxOrMax(sorted[i]) < orderIdxOrMax(sorted[j])
	})

	merged := mergeCallsAndResults(sorted)
	merged = collapseAggregate(merged)

	if len(merged) <= 1 {
		return merged
	}
	return []message.Message{message.Composite{Header: merged[0].GetHeader(), Messages: merged}}
}

// mergeCallsAndResults replaces every singular ToolCall in sorted with a
// single merged ToolsCall at the position of the earliest one, and does the
// same for ToolCallResult/ToolsCallResult.
func mergeCallsAndResults(sorted []message.Message) []message.Message {
	var calls []message.ToolCall
	var results []message.ToolCallResult
	var callHeader, resultHeader message.Header
	firstCallPos, firstResultPos := -1, -1 // position within out where the merged message belongs

	out := make([]message.Message, 0, len(sorted))
	for _, m := range sorted {
		switch v := m.(type) {
		case message.ToolCall:
			if len(calls) == 0 {
				callHeader = v.Header
				firstCallPos = len(out)
			}
			calls = append(calls, v)
		case message.ToolCallResult:
			if len(results) == 0 {
				resultHeader = v.Header
				firstResultPos = len(out)
			}
			results = append(results, v)
		default:
			out = append(out, m)
		}
	}
	if len(calls) == 0 && len(results) == 0 {
		return out
	}

	type placed struct {
		pos int
		msg message.Message
	}
	var insertions []placed
	if len(calls) > 0 {
		insertions = append(insertions, placed{firstCallPos, message.ToolsCall{Header: callHeader, ToolCalls: calls}})
	}
	if len(results) > 0 {
		insertions = append(insertions, placed{firstResultPos, message.ToolsCallResult{Header: resultHeader, Results: results}})
	}
	sort.SliceStable(insertions, func(i, j int) bool { return insertions[i].pos < insertions[j].pos })

	final := make([]message.Message, 0, len(out)+len(insertions))
	outIdx := 0
	for _, ins := range insertions {
		for outIdx < ins.pos {
			final = append(final, out[outIdx])
			outIdx++
		}
		final = append(final, ins.msg)
	}
	final = append(final, out[outIdx:]...)
	return final
}

// collapseAggregate replaces a [ToolsCall, ToolsCallResult] pair with a
// single ToolsCallAggregate, per spec §4.7.1's exact-pair rule.
func collapseAggregate(msgs []message.Message) []message.Message {
	if len(msgs) != 2 {
		return msgs
	}
	calls, ok := msgs[0].(message.ToolsCall)
	if !ok {
		return msgs
	}
	results, ok := msgs[1].(message.ToolsCallResult)
	if !ok {
		return msgs
	}
	return []message.Message{message.ToolsCallAggregate{Header: calls.Header, Calls: calls, Results: results}}
}
