package message

// UsageAccumulator sums token counts extracted from a sequence of messages'
// "usage" metadata entries into one summarized Usage message, per spec
// §4.2/§4.4. Shared by updatejoin.Middleware (streaming) and
// functioncall.Middleware (non-streaming post-execution).
type UsageAccumulator struct {
	header    Header
	headerSet bool
	prompt    int
	completion int
	total     int
	seen      bool
}

// Extract removes the "usage" entry from meta (if present), folds its token
// counts into the accumulator, and returns the remaining metadata plus
// whether a usage entry was found. meta is never mutated in place.
func (a *UsageAccumulator) Extract(h Header, meta map[string]any) (map[string]any, bool) {
	if meta == nil {
		return meta, false
	}
	raw, ok := meta["usage"]
	if !ok {
		return meta, false
	}
	stripped := make(map[string]any, len(meta))
	for k, v := range meta {
		if k == "usage" {
			continue
		}
		stripped[k] = v
	}
	if u, ok := raw.(map[string]any); ok {
		a.prompt += toInt(u["prompt_tokens"])
		a.completion += toInt(u["completion_tokens"])
		a.total += toInt(u["total_tokens"])
		a.seen = true
		if !a.headerSet {
			a.header = h
			a.headerSet = true
		}
	}
	if len(stripped) == 0 {
		return nil, true
	}
	return stripped, true
}

// Any reports whether any usage has been accumulated so far.
func (a *UsageAccumulator) Any() bool { return a.seen }

// Finalize produces the summarized Usage message. Call at most once; the
// accumulator is not reset afterward.
func (a *UsageAccumulator) Finalize() Usage {
	return Usage{Header: a.header, PromptTokens: a.prompt, CompletionTokens: a.completion, TotalTokens: a.total}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
