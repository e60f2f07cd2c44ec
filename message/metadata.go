package message

// WithMetadata returns a copy of msg with its Header.Metadata replaced by
// meta, used by middlewares (functioncall, updatejoin) that need to strip or
// rewrite metadata entries without knowing the concrete variant ahead of
// time.
func WithMetadata(msg Message, meta map[string]any) Message {
	switch m := msg.(type) {
	case Text:
		m.Metadata = meta
		return m
	case TextUpdate:
		m.Metadata = meta
		return m
	case Reasoning:
		m.Metadata = meta
		return m
	case ReasoningUpdate:
		m.Metadata = meta
		return m
	case Image:
		m.Metadata = meta
		return m
	case ToolCall:
		m.Metadata = meta
		return m
	case ToolsCall:
		m.Metadata = meta
		return m
	case ToolCallUpdate:
		m.Metadata = meta
		return m
	case ToolsCallUpdate:
		m.Metadata = meta
		return m
	case ToolCallResult:
		m.Metadata = meta
		return m
	case ToolsCallResult:
		m.Metadata = meta
		return m
	case ToolsCallAggregate:
		m.Metadata = meta
		return m
	case Composite:
		m.Metadata = meta
		return m
	case Usage:
		m.Metadata = meta
		return m
	case TodoContext:
		m.Metadata = meta
		return m
	default:
		return msg
	}
}
