// Package naturaltool makes a text-producing model behave like a
// tool-calling model by scanning its output for
// <tool_call name="...">BODY</tool_call> blocks (spec §4.5).
package naturaltool

import (
	"context"
	"strings"
	"sync"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/internalschema"
	"goa.design/streampipe/message"
	"goa.design/streampipe/registry"
	"goa.design/streampipe/telemetry"
)

// Middleware implements agent.Middleware and agent.StreamingMiddleware.
type Middleware struct {
	// Contracts are the functions advertised to the model via prompt
	// injection and available for tool-call validation.
	Contracts []registry.FunctionContract
	// Validators maps a function name to the schema validator used to check
	// its extracted arguments. Optional; a missing entry skips validation.
	Validators map[string]*internalschema.Validator
	// Fallback, when set, is invoked to repair a tool call whose body failed
	// JSON extraction or schema validation (spec §4.5.4). Nil disables
	// fallback repair: such failures raise ToolUseParsingError instead.
	Fallback agent.Agent
	Logger   telemetry.Logger
	Tracer   telemetry.Tracer

	mu       sync.Mutex
	injected bool
}

// New constructs a Middleware advertising contracts.
func New(contracts []registry.FunctionContract) *Middleware {
	return &Middleware{Contracts: contracts}
}

func (m *Middleware) prepare(messages []message.Message, opts *agent.Options) ([]message.Message, *agent.Options) {
	m.mu.Lock()
	first := !m.injected
	m.injected = true
	m.mu.Unlock()
	if !first {
		return messages, opts
	}
	return injectPrompt(messages, m.Contracts), clearFunctions(opts)
}

// Invoke implements agent.Middleware: it injects the tool-call prompt on
// first use, calls inner, then runs the Complete Parser once over every
// Text reply, per spec §4.5.2's non-streaming path.
func (m *Middleware) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options, inner agent.Agent) ([]message.Message, error) {
	messages, opts = m.prepare(messages, opts)
	replies, err := inner.Invoke(ctx, messages, opts)
	if err != nil {
		return nil, err
	}

	out := make([]message.Message, 0, len(replies))
	for _, reply := range replies {
		text, ok := reply.(message.Text)
		if !ok {
			out = append(out, reply)
			continue
		}
		chunks := parseComplete(text.Text)
		if !hasToolCall(chunks) {
			out = append(out, reply)
			continue
		}
		for _, c := range chunks {
			if c.isToolCall {
				msgs, err := m.processChunk(ctx, c.name, c.body, text.Header)
				if err != nil {
					return nil, err
				}
				out = append(out, msgs...)
				continue
			}
			if c.text == "" {
				continue
			}
			out = append(out, message.Text{Header: text.Header, Text: c.text})
		}
	}
	return out, nil
}

// InvokeStreaming implements agent.StreamingMiddleware per spec §4.5.2's
// streaming path: TextUpdate deltas accumulate into a buffer; the Complete
// Parser runs on every delta, and as soon as it finds a tool call the whole
// buffer is flushed (tool-call messages plus any surrounding/trailing text).
// Until then, only the Safe-Text Extractor's safe prefix is forwarded, so a
// <tool_call> tag split across deltas is never emitted as partial text.
// Non-text items (already-structured tool-call updates, Reasoning, ...) pass
// through unmodified, after first flushing any buffered text.
func (m *Middleware) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options, inner agent.StreamingAgent) (<-chan agent.StreamItem, error) {
	messages, opts = m.prepare(messages, opts)
	upstream, err := inner.InvokeStreaming(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	out := make(chan agent.StreamItem)
	go m.pumpStreaming(ctx, upstream, out)
	return out, nil
}

func sendStreamItem(ctx context.Context, out chan<- agent.StreamItem, item agent.StreamItem) bool {
	select {
	case out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Middleware) pumpStreaming(ctx context.Context, upstream <-chan agent.StreamItem, out chan<- agent.StreamItem) {
	defer close(out)

	// pending holds the text of each not-yet-flushed upstream TextUpdate, in
	// arrival order, as discrete entries rather than one concatenated buffer.
	// Spec §4.5.2.3 requires that "updates are never split": flushSafe below
	// only ever releases whole pending entries, never a sliced fragment of
	// one, even when the safe prefix boundary falls in the middle of an
	// entry's text.
	var pending []string
	var header message.Header
	haveHeader := false

	pendingText := func() string {
		return strings.Join(pending, "")
	}

	// flushSafe forwards every leading pending entry that fits entirely
	// within the currently-safe prefix as its own TextUpdate, and leaves the
	// rest (including any entry straddling the safe boundary) buffered.
	flushSafe := func() bool {
		n := safePrefixLen(pendingText())
		if n <= 0 {
			return true
		}
		consumed := 0
		i := 0
		for i < len(pending) && consumed+len(pending[i]) <= n {
			if !sendStreamItem(ctx, out, agent.StreamItem{Message: message.TextUpdate{Header: header, Text: pending[i]}}) {
				return false
			}
			consumed += len(pending[i])
			i++
		}
		pending = pending[i:]
		return true
	}

	// flushAll drains pending entirely, running the Complete Parser over it
	// and emitting tool-call messages interleaved with the surrounding text.
	// When it holds no tool call, each pending entry is emitted as its own
	// TextUpdate.
	flushAll := func() bool {
		entries := pending
		s := pendingText()
		pending = nil
		if s == "" {
			return true
		}
		chunks := parseComplete(s)
		if !hasToolCall(chunks) {
			for _, e := range entries {
				if e == "" {
					continue
				}
				if !sendStreamItem(ctx, out, agent.StreamItem{Message: message.TextUpdate{Header: header, Text: e}}) {
					return false
				}
			}
			return true
		}
		for _, c := range chunks {
			if c.isToolCall {
				msgs, err := m.processChunk(ctx, c.name, c.body, header)
				if err != nil {
					sendStreamItem(ctx, out, agent.StreamItem{Err: err})
					return false
				}
				for _, msg := range msgs {
					if !sendStreamItem(ctx, out, agent.StreamItem{Message: msg}) {
						return false
					}
				}
				continue
			}
			if c.text == "" {
				continue
			}
			if !sendStreamItem(ctx, out, agent.StreamItem{Message: message.TextUpdate{Header: header, Text: c.text}}) {
				return false
			}
		}
		return true
	}

	for item := range upstream {
		if item.Err != nil {
			flushAll()
			sendStreamItem(ctx, out, item)
			return
		}
		tu, ok := item.Message.(message.TextUpdate)
		if !ok {
			if !flushAll() {
				return
			}
			if !sendStreamItem(ctx, out, item) {
				return
			}
			continue
		}
		if !haveHeader {
			header = tu.Header
			haveHeader = true
		}
		pending = append(pending, tu.Text)
		if hasToolCall(parseComplete(pendingText())) {
			if !flushAll() {
				return
			}
			continue
		}
		if !flushSafe() {
			return
		}
	}
	flushAll()
}
