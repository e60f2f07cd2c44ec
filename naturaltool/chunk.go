package naturaltool

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"goa.design/streampipe/internalschema"
	"goa.design/streampipe/message"
	"goa.design/streampipe/registry"
	"goa.design/streampipe/streampipeerr"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// extractJSON implements spec §4.5.3 step 1: try a fenced code block first,
// else accept a raw body that parses as JSON and starts with '{' or '['.
func extractJSON(body string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(body); m != nil {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	trimmed := strings.TrimSpace(body)
	if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && json.Valid([]byte(trimmed)) {
		return trimmed, true
	}
	return "", false
}

// contractsByName indexes contracts by name for §4.5.3 step 2's schema
// lookup.
func contractsByName(contracts []registry.FunctionContract) map[string]registry.FunctionContract {
	out := make(map[string]registry.FunctionContract, len(contracts))
	for _, c := range contracts {
		out[c.Name] = c
	}
	return out
}

// processChunk implements spec §4.5.3: extract JSON from body, validate
// against the named contract's schema when both a contract and a validator
// are available, and either emit a ToolsCall, attempt fallback repair, or
// raise ToolUseParsingError.
func (m *Middleware) processChunk(ctx context.Context, name, body string, h message.Header) ([]message.Message, error) {
	jsonText, ok := extractJSON(body)
	if ok {
		if v := m.validatorFor(name); v != nil {
			if err := v.Validate([]byte(jsonText)); err != nil {
				ok = false
			}
		}
	}
	if ok {
		return []message.Message{toolsCallFrom(h, name, jsonText)}, nil
	}

	if m.Fallback != nil {
		return m.fallbackRepair(ctx, name, body, h)
	}
	return nil, streampipeerr.New(streampipeerr.KindToolUseParsingError,
		fmt.Sprintf("could not parse tool call %q: body has no valid JSON and no fallback parser is configured", name))
}

func (m *Middleware) validatorFor(name string) *internalschema.Validator {
	if m.Validators == nil {
		return nil
	}
	return m.Validators[name]
}

func toolsCallFrom(h message.Header, name, argsJSON string) message.ToolsCall {
	h.Role = message.RoleAssistant
	return message.ToolsCall{
		Header: h,
		ToolCalls: []message.ToolCall{{
			Header:       h,
			FunctionName: name,
			FunctionArgs: argsJSON,
			ToolCallID:   uuid.NewString(),
		}},
	}
}
