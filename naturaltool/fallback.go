package naturaltool

import (
	"context"
	"fmt"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
	"goa.design/streampipe/registry"
	"goa.design/streampipe/streampipeerr"
)

// fallbackRepair implements spec §4.5.4. Path A (structured output) is tried
// first when the named tool's contract carries parameters, falling back to
// Path B (plain prompt rewrite) when Path A's structured-output call fails
// or its result still doesn't validate.
func (m *Middleware) fallbackRepair(ctx context.Context, name, raw string, h message.Header) ([]message.Message, error) {
	contract, hasContract := contractsByName(m.Contracts)[name]

	if hasContract && len(contract.Parameters) > 0 {
		if msgs, ok := m.fallbackPathA(ctx, contract, raw, h); ok {
			return msgs, nil
		}
	}
	return m.fallbackPathB(ctx, name, raw, h)
}

// fallbackPathA asks m.Fallback for structured output matching contract's
// schema. Returns ok=false to signal the caller should try Path B.
func (m *Middleware) fallbackPathA(ctx context.Context, contract registry.FunctionContract, raw string, h message.Header) ([]message.Message, bool) {
	prompt := fmt.Sprintf(
		"Extract and fix the parameters for the %s function call from the following content. "+
			"Return only valid JSON that matches the expected schema:\n\n%s", contract.Name, raw)

	opts := &agent.Options{
		ResponseFormat: &agent.ResponseFormat{
			Name:   contract.Name + "_parameters",
			Schema: contract.JSONSchema(),
			Strict: true,
		},
	}
	replies, err := m.Fallback.Invoke(ctx, []message.Message{userText(prompt)}, opts)
	if err != nil {
		return nil, false
	}
	text, ok := firstText(replies)
	if !ok || text == "" {
		return nil, false
	}
	jsonText, ok := extractJSON(text)
	if !ok {
		jsonText = text
	}
	if v := m.validatorFor(contract.Name); v != nil {
		if err := v.Validate([]byte(jsonText)); err != nil {
			return nil, false
		}
	}
	// Resolved Open Question (spec §9): the repaired call emits role
	// Assistant like the happy path, not the historically-variant Tool role.
	return []message.Message{toolsCallFrom(h, contract.Name, jsonText)}, true
}

// fallbackPathB asks m.Fallback to rewrite raw as a plain prompt, with no
// response-format contract.
func (m *Middleware) fallbackPathB(ctx context.Context, name, raw string, h message.Header) ([]message.Message, error) {
	prompt := fmt.Sprintf(
		"Rewrite the following reply as a valid function call JSON for %s. Extract the intent and parameters:\n\n%s", name, raw)

	replies, err := m.Fallback.Invoke(ctx, []message.Message{userText(prompt)}, &agent.Options{})
	if err != nil {
		return nil, streampipeerr.Wrap(streampipeerr.KindToolUseParsingError, "fallback repair agent failed", err)
	}
	text, ok := firstText(replies)
	if !ok {
		return nil, streampipeerr.New(streampipeerr.KindToolUseParsingError, "fallback repair agent returned no text")
	}
	jsonText, ok := extractJSON(text)
	if !ok {
		return nil, streampipeerr.New(streampipeerr.KindToolUseParsingError, fmt.Sprintf("could not extract JSON from fallback repair for %q", name))
	}
	if v := m.validatorFor(name); v != nil {
		if err := v.Validate([]byte(jsonText)); err != nil {
			return nil, streampipeerr.Wrap(streampipeerr.KindToolUseParsingError, fmt.Sprintf("fallback repair for %q did not validate", name), err)
		}
	}
	return []message.Message{toolsCallFrom(h, name, jsonText)}, nil
}

func userText(text string) message.Message {
	return message.Text{Header: message.Header{Role: message.RoleUser}, Text: text}
}

func firstText(msgs []message.Message) (string, bool) {
	for _, msg := range msgs {
		if t, ok := msg.(message.Text); ok {
			return t.Text, true
		}
	}
	return "", false
}
