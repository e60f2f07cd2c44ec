package provideradapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
	"goa.design/streampipe/registry"
	"goa.design/streampipe/telemetry"
)

// AnthropicMessagesClient captures the subset of the Anthropic SDK used by
// Anthropic, satisfied by *sdk.MessageService so callers can pass either a
// real client or a mock in tests.
type AnthropicMessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Anthropic implements agent.StreamingAgent over the Anthropic Messages API.
type Anthropic struct {
	Client       AnthropicMessagesClient
	DefaultModel string
	MaxTokens    int64
	Temperature  float64
	Logger       telemetry.Logger
}

// NewAnthropic constructs an Anthropic adapter. maxTokens bounds every
// request's completion length; it is required by the Messages API.
func NewAnthropic(client AnthropicMessagesClient, defaultModel string, maxTokens int64) *Anthropic {
	return &Anthropic{Client: client, DefaultModel: defaultModel, MaxTokens: maxTokens}
}

// NewAnthropicFromAPIKey constructs an Anthropic adapter using the SDK's
// default HTTP client.
func NewAnthropicFromAPIKey(apiKey, defaultModel string, maxTokens int64) *Anthropic {
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropic(&c.Messages, defaultModel, maxTokens)
}

func (a *Anthropic) logger() telemetry.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return telemetry.NewNoopLogger()
}

// Invoke issues a non-streaming Messages.New call and translates the
// response into complete Text/ToolsCall/Usage messages.
func (a *Anthropic) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error) {
	params, provToCanon, err := a.prepareRequest(messages, opts)
	if err != nil {
		return nil, err
	}
	msg, err := a.Client.New(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateAnthropicMessage(msg, provToCanon), nil
}

// InvokeStreaming issues a Messages.NewStreaming call and adapts incremental
// events into message.TextUpdate/ToolsCallUpdate/Usage items.
func (a *Anthropic) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options) (<-chan agent.StreamItem, error) {
	params, provToCanon, err := a.prepareRequest(messages, opts)
	if err != nil {
		return nil, err
	}
	stream := a.Client.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic messages.new stream: %w", err)
	}
	out := make(chan agent.StreamItem)
	go a.pump(ctx, stream, provToCanon, out)
	return out, nil
}

func (a *Anthropic) prepareRequest(messages []message.Message, opts *agent.Options) (*sdk.MessageNewParams, map[string]string, error) {
	if len(messages) == 0 {
		return nil, nil, errors.New("anthropic: messages are required")
	}
	modelID := resolveModelID(opts, a.DefaultModel)
	if modelID == "" {
		return nil, nil, errors.New("anthropic: model identifier is required")
	}
	if a.MaxTokens <= 0 {
		return nil, nil, errors.New("anthropic: max tokens must be positive")
	}
	var fns []registry.FunctionContract
	if opts != nil {
		fns = opts.Functions
	}
	canonToProv, provToCanon, err := toolNameMaps(fns)
	if err != nil {
		return nil, nil, err
	}
	convo, system, err := encodeAnthropicMessages(messages, canonToProv)
	if err != nil {
		return nil, nil, err
	}
	params := sdk.MessageNewParams{
		MaxTokens: a.MaxTokens,
		Messages:  convo,
		Model:     sdk.Model(modelID),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(fns) > 0 {
		tools, err := encodeAnthropicTools(fns, canonToProv)
		if err != nil {
			return nil, nil, err
		}
		params.Tools = tools
	}
	if a.Temperature > 0 {
		params.Temperature = sdk.Float(a.Temperature)
	}
	return &params, provToCanon, nil
}

func encodeAnthropicMessages(msgs []message.Message, nameMap map[string]string) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	convo := make([]sdk.MessageParam, 0, len(msgs))
	system := make([]sdk.TextBlockParam, 0)
	for _, m := range msgs {
		hdr := m.GetHeader()
		if hdr.Role == message.RoleSystem {
			if t, ok := m.(message.Text); ok && t.Text != "" {
				system = append(system, sdk.TextBlockParam{Text: t.Text})
			}
			continue
		}
		blocks, err := anthropicContentBlocks(m, nameMap)
		if err != nil {
			return nil, nil, err
		}
		if len(blocks) == 0 {
			continue
		}
		switch hdr.Role {
		case message.RoleUser, message.RoleTool:
			convo = append(convo, sdk.NewUserMessage(blocks...))
		case message.RoleAssistant:
			convo = append(convo, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, nil, fmt.Errorf("anthropic: unsupported message role %q", hdr.Role)
		}
	}
	if len(convo) == 0 {
		return nil, nil, errors.New("anthropic: at least one user/assistant message is required")
	}
	return convo, system, nil
}

func anthropicContentBlocks(m message.Message, nameMap map[string]string) ([]sdk.ContentBlockParamUnion, error) {
	switch v := m.(type) {
	case message.Text:
		if v.Text == "" {
			return nil, nil
		}
		return []sdk.ContentBlockParamUnion{sdk.NewTextBlock(v.Text)}, nil
	case message.ToolsCall:
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(v.ToolCalls))
		for _, tc := range v.ToolCalls {
			sanitized, ok := nameMap[tc.FunctionName]
			if !ok {
				return nil, fmt.Errorf("anthropic: tool_use references %q which is not in the current tool configuration", tc.FunctionName)
			}
			var input any = map[string]any{}
			if tc.FunctionArgs != "" {
				if err := json.Unmarshal([]byte(tc.FunctionArgs), &input); err != nil {
					return nil, fmt.Errorf("anthropic: tool_use %q arguments: %w", tc.FunctionName, err)
				}
			}
			blocks = append(blocks, sdk.NewToolUseBlock(tc.ToolCallID, input, sanitized))
		}
		return blocks, nil
	case message.ToolsCallResult:
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(v.Results))
		for _, r := range v.Results {
			blocks = append(blocks, sdk.NewToolResultBlock(r.ToolCallID, r.Result, false))
		}
		return blocks, nil
	default:
		// Update/Usage/TodoContext/Composite variants never appear in a
		// conversation history passed to a provider adapter; skip silently.
		return nil, nil
	}
}

func encodeAnthropicTools(fns []registry.FunctionContract, canonToProv map[string]string) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(fns))
	for _, fn := range fns {
		sanitized := canonToProv[fn.Name]
		var fields map[string]any
		if err := json.Unmarshal(functionSchema(fn), &fields); err != nil {
			return nil, fmt.Errorf("anthropic: tool %q schema: %w", fn.Name, err)
		}
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: fields}, sanitized)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(fn.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

func translateAnthropicMessage(msg *sdk.Message, provToCanon map[string]string) []message.Message {
	var out []message.Message
	var calls []message.ToolCall
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			out = append(out, message.Text{
				Header: message.Header{Role: message.RoleAssistant},
				Text:   block.Text,
			})
		case "tool_use":
			name := canonicalToolName(block.Name, provToCanon)
			args := "{}"
			if len(block.Input) > 0 {
				args = string(block.Input)
			}
			id := block.ID
			if id == "" {
				id = newToolCallID()
			}
			calls = append(calls, message.ToolCall{
				Header:       message.Header{Role: message.RoleAssistant},
				FunctionName: name,
				FunctionArgs: args,
				Index:        len(calls),
				ToolCallID:   id,
			})
		}
	}
	if len(calls) > 0 {
		out = append(out, message.ToolsCall{
			Header:    message.Header{Role: message.RoleAssistant},
			ToolCalls: calls,
		})
	}
	if u := msg.Usage; u.InputTokens != 0 || u.OutputTokens != 0 {
		out = append(out, message.Usage{
			Header:           message.Header{Role: message.RoleAssistant},
			PromptTokens:     int(u.InputTokens),
			CompletionTokens: int(u.OutputTokens),
			TotalTokens:      int(u.InputTokens + u.OutputTokens),
		})
	}
	return out
}

func (a *Anthropic) pump(ctx context.Context, stream *ssestream.Stream[sdk.MessageStreamEventUnion], provToCanon map[string]string, out chan<- agent.StreamItem) {
	defer close(out)
	defer func() { _ = stream.Close() }()

	type toolState struct {
		id   string
		name string
		idx  int
	}
	tools := make(map[int64]*toolState)
	nextIdx := 0

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case sdk.ContentBlockStartEvent:
			if toolUse, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
				ts := &toolState{id: toolUse.ID, name: canonicalToolName(toolUse.Name, provToCanon), idx: nextIdx}
				nextIdx++
				tools[ev.Index] = ts
			}
		case sdk.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case sdk.TextDelta:
				if delta.Text == "" {
					continue
				}
				if !sendItem(ctx, out, agent.StreamItem{Message: message.TextUpdate{
					Header: message.Header{Role: message.RoleAssistant},
					Text:   delta.Text,
				}}) {
					return
				}
			case sdk.InputJSONDelta:
				if delta.PartialJSON == "" {
					continue
				}
				ts := tools[ev.Index]
				if ts == nil {
					continue
				}
				if !sendItem(ctx, out, agent.StreamItem{Message: message.ToolsCallUpdate{
					Header: message.Header{Role: message.RoleAssistant},
					ToolCallUpdates: []message.ToolCallUpdate{{
						Header:       message.Header{Role: message.RoleAssistant},
						FunctionName: ts.name,
						FunctionArgs: delta.PartialJSON,
						Index:        ts.idx,
						ToolCallID:   ts.id,
					}},
				}}) {
					return
				}
			}
		case sdk.MessageDeltaEvent:
			usage := message.Usage{
				Header:           message.Header{Role: message.RoleAssistant},
				PromptTokens:     int(ev.Usage.InputTokens),
				CompletionTokens: int(ev.Usage.OutputTokens),
				TotalTokens:      int(ev.Usage.InputTokens + ev.Usage.OutputTokens),
			}
			if !sendItem(ctx, out, agent.StreamItem{Message: usage}) {
				return
			}
		}
	}
	if err := stream.Err(); err != nil {
		a.logger().Error(ctx, "anthropic stream error", "error", err)
		sendItem(ctx, out, agent.StreamItem{Err: fmt.Errorf("anthropic messages stream: %w", err)})
	}
}

