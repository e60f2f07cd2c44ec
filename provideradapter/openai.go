package provideradapter

import (
	"encoding/json"
	"errors"
	"fmt"

	"context"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
	"goa.design/streampipe/registry"
	"goa.design/streampipe/telemetry"
)

// OpenAIChatClient captures the subset of the OpenAI SDK used by OpenAI,
// satisfied by the SDK's Chat Completions service so callers can pass a
// real client or a mock in tests.
type OpenAIChatClient interface {
	New(ctx context.Context, body oai.ChatCompletionNewParams, opts ...option.RequestOption) (*oai.ChatCompletion, error)
	NewStreaming(ctx context.Context, body oai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[oai.ChatCompletionChunk]
}

// OpenAI implements agent.StreamingAgent over the OpenAI Chat Completions
// API.
type OpenAI struct {
	Client       OpenAIChatClient
	DefaultModel string
	Temperature  float64
	Logger       telemetry.Logger
}

// NewOpenAI constructs an OpenAI adapter.
func NewOpenAI(client OpenAIChatClient, defaultModel string) *OpenAI {
	return &OpenAI{Client: client, DefaultModel: defaultModel}
}

// NewOpenAIFromAPIKey constructs an OpenAI adapter using the SDK's default
// HTTP client.
func NewOpenAIFromAPIKey(apiKey, defaultModel string) *OpenAI {
	c := oai.NewClient(option.WithAPIKey(apiKey))
	return NewOpenAI(&c.Chat.Completions, defaultModel)
}

func (o *OpenAI) logger() telemetry.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return telemetry.NewNoopLogger()
}

// Invoke issues a non-streaming chat completion and translates the response
// into complete Text/ToolsCall/Usage messages.
func (o *OpenAI) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error) {
	params, provToCanon, err := o.prepareRequest(messages, opts, false)
	if err != nil {
		return nil, err
	}
	resp, err := o.Client.New(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completions: %w", err)
	}
	return translateOpenAIResponse(resp, provToCanon), nil
}

// InvokeStreaming issues a streaming chat completion and adapts incremental
// chunks into message.TextUpdate/ToolsCallUpdate/Usage items.
func (o *OpenAI) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options) (<-chan agent.StreamItem, error) {
	params, provToCanon, err := o.prepareRequest(messages, opts, true)
	if err != nil {
		return nil, err
	}
	stream := o.Client.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai chat completions stream: %w", err)
	}
	out := make(chan agent.StreamItem)
	go o.pump(ctx, stream, provToCanon, out)
	return out, nil
}

func (o *OpenAI) prepareRequest(messages []message.Message, opts *agent.Options, streaming bool) (*oai.ChatCompletionNewParams, map[string]string, error) {
	if len(messages) == 0 {
		return nil, nil, errors.New("openai: messages are required")
	}
	modelID := resolveModelID(opts, o.DefaultModel)
	if modelID == "" {
		return nil, nil, errors.New("openai: model identifier is required")
	}
	var fns []registry.FunctionContract
	if opts != nil {
		fns = opts.Functions
	}
	canonToProv, provToCanon, err := toolNameMaps(fns)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := encodeOpenAIMessages(messages, canonToProv)
	if err != nil {
		return nil, nil, err
	}
	params := oai.ChatCompletionNewParams{
		Model:    oai.ChatModel(modelID),
		Messages: msgs,
	}
	if len(fns) > 0 {
		params.Tools = encodeOpenAITools(fns, canonToProv)
	}
	if o.Temperature > 0 {
		params.Temperature = oai.Float(o.Temperature)
	}
	if streaming {
		params.StreamOptions = oai.ChatCompletionStreamOptionsParam{IncludeUsage: oai.Bool(true)}
	}
	return &params, provToCanon, nil
}

func encodeOpenAIMessages(msgs []message.Message, nameMap map[string]string) ([]oai.ChatCompletionMessageParamUnion, error) {
	out := make([]oai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		hdr := m.GetHeader()
		switch v := m.(type) {
		case message.Text:
			if v.Text == "" {
				continue
			}
			switch hdr.Role {
			case message.RoleSystem:
				out = append(out, oai.SystemMessage(v.Text))
			case message.RoleUser:
				out = append(out, oai.UserMessage(v.Text))
			case message.RoleAssistant:
				out = append(out, oai.AssistantMessage(v.Text))
			default:
				return nil, fmt.Errorf("openai: unsupported message role %q", hdr.Role)
			}
		case message.ToolsCall:
			calls := make([]oai.ChatCompletionMessageToolCallParam, 0, len(v.ToolCalls))
			for _, tc := range v.ToolCalls {
				sanitized, ok := nameMap[tc.FunctionName]
				if !ok {
					return nil, fmt.Errorf("openai: tool call references %q which is not in the current tool configuration", tc.FunctionName)
				}
				args := tc.FunctionArgs
				if args == "" {
					args = "{}"
				}
				calls = append(calls, oai.ChatCompletionMessageToolCallParam{
					ID: tc.ToolCallID,
					Function: oai.ChatCompletionMessageToolCallFunctionParam{
						Name:      sanitized,
						Arguments: args,
					},
				})
			}
			assistant := oai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
			out = append(out, oai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case message.ToolsCallResult:
			for _, r := range v.Results {
				out = append(out, oai.ToolMessage(r.Result, r.ToolCallID))
			}
		default:
			// Update/Usage/TodoContext/Composite variants never appear in a
			// conversation history passed to a provider adapter.
		}
	}
	if len(out) == 0 {
		return nil, errors.New("openai: at least one message is required")
	}
	return out, nil
}

func encodeOpenAITools(fns []registry.FunctionContract, canonToProv map[string]string) []oai.ChatCompletionToolParam {
	out := make([]oai.ChatCompletionToolParam, 0, len(fns))
	for _, fn := range fns {
		var params map[string]any
		_ = json.Unmarshal(functionSchema(fn), &params)
		out = append(out, oai.ChatCompletionToolParam{
			Function: oai.FunctionDefinitionParam{
				Name:        canonToProv[fn.Name],
				Description: oai.String(fn.Description),
				Parameters:  params,
			},
		})
	}
	return out
}

func translateOpenAIResponse(resp *oai.ChatCompletion, provToCanon map[string]string) []message.Message {
	var out []message.Message
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		if choice.Message.Content != "" {
			out = append(out, message.Text{
				Header: message.Header{Role: message.RoleAssistant},
				Text:   choice.Message.Content,
			})
		}
		if len(choice.Message.ToolCalls) > 0 {
			calls := make([]message.ToolCall, 0, len(choice.Message.ToolCalls))
			for i, tc := range choice.Message.ToolCalls {
				args := tc.Function.Arguments
				if args == "" {
					args = "{}"
				}
				calls = append(calls, message.ToolCall{
					Header:       message.Header{Role: message.RoleAssistant},
					FunctionName: canonicalToolName(tc.Function.Name, provToCanon),
					FunctionArgs: args,
					Index:        i,
					ToolCallID:   tc.ID,
				})
			}
			out = append(out, message.ToolsCall{
				Header:    message.Header{Role: message.RoleAssistant},
				ToolCalls: calls,
			})
		}
	}
	if u := resp.Usage; u.PromptTokens != 0 || u.CompletionTokens != 0 {
		out = append(out, message.Usage{
			Header:           message.Header{Role: message.RoleAssistant},
			PromptTokens:     int(u.PromptTokens),
			CompletionTokens: int(u.CompletionTokens),
			TotalTokens:      int(u.TotalTokens),
		})
	}
	return out
}

func (o *OpenAI) pump(ctx context.Context, stream *ssestream.Stream[oai.ChatCompletionChunk], provToCanon map[string]string, out chan<- agent.StreamItem) {
	defer close(out)
	defer func() { _ = stream.Close() }()

	type toolState struct {
		id   string
		name string
	}
	tools := make(map[int64]*toolState)

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			if chunk.Usage.PromptTokens != 0 || chunk.Usage.CompletionTokens != 0 {
				usage := message.Usage{
					Header:           message.Header{Role: message.RoleAssistant},
					PromptTokens:     int(chunk.Usage.PromptTokens),
					CompletionTokens: int(chunk.Usage.CompletionTokens),
					TotalTokens:      int(chunk.Usage.TotalTokens),
				}
				if !sendItem(ctx, out, agent.StreamItem{Message: usage}) {
					return
				}
			}
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			if !sendItem(ctx, out, agent.StreamItem{Message: message.TextUpdate{
				Header: message.Header{Role: message.RoleAssistant},
				Text:   delta.Content,
			}}) {
				return
			}
		}
		for _, tc := range delta.ToolCalls {
			ts := tools[tc.Index]
			if ts == nil {
				ts = &toolState{id: tc.ID, name: canonicalToolName(tc.Function.Name, provToCanon)}
				tools[tc.Index] = ts
			}
			if tc.ID != "" {
				ts.id = tc.ID
			}
			if tc.Function.Name != "" {
				ts.name = canonicalToolName(tc.Function.Name, provToCanon)
			}
			if tc.Function.Arguments == "" {
				continue
			}
			if !sendItem(ctx, out, agent.StreamItem{Message: message.ToolsCallUpdate{
				Header: message.Header{Role: message.RoleAssistant},
				ToolCallUpdates: []message.ToolCallUpdate{{
					Header:       message.Header{Role: message.RoleAssistant},
					FunctionName: ts.name,
					FunctionArgs: tc.Function.Arguments,
					Index:        int(tc.Index),
					ToolCallID:   ts.id,
				}},
			}}) {
				return
			}
		}
	}
	if err := stream.Err(); err != nil {
		o.logger().Error(ctx, "openai stream error", "error", err)
		sendItem(ctx, out, agent.StreamItem{Err: fmt.Errorf("openai chat completions stream: %w", err)})
	}
}
