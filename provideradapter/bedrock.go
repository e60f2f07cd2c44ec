package provideradapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
	"goa.design/streampipe/registry"
	"goa.design/streampipe/telemetry"
)

// BedrockRuntimeClient captures the subset of the AWS Bedrock runtime client
// used by Bedrock, satisfied by *bedrockruntime.Client so callers can pass
// either a real client or a mock in tests.
type BedrockRuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Bedrock implements agent.StreamingAgent over the AWS Bedrock Converse API,
// completing the three-way Anthropic/OpenAI/Bedrock fallback chain.
type Bedrock struct {
	Runtime      BedrockRuntimeClient
	DefaultModel string
	MaxTokens    int32
	Temperature  float32
	Logger       telemetry.Logger
}

// NewBedrock constructs a Bedrock adapter.
func NewBedrock(runtime BedrockRuntimeClient, defaultModel string) *Bedrock {
	return &Bedrock{Runtime: runtime, DefaultModel: defaultModel}
}

func (b *Bedrock) logger() telemetry.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return telemetry.NewNoopLogger()
}

// Invoke issues a non-streaming Converse call and translates the response
// into complete Text/ToolsCall/Usage messages.
func (b *Bedrock) Invoke(ctx context.Context, messages []message.Message, opts *agent.Options) ([]message.Message, error) {
	parts, err := b.prepareRequest(messages, opts)
	if err != nil {
		return nil, err
	}
	output, err := b.Runtime.Converse(ctx, b.buildConverseInput(parts))
	if err != nil {
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}
	return translateBedrockOutput(output, parts.provToCanon), nil
}

// InvokeStreaming issues a ConverseStream call and adapts incremental events
// into message.TextUpdate/ToolsCallUpdate/Usage items.
func (b *Bedrock) InvokeStreaming(ctx context.Context, messages []message.Message, opts *agent.Options) (<-chan agent.StreamItem, error) {
	parts, err := b.prepareRequest(messages, opts)
	if err != nil {
		return nil, err
	}
	out, err := b.Runtime.ConverseStream(ctx, b.buildConverseStreamInput(parts))
	if err != nil {
		return nil, fmt.Errorf("bedrock converse stream: %w", err)
	}
	stream := out.GetStream()
	if stream == nil {
		return nil, errors.New("bedrock: stream output missing event stream")
	}
	ch := make(chan agent.StreamItem)
	go b.pump(ctx, stream, parts.provToCanon, ch)
	return ch, nil
}

type bedrockRequestParts struct {
	modelID     string
	messages    []brtypes.Message
	system      []brtypes.SystemContentBlock
	toolConfig  *brtypes.ToolConfiguration
	provToCanon map[string]string
}

func (b *Bedrock) prepareRequest(messages []message.Message, opts *agent.Options) (*bedrockRequestParts, error) {
	if len(messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}
	modelID := resolveModelID(opts, b.DefaultModel)
	if modelID == "" {
		return nil, errors.New("bedrock: model identifier is required")
	}
	var fns []registry.FunctionContract
	if opts != nil {
		fns = opts.Functions
	}
	canonToProv, provToCanon, err := toolNameMaps(fns)
	if err != nil {
		return nil, err
	}
	convo, system, err := encodeBedrockMessages(messages, canonToProv)
	if err != nil {
		return nil, err
	}
	var toolConfig *brtypes.ToolConfiguration
	if len(fns) > 0 {
		toolConfig = encodeBedrockTools(fns, canonToProv)
	}
	return &bedrockRequestParts{
		modelID:     modelID,
		messages:    convo,
		system:      system,
		toolConfig:  toolConfig,
		provToCanon: provToCanon,
	}, nil
}

func (b *Bedrock) buildConverseInput(parts *bedrockRequestParts) *bedrockruntime.ConverseInput {
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(parts.modelID),
		Messages: parts.messages,
	}
	if len(parts.system) > 0 {
		input.System = parts.system
	}
	if parts.toolConfig != nil {
		input.ToolConfig = parts.toolConfig
	}
	if cfg := b.inferenceConfig(); cfg != nil {
		input.InferenceConfig = cfg
	}
	return input
}

func (b *Bedrock) buildConverseStreamInput(parts *bedrockRequestParts) *bedrockruntime.ConverseStreamInput {
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(parts.modelID),
		Messages: parts.messages,
	}
	if len(parts.system) > 0 {
		input.System = parts.system
	}
	if parts.toolConfig != nil {
		input.ToolConfig = parts.toolConfig
	}
	if cfg := b.inferenceConfig(); cfg != nil {
		input.InferenceConfig = cfg
	}
	return input
}

func (b *Bedrock) inferenceConfig() *brtypes.InferenceConfiguration {
	var cfg brtypes.InferenceConfiguration
	if b.MaxTokens > 0 {
		cfg.MaxTokens = aws.Int32(b.MaxTokens)
	}
	if b.Temperature > 0 {
		cfg.Temperature = aws.Float32(b.Temperature)
	}
	if cfg.MaxTokens == nil && cfg.Temperature == nil {
		return nil
	}
	return &cfg
}

func encodeBedrockMessages(msgs []message.Message, nameMap map[string]string) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	convo := make([]brtypes.Message, 0, len(msgs))
	system := make([]brtypes.SystemContentBlock, 0)
	for _, m := range msgs {
		hdr := m.GetHeader()
		if hdr.Role == message.RoleSystem {
			if t, ok := m.(message.Text); ok && t.Text != "" {
				system = append(system, &brtypes.SystemContentBlockMemberText{Value: t.Text})
			}
			continue
		}
		blocks, err := bedrockContentBlocks(m, nameMap)
		if err != nil {
			return nil, nil, err
		}
		if len(blocks) == 0 {
			continue
		}
		role := brtypes.ConversationRoleUser
		if hdr.Role == message.RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		convo = append(convo, brtypes.Message{Role: role, Content: blocks})
	}
	if len(convo) == 0 {
		return nil, nil, errors.New("bedrock: at least one user/assistant message is required")
	}
	return convo, system, nil
}

func bedrockContentBlocks(m message.Message, nameMap map[string]string) ([]brtypes.ContentBlock, error) {
	switch v := m.(type) {
	case message.Text:
		if v.Text == "" {
			return nil, nil
		}
		return []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: v.Text}}, nil
	case message.ToolsCall:
		blocks := make([]brtypes.ContentBlock, 0, len(v.ToolCalls))
		for _, tc := range v.ToolCalls {
			sanitized, ok := nameMap[tc.FunctionName]
			if !ok {
				return nil, fmt.Errorf("bedrock: tool_use references %q which is not in the current tool configuration", tc.FunctionName)
			}
			blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
				ToolUseId: aws.String(tc.ToolCallID),
				Name:      aws.String(sanitized),
				Input:     toBedrockDocument(tc.FunctionArgs),
			}})
		}
		return blocks, nil
	case message.ToolsCallResult:
		blocks := make([]brtypes.ContentBlock, 0, len(v.Results))
		for _, r := range v.Results {
			blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
				ToolUseId: aws.String(r.ToolCallID),
				Content: []brtypes.ToolResultContentBlock{
					&brtypes.ToolResultContentBlockMemberText{Value: r.Result},
				},
			}})
		}
		return blocks, nil
	default:
		return nil, nil
	}
}

func encodeBedrockTools(fns []registry.FunctionContract, canonToProv map[string]string) *brtypes.ToolConfiguration {
	tools := make([]brtypes.Tool, 0, len(fns))
	for _, fn := range fns {
		tools = append(tools, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(canonToProv[fn.Name]),
			Description: aws.String(fn.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: toBedrockDocument(string(functionSchema(fn)))},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: tools}
}

func toBedrockDocument(raw string) document.Interface {
	var decoded any
	if raw == "" {
		decoded = map[string]any{}
	} else if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		decoded = map[string]any{}
	}
	return document.NewLazyDocument(&decoded)
}

func fromBedrockDocument(doc document.Interface) string {
	if doc == nil {
		return "{}"
	}
	data, err := doc.MarshalSmithyDocument()
	if err != nil || len(data) == 0 {
		return "{}"
	}
	return string(data)
}

func translateBedrockOutput(output *bedrockruntime.ConverseOutput, provToCanon map[string]string) []message.Message {
	var out []message.Message
	var calls []message.ToolCall
	if msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			switch v := block.(type) {
			case *brtypes.ContentBlockMemberText:
				if v.Value == "" {
					continue
				}
				out = append(out, message.Text{
					Header: message.Header{Role: message.RoleAssistant},
					Text:   v.Value,
				})
			case *brtypes.ContentBlockMemberToolUse:
				name := ""
				if v.Value.Name != nil {
					name = canonicalToolName(*v.Value.Name, provToCanon)
				}
				id := newToolCallID()
				if v.Value.ToolUseId != nil && *v.Value.ToolUseId != "" {
					id = *v.Value.ToolUseId
				}
				calls = append(calls, message.ToolCall{
					Header:       message.Header{Role: message.RoleAssistant},
					FunctionName: name,
					FunctionArgs: fromBedrockDocument(v.Value.Input),
					Index:        len(calls),
					ToolCallID:   id,
				})
			}
		}
	}
	if len(calls) > 0 {
		out = append(out, message.ToolsCall{
			Header:    message.Header{Role: message.RoleAssistant},
			ToolCalls: calls,
		})
	}
	if usage := output.Usage; usage != nil {
		out = append(out, message.Usage{
			Header:           message.Header{Role: message.RoleAssistant},
			PromptTokens:     int(ptrInt32(usage.InputTokens)),
			CompletionTokens: int(ptrInt32(usage.OutputTokens)),
			TotalTokens:      int(ptrInt32(usage.TotalTokens)),
		})
	}
	return out
}

func ptrInt32(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

// bedrockToolState tracks the in-progress name/id for one content-block
// index's tool_use block across Start/Delta events.
type bedrockToolState struct {
	id   string
	name string
}

// bedrockEventHandler converts one ConverseStream event at a time into zero
// or more message.Message items, independently of how the event was
// obtained. Splitting this out of pump's event-stream loop lets tests drive
// it with synthetic events instead of a live AWS event stream.
type bedrockEventHandler struct {
	provToCanon map[string]string
	tools       map[int32]*bedrockToolState
	emit        func(message.Message) bool
}

func newBedrockEventHandler(provToCanon map[string]string, emit func(message.Message) bool) *bedrockEventHandler {
	return &bedrockEventHandler{
		provToCanon: provToCanon,
		tools:       make(map[int32]*bedrockToolState),
		emit:        emit,
	}
}

// Handle processes one ConverseStream event. It returns false once emit has
// reported the consumer is gone (context canceled), signaling the caller to
// stop draining the stream.
func (h *bedrockEventHandler) Handle(event any) bool {
	switch ev := event.(type) {
	case *brtypes.ConverseStreamOutputMemberContentBlockStart:
		idx := ptrInt32(ev.Value.ContentBlockIndex)
		if start := ev.Value.Start; start != nil {
			if toolUse, ok := start.(*brtypes.ContentBlockStartMemberToolUse); ok {
				name := ""
				if toolUse.Value.Name != nil {
					name = canonicalToolName(*toolUse.Value.Name, h.provToCanon)
				}
				id := ""
				if toolUse.Value.ToolUseId != nil {
					id = *toolUse.Value.ToolUseId
				}
				h.tools[idx] = &bedrockToolState{id: id, name: name}
			}
		}
		return true
	case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
		idx := ptrInt32(ev.Value.ContentBlockIndex)
		switch delta := ev.Value.Delta.(type) {
		case *brtypes.ContentBlockDeltaMemberText:
			if delta.Value == "" {
				return true
			}
			return h.emit(message.TextUpdate{
				Header: message.Header{Role: message.RoleAssistant},
				Text:   delta.Value,
			})
		case *brtypes.ContentBlockDeltaMemberToolUse:
			ts := h.tools[idx]
			if ts == nil || delta.Value.Input == nil {
				return true
			}
			fragment := *delta.Value.Input
			return h.emit(message.ToolsCallUpdate{
				Header: message.Header{Role: message.RoleAssistant},
				ToolCallUpdates: []message.ToolCallUpdate{{
					Header:       message.Header{Role: message.RoleAssistant},
					FunctionName: ts.name,
					FunctionArgs: fragment,
					Index:        int(idx),
					ToolCallID:   ts.id,
				}},
			})
		}
		return true
	case *brtypes.ConverseStreamOutputMemberMetadata:
		if ev.Value.Usage == nil {
			return true
		}
		return h.emit(message.Usage{
			Header:           message.Header{Role: message.RoleAssistant},
			PromptTokens:     int(ptrInt32(ev.Value.Usage.InputTokens)),
			CompletionTokens: int(ptrInt32(ev.Value.Usage.OutputTokens)),
			TotalTokens:      int(ptrInt32(ev.Value.Usage.TotalTokens)),
		})
	}
	return true
}

func (b *Bedrock) pump(ctx context.Context, stream *bedrockruntime.ConverseStreamEventStream, provToCanon map[string]string, out chan<- agent.StreamItem) {
	defer close(out)
	defer func() { _ = stream.Close() }()

	handler := newBedrockEventHandler(provToCanon, func(m message.Message) bool {
		return sendItem(ctx, out, agent.StreamItem{Message: m})
	})
	for event := range stream.Events() {
		if !handler.Handle(event) {
			return
		}
	}
	if err := stream.Err(); err != nil {
		b.logger().Error(ctx, "bedrock stream error", "error", err)
		sendItem(ctx, out, agent.StreamItem{Err: fmt.Errorf("bedrock converse stream: %w", err)})
	}
}
