package message

import (
	"encoding/json"
	"fmt"
)

// codec bundles the encode/decode functions for one message Kind. Registering
// a new variant means adding one entry to registry rather than extending a
// growing type switch, per the "registry of (tag -> {serialize, deserialize})"
// guidance for replacing polymorphic converters.
type codec struct {
	encode func(Message) (any, error)
	decode func(json.RawMessage) (Message, error)
}

var registry = map[string]codec{}

func register(kind string, c codec) {
	registry[kind] = c
}

// envelope is the wire shape every encoded message takes: a Kind
// discriminator plus the variant-specific fields flattened alongside it.
type envelope struct {
	Kind string `json:"kind"`
}

// Encode produces the canonical JSON representation of m. The same Registry
// is used for wire persistence and for cache fingerprinting so identical
// inputs always hash identically (see the cache package).
func Encode(m Message) ([]byte, error) {
	c, ok := registry[m.Kind()]
	if !ok {
		return nil, fmt.Errorf("message: no codec registered for kind %q", m.Kind())
	}
	v, err := c.encode(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	return json.Marshal(v)
}

// Decode parses raw into the concrete Message variant named by its "kind"
// field.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	c, ok := registry[env.Kind]
	if !ok {
		return nil, fmt.Errorf("message: no codec registered for kind %q", env.Kind)
	}
	m, err := c.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
	}
	return m, nil
}

// EncodeAll encodes an ordered list of messages, each independently framed.
func EncodeAll(msgs []Message) ([][]byte, error) {
	out := make([][]byte, 0, len(msgs))
	for i, m := range msgs {
		enc, err := Encode(m)
		if err != nil {
			return nil, fmt.Errorf("encode message[%d]: %w", i, err)
		}
		out = append(out, enc)
	}
	return out, nil
}

// DecodeAll decodes a list produced by EncodeAll, preserving order.
func DecodeAll(raws [][]byte) ([]Message, error) {
	out := make([]Message, 0, len(raws))
	for i, raw := range raws {
		m, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode message[%d]: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func init() {
	register(KindText, codec{
		encode: func(m Message) (any, error) {
			v := m.(Text)
			return struct {
				envelope
				Header
				Text string
			}{envelope{KindText}, v.Header, v.Text}, nil
		},
		decode: func(raw json.RawMessage) (Message, error) {
			var v struct {
				Header
				Text string
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return Text{Header: v.Header, Text: v.Text}, nil
		},
	})

	register(KindTextUpdate, codec{
		encode: func(m Message) (any, error) {
			v := m.(TextUpdate)
			return struct {
				envelope
				Header
				Text       string
				IsThinking bool
			}{envelope{KindTextUpdate}, v.Header, v.Text, v.IsThinking}, nil
		},
		decode: func(raw json.RawMessage) (Message, error) {
			var v struct {
				Header
				Text       string
				IsThinking bool
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return TextUpdate{Header: v.Header, Text: v.Text, IsThinking: v.IsThinking}, nil
		},
	})

	register(KindReasoning, codec{
		encode: func(m Message) (any, error) {
			v := m.(Reasoning)
			return struct {
				envelope
				Header
				Text       string
				Visibility Visibility
			}{envelope{KindReasoning}, v.Header, v.Text, v.Visibility}, nil
		},
		decode: func(raw json.RawMessage) (Message, error) {
			var v struct {
				Header
				Text       string
				Visibility Visibility
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return Reasoning{Header: v.Header, Text: v.Text, Visibility: v.Visibility}, nil
		},
	})

	register(KindReasoningUpdate, codec{
		encode: func(m Message) (any, error) {
			v := m.(ReasoningUpdate)
			return struct {
				envelope
				Header
				Text       string
				Visibility Visibility
			}{envelope{KindReasoningUpdate}, v.Header, v.Text, v.Visibility}, nil
		},
		decode: func(raw json.RawMessage) (Message, error) {
			var v struct {
				Header
				Text       string
				Visibility Visibility
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return ReasoningUpdate{Header: v.Header, Text: v.Text, Visibility: v.Visibility}, nil
		},
	})

	register(KindImage, codec{
		encode: func(m Message) (any, error) {
			v := m.(Image)
			return struct {
				envelope
				Header
				ImageData []byte
			}{envelope{KindImage}, v.Header, v.ImageData}, nil
		},
		decode: func(raw json.RawMessage) (Message, error) {
			var v struct {
				Header
				ImageData []byte
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return Image{Header: v.Header, ImageData: v.ImageData}, nil
		},
	})

	register(KindToolCall, codec{
		encode: func(m Message) (any, error) {
			v := m.(ToolCall)
			return struct {
				envelope
				Header
				FunctionName string
				FunctionArgs string
				Index        int
				ToolCallID   string
				ToolCallIdx  int
			}{envelope{KindToolCall}, v.Header, v.FunctionName, v.FunctionArgs, v.Index, v.ToolCallID, v.ToolCallIdx}, nil
		},
		decode: func(raw json.RawMessage) (Message, error) {
			var v struct {
				Header
				FunctionName string
				FunctionArgs string
				Index        int
				ToolCallID   string
				ToolCallIdx  int
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return ToolCall{Header: v.Header, FunctionName: v.FunctionName, FunctionArgs: v.FunctionArgs, Index: v.Index, ToolCallID: v.ToolCallID, ToolCallIdx: v.ToolCallIdx}, nil
		},
	})

	register(KindToolsCall, codec{
		encode: func(m Message) (any, error) {
			v := m.(ToolsCall)
			return struct {
				envelope
				Header
				ToolCalls []ToolCall
			}{envelope{KindToolsCall}, v.Header, v.ToolCalls}, nil
		},
		decode: func(raw json.RawMessage) (Message, error) {
			var v struct {
				Header
				ToolCalls []ToolCall
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return ToolsCall{Header: v.Header, ToolCalls: v.ToolCalls}, nil
		},
	})

	register(KindToolCallUpdate, codec{
		encode: func(m Message) (any, error) {
			v := m.(ToolCallUpdate)
			return struct {
				envelope
				Header
				FunctionName        string
				FunctionArgs        string
				Index               int
				ToolCallID          string
				ToolCallIdx         int
				JSONFragmentUpdates []JSONFragmentUpdate
			}{envelope{KindToolCallUpdate}, v.Header, v.FunctionName, v.FunctionArgs, v.Index, v.ToolCallID, v.ToolCallIdx, v.JSONFragmentUpdates}, nil
		},
		decode: func(raw json.RawMessage) (Message, error) {
			var v struct {
				Header
				FunctionName        string
				FunctionArgs        string
				Index               int
				ToolCallID          string
				ToolCallIdx         int
				JSONFragmentUpdates []JSONFragmentUpdate
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return ToolCallUpdate{
				Header: v.Header, FunctionName: v.FunctionName, FunctionArgs: v.FunctionArgs,
				Index: v.Index, ToolCallID: v.ToolCallID, ToolCallIdx: v.ToolCallIdx,
				JSONFragmentUpdates: v.JSONFragmentUpdates,
			}, nil
		},
	})

	register(KindToolsCallUpdate, codec{
		encode: func(m Message) (any, error) {
			v := m.(ToolsCallUpdate)
			return struct {
				envelope
				Header
				ToolCallUpdates []ToolCallUpdate
			}{envelope{KindToolsCallUpdate}, v.Header, v.ToolCallUpdates}, nil
		},
		decode: func(raw json.RawMessage) (Message, error) {
			var v struct {
				Header
				ToolCallUpdates []ToolCallUpdate
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return ToolsCallUpdate{Header: v.Header, ToolCallUpdates: v.ToolCallUpdates}, nil
		},
	})

	register(KindToolCallResult, codec{
		encode: func(m Message) (any, error) {
			v := m.(ToolCallResult)
			return struct {
				envelope
				Header
				ToolCallID    string
				Result        string
				ContentBlocks []ContentBlock
			}{envelope{KindToolCallResult}, v.Header, v.ToolCallID, v.Result, v.ContentBlocks}, nil
		},
		decode: func(raw json.RawMessage) (Message, error) {
			var v struct {
				Header
				ToolCallID    string
				Result        string
				ContentBlocks []ContentBlock
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return ToolCallResult{Header: v.Header, ToolCallID: v.ToolCallID, Result: v.Result, ContentBlocks: v.ContentBlocks}, nil
		},
	})

	register(KindToolsCallResult, codec{
		encode: func(m Message) (any, error) {
			v := m.(ToolsCallResult)
			return struct {
				envelope
				Header
				Results []ToolCallResult
			}{envelope{KindToolsCallResult}, v.Header, v.Results}, nil
		},
		decode: func(raw json.RawMessage) (Message, error) {
			var v struct {
				Header
				Results []ToolCallResult
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return ToolsCallResult{Header: v.Header, Results: v.Results}, nil
		},
	})

	register(KindToolsCallAggregate, codec{
		encode: func(m Message) (any, error) {
			v := m.(ToolsCallAggregate)
			return struct {
				envelope
				Header
				Calls   ToolsCall
				Results ToolsCallResult
			}{envelope{KindToolsCallAggregate}, v.Header, v.Calls, v.Results}, nil
		},
		decode: func(raw json.RawMessage) (Message, error) {
			var v struct {
				Header
				Calls   ToolsCall
				Results ToolsCallResult
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return ToolsCallAggregate{Header: v.Header, Calls: v.Calls, Results: v.Results}, nil
		},
	})

	register(KindComposite, codec{
		encode: func(m Message) (any, error) {
			v := m.(Composite)
			children := make([]json.RawMessage, 0, len(v.Messages))
			for i, child := range v.Messages {
				enc, err := Encode(child)
				if err != nil {
					return nil, fmt.Errorf("encode composite child[%d]: %w", i, err)
				}
				children = append(children, enc)
			}
			return struct {
				envelope
				Header
				Messages []json.RawMessage
			}{envelope{KindComposite}, v.Header, children}, nil
		},
		decode: func(raw json.RawMessage) (Message, error) {
			var v struct {
				Header
				Messages []json.RawMessage
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			children := make([]Message, 0, len(v.Messages))
			for i, childRaw := range v.Messages {
				child, err := Decode(childRaw)
				if err != nil {
					return nil, fmt.Errorf("decode composite child[%d]: %w", i, err)
				}
				children = append(children, child)
			}
			return Composite{Header: v.Header, Messages: children}, nil
		},
	})

	register(KindUsage, codec{
		encode: func(m Message) (any, error) {
			v := m.(Usage)
			return struct {
				envelope
				Header
				PromptTokens     int
				CompletionTokens int
				TotalTokens      int
			}{envelope{KindUsage}, v.Header, v.PromptTokens, v.CompletionTokens, v.TotalTokens}, nil
		},
		decode: func(raw json.RawMessage) (Message, error) {
			var v struct {
				Header
				PromptTokens     int
				CompletionTokens int
				TotalTokens      int
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return Usage{Header: v.Header, PromptTokens: v.PromptTokens, CompletionTokens: v.CompletionTokens, TotalTokens: v.TotalTokens}, nil
		},
	})

	register(KindTodoContext, codec{
		encode: func(m Message) (any, error) {
			v := m.(TodoContext)
			return struct {
				envelope
				Header
				TodoContextText string
			}{envelope{KindTodoContext}, v.Header, v.TodoContextText}, nil
		},
		decode: func(raw json.RawMessage) (Message, error) {
			var v struct {
				Header
				TodoContextText string
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return TodoContext{Header: v.Header, TodoContextText: v.TodoContextText}, nil
		},
	})
}
