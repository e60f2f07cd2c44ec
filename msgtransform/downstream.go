package msgtransform

import (
	"fmt"
	"strconv"

	"goa.design/streampipe/message"
	"goa.design/streampipe/streampipeerr"
)

// Downstream implements spec §4.7.2: it expands plural provider reply
// variants into singular ones and assigns dense, per-generation
// message_order_idx / chunk_idx values. A Downstream is single-use: create
// one per request/stream.
type Downstream struct {
	nextOrder    int
	currentOrder int
	nextChunk    int
	identity     string // "" means no update run is currently open
}

// NewDownstream constructs a fresh per-request Downstream.
func NewDownstream() *Downstream { return &Downstream{} }

// Assign transforms one provider reply message into the ordered singular
// message(s) it expands to, or returns an InvariantViolated error for a
// variant that must never appear on the downstream path (Composite,
// ToolsCallAggregate, or any other non-reply-shaped message).
func (d *Downstream) Assign(msg message.Message) ([]message.Message, error) {
	switch v := msg.(type) {
	case message.Text:
		v.Header = v.Header.WithOrder(d.nextCompleteOrder())
		return []message.Message{v}, nil

	case message.Reasoning:
		v.Header = v.Header.WithOrder(d.nextCompleteOrder())
		return []message.Message{v}, nil

	case message.Image:
		v.Header = v.Header.WithOrder(d.nextCompleteOrder())
		return []message.Message{v}, nil

	case message.Usage:
		v.Header = v.Header.WithOrder(d.nextCompleteOrder())
		return []message.Message{v}, nil

	case message.TodoContext:
		v.Header = v.Header.WithOrder(d.nextCompleteOrder())
		return []message.Message{v}, nil

	case message.ToolsCall:
		out := make([]message.Message, 0, len(v.ToolCalls))
		for _, c := range v.ToolCalls {
			c.Header = c.Header.WithOrder(d.nextCompleteOrder())
			out = append(out, c)
		}
		return out, nil

	case message.ToolsCallResult:
		out := make([]message.Message, 0, len(v.Results))
		for _, r := range v.Results {
			r.Header = r.Header.WithOrder(d.nextCompleteOrder())
			out = append(out, r)
		}
		return out, nil

	case message.TextUpdate:
		v.Header = d.assignUpdateHeader(v.Header, "text_update")
		return []message.Message{v}, nil

	case message.ReasoningUpdate:
		v.Header = d.assignUpdateHeader(v.Header, "reasoning_update")
		return []message.Message{v}, nil

	case message.ToolCallUpdate:
		return []message.Message{d.assignToolCallUpdate(v)}, nil

	case message.ToolsCallUpdate:
		out := make([]message.Message, 0, len(v.ToolCallUpdates))
		for _, u := range v.ToolCallUpdates {
			out = append(out, d.assignToolCallUpdate(u))
		}
		return out, nil

	default:
		return nil, streampipeerr.New(streampipeerr.KindInvariantViolated,
			fmt.Sprintf("%s is not a valid downstream reply variant", msg.Kind()))
	}
}

// nextCompleteOrder allocates a fresh order index for a standalone complete
// message, closing out any open update run.
func (d *Downstream) nextCompleteOrder() int {
	idx := d.nextOrder
	d.nextOrder++
	d.nextChunk = 0
	d.identity = ""
	return idx
}

// assignUpdateHeader implements the identity-run bookkeeping shared by
// TextUpdate, ReasoningUpdate, and ToolCallUpdate: a new identity opens a new
// order index and resets the chunk counter; every update in the run shares
// that order index and consumes the next chunk index.
func (d *Downstream) assignUpdateHeader(h message.Header, identity string) message.Header {
	if identity != d.identity {
		d.currentOrder = d.nextOrder
		d.nextOrder++
		d.nextChunk = 0
		d.identity = identity
	}
	h = h.WithOrder(d.currentOrder).WithChunk(d.nextChunk)
	d.nextChunk++
	return h
}

func (d *Downstream) assignToolCallUpdate(u message.ToolCallUpdate) message.ToolCallUpdate {
	u.Header = d.assignUpdateHeader(u.Header, toolCallUpdateIdentity(u))
	return u
}

// toolCallUpdateIdentity implements spec §4.7.2's
// "tool_call_update_{tool_call_id|index|"unknown"}" rule. Index is a plain
// int (always present, zero-valued by default), so there is no "unknown"
// tier: an update without an id always takes its index.
func toolCallUpdateIdentity(u message.ToolCallUpdate) string {
	if u.ToolCallID != "" {
		return "tool_call_update_" + u.ToolCallID
	}
	return "tool_call_update_" + strconv.Itoa(u.Index)
}
