package jsonfrag

import (
	"reflect"
	"strconv"

	"goa.design/streampipe/message"
)

// generator accumulates the raw argument fragments for one tool call and
// turns them into advisory message.JSONFragmentUpdate values as they
// resolve. It is not safe for concurrent use; callers serialize feeds
// through a single middleware instance per spec §8's concurrency note.
type generator struct {
	buf      []byte
	resolved map[string]any
	strLen   map[string]int
	done     bool
}

func newGenerator() *generator {
	return &generator{resolved: map[string]any{}, strLen: map[string]int{}}
}

// feed appends delta to the accumulated argument buffer and returns any new
// fragment updates it produces.
func (g *generator) feed(delta string) []message.JSONFragmentUpdate {
	if g.done || delta == "" {
		return nil
	}
	g.buf = append(g.buf, delta...)

	resolved, partial, complete := scanPartialObject(string(g.buf))

	var out []message.JSONFragmentUpdate
	for key, val := range resolved {
		if prev, ok := g.resolved[key]; ok && reflect.DeepEqual(prev, val) {
			continue
		}
		if s, ok := val.(string); ok {
			if prevLen, streamed := g.strLen[key]; streamed && len(s) > prevLen {
				out = append(out, message.JSONFragmentUpdate{Path: key, Op: "append", Value: s[prevLen:]})
				g.strLen[key] = len(s)
			}
		}
		g.resolved[key] = val
		out = append(out, message.JSONFragmentUpdate{Path: key, Op: "set", Value: val})
	}
	for key, s := range partial {
		prevLen := g.strLen[key]
		if len(s) <= prevLen {
			continue
		}
		out = append(out, message.JSONFragmentUpdate{Path: key, Op: "append", Value: s[prevLen:]})
		g.strLen[key] = len(s)
	}
	if complete {
		g.done = true
		out = append(out, message.JSONFragmentUpdate{Path: "", Op: "complete", Value: g.resolved})
	}
	return out
}

// identityKey computes the generator key for a tool call update per spec
// §4.6: id:{tool_call_id} if present, else index:{index}. Index is a plain
// int (always present, zero-valued by default), so there is no
// name:{function_name} tier: a ToolCallUpdate without an id always keys by
// its index.
func identityKey(u message.ToolCallUpdate) string {
	if u.ToolCallID != "" {
		return "id:" + u.ToolCallID
	}
	return "index:" + strconv.Itoa(u.Index)
}
