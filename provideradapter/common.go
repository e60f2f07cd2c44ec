// Package provideradapter implements agent.StreamingAgent over real model
// provider SDKs, giving the otherwise-abstract agent.Agent interface at
// least one concrete leaf per provider so crosscut.ModelFallback has
// something genuine to fall back between (spec §4.10/§4.11).
package provideradapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/registry"
)

// resolveModelID honors an explicit per-call model override before falling
// back to the adapter's configured default, mirroring every provider
// client's Request.Model-takes-precedence rule.
func resolveModelID(opts *agent.Options, fallback string) string {
	if opts != nil && opts.ModelID != "" {
		return opts.ModelID
	}
	return fallback
}

// newToolCallID mints a fresh correlation id for a synthesized tool call
// whose provider response omitted one, matching toolexec/functioncall's
// uuid-on-every-synthesized-call convention.
func newToolCallID() string {
	return uuid.NewString()
}

// sendItem forwards item on out, honoring ctx cancellation. It reports
// whether the send completed.
func sendItem(ctx context.Context, out chan<- agent.StreamItem, item agent.StreamItem) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- item:
		return true
	}
}

// functionSchema assembles the provider-agnostic JSON-Schema body for one
// function contract, used by every adapter's tool-declaration encoder.
func functionSchema(fn registry.FunctionContract) []byte {
	return fn.JSONSchema()
}

// sanitizeToolName maps a canonical function name (dot-separated namespaces,
// e.g. "toolset.tool") to characters every provider in this package accepts
// ([a-zA-Z0-9_-]+, <=64 chars), replacing '.' with '_' and any other
// disallowed rune with '_'. Names already within bounds pass through
// unchanged so the common case stays allocation-free-ish and readable in
// provider consoles.
func sanitizeToolName(name string) string {
	if name == "" {
		return name
	}
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r == '.':
			out = append(out, '_')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	sanitized := string(out)
	const maxLen = 64
	if len(sanitized) <= maxLen {
		return sanitized
	}
	sum := sha256.Sum256([]byte(name))
	suffix := hex.EncodeToString(sum[:])[:8]
	return sanitized[:maxLen-9] + "_" + suffix
}

// toolNameMaps builds the canonical<->provider-sanitized name translation
// tables shared by every adapter's tool encoder and response decoder.
func toolNameMaps(fns []registry.FunctionContract) (canonToProv, provToCanon map[string]string, err error) {
	canonToProv = make(map[string]string, len(fns))
	provToCanon = make(map[string]string, len(fns))
	for _, fn := range fns {
		if fn.Name == "" {
			continue
		}
		sanitized := sanitizeToolName(fn.Name)
		if prev, ok := provToCanon[sanitized]; ok && prev != fn.Name {
			return nil, nil, fmt.Errorf("provideradapter: function name %q sanitizes to %q which collides with %q", fn.Name, sanitized, prev)
		}
		canonToProv[fn.Name] = sanitized
		provToCanon[sanitized] = fn.Name
	}
	return canonToProv, provToCanon, nil
}

// canonicalToolName maps a provider-reported tool name back to its
// canonical registry name, falling back to the raw provider name when the
// model invoked a tool outside the current reverse map (a hallucinated or
// stale tool reference); the function-call middleware turns the resulting
// unresolved name into an "unknown tool" result on the next turn.
func canonicalToolName(raw string, provToCanon map[string]string) string {
	if canonical, ok := provToCanon[raw]; ok {
		return canonical
	}
	return raw
}
