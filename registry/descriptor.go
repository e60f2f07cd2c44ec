package registry

import (
	"context"
	"encoding/json"
)

// Handler executes a function call against JSON-encoded arguments and
// returns a JSON-encoded result. Handlers are invoked by toolexec.Execute,
// never directly by the registry.
type Handler func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// FunctionDescriptor bundles a FunctionContract with its handler and
// provenance. Key mirrors FunctionContract.Key and is used as the grouping
// key during conflict resolution.
type FunctionDescriptor struct {
	Contract     FunctionContract
	Handler      Handler
	ProviderName string
	IsStateful   bool
}

// Key returns the grouping key for this descriptor, delegating to the
// contract.
func (d FunctionDescriptor) Key() string {
	return d.Contract.Key()
}

// FunctionProvider is a named, prioritized source of function descriptors.
// Lower Priority values are considered first during conflict resolution (see
// Registry.Build phase 1).
type FunctionProvider struct {
	ProviderName string
	Priority     int
	Functions    []FunctionDescriptor
}
