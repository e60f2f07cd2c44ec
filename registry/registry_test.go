package registry_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/streampipe/registry"
)

func noopHandler(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func descriptor(provider, name string) registry.FunctionDescriptor {
	return registry.FunctionDescriptor{
		Contract:     registry.FunctionContract{Name: name},
		Handler:      noopHandler,
		ProviderName: provider,
	}
}

func TestRegistry_BuildWithNoCollisionsLeavesNamesUnprefixed(t *testing.T) {
	r := registry.New()
	r.AddProvider(registry.FunctionProvider{
		ProviderName: "search",
		Priority:     0,
		Functions:    []registry.FunctionDescriptor{descriptor("search", "lookup")},
	})

	contracts, handlers, err := r.Build()
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "lookup", contracts[0].Name)
	assert.Contains(t, handlers, "lookup")
}

func TestRegistry_BuildPrefixesOnCollisionByDefault(t *testing.T) {
	// Key() includes ClassName, so two descriptors with the same Name but
	// different ClassName form separate conflict groups that still collide
	// on the post-resolution registered name, forcing Build to prefix both.
	r2 := registry.New()
	r2.AddProvider(registry.FunctionProvider{ProviderName: "alpha", Priority: 0, Functions: []registry.FunctionDescriptor{
		{Contract: registry.FunctionContract{Name: "lookup", ClassName: "a"}, Handler: noopHandler, ProviderName: "alpha"},
	}})
	r2.AddProvider(registry.FunctionProvider{ProviderName: "beta", Priority: 1, Functions: []registry.FunctionDescriptor{
		{Contract: registry.FunctionContract{Name: "lookup", ClassName: "b"}, Handler: noopHandler, ProviderName: "beta"},
	}})

	contracts, handlers, err := r2.Build()
	require.NoError(t, err)
	require.Len(t, contracts, 2)

	names := make([]string, len(contracts))
	for i, c := range contracts {
		names[i] = c.Name
	}
	assert.ElementsMatch(t, []string{"alpha-lookup", "beta-lookup"}, names)
	assert.Contains(t, handlers, "alpha-lookup")
	assert.Contains(t, handlers, "beta-lookup")
}

func TestRegistry_SamePriorityGroupDefaultsToTakeFirst(t *testing.T) {
	r := registry.New()
	r.AddProvider(registry.FunctionProvider{ProviderName: "first", Priority: 0, Functions: []registry.FunctionDescriptor{
		{Contract: registry.FunctionContract{Name: "lookup", Description: "first wins"}, Handler: noopHandler, ProviderName: "first"},
	}})
	r.AddProvider(registry.FunctionProvider{ProviderName: "second", Priority: 1, Functions: []registry.FunctionDescriptor{
		{Contract: registry.FunctionContract{Name: "lookup", Description: "second loses"}, Handler: noopHandler, ProviderName: "second"},
	}})

	contracts, _, err := r.Build()
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "first wins", contracts[0].Description)
}

func TestRegistry_ExplicitFunctionAlwaysWinsConflict(t *testing.T) {
	r := registry.New()
	r.AddProvider(registry.FunctionProvider{ProviderName: "provider", Priority: 0, Functions: []registry.FunctionDescriptor{
		{Contract: registry.FunctionContract{Name: "lookup", Description: "from provider"}, Handler: noopHandler, ProviderName: "provider"},
	}})
	r.AddFunction(registry.FunctionDescriptor{
		Contract: registry.FunctionContract{Name: "lookup", Description: "explicit override"},
		Handler:  noopHandler,
	})

	contracts, _, err := r.Build()
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "explicit override", contracts[0].Description)
}

func TestRegistry_ConflictThrowFailsOnMultipleDescriptors(t *testing.T) {
	r := registry.New()
	r.SetConflictResolution(registry.ConflictThrow)
	r.AddProvider(registry.FunctionProvider{ProviderName: "a", Priority: 0, Functions: []registry.FunctionDescriptor{descriptor("a", "lookup")}})
	r.AddProvider(registry.FunctionProvider{ProviderName: "b", Priority: 1, Functions: []registry.FunctionDescriptor{descriptor("b", "lookup")}})

	_, _, err := r.Build()
	assert.Error(t, err)
}

func TestRegistry_ConflictPreferMCPPicksClassNamedDescriptor(t *testing.T) {
	r := registry.New()
	r.SetConflictResolution(registry.ConflictPreferMCP)
	r.AddProvider(registry.FunctionProvider{ProviderName: "a", Priority: 0, Functions: []registry.FunctionDescriptor{
		{Contract: registry.FunctionContract{Name: "lookup"}, Handler: noopHandler, ProviderName: "a"},
	}})
	r.AddProvider(registry.FunctionProvider{ProviderName: "b", Priority: 1, Functions: []registry.FunctionDescriptor{
		{Contract: registry.FunctionContract{Name: "lookup", ClassName: "mcp-tool"}, Handler: noopHandler, ProviderName: "b"},
	}})

	contracts, _, err := r.Build()
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "mcp-tool", contracts[0].ClassName)
}

func TestRegistry_FilterDropsDisabledProvider(t *testing.T) {
	r := registry.New()
	r.SetFilter(registry.Filter{
		Enabled:           true,
		DisabledProviders: map[string]bool{"blocked": true},
	})
	r.AddProvider(registry.FunctionProvider{ProviderName: "blocked", Priority: 0, Functions: []registry.FunctionDescriptor{descriptor("blocked", "lookup")}})
	r.AddProvider(registry.FunctionProvider{ProviderName: "ok", Priority: 1, Functions: []registry.FunctionDescriptor{descriptor("ok", "fetch")}})

	contracts, _, err := r.Build()
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "fetch", contracts[0].Name)
}

func TestRegistry_SetPrefixAllPrefixesEveryFunction(t *testing.T) {
	r := registry.New()
	r.SetPrefixAll()
	r.AddProvider(registry.FunctionProvider{ProviderName: "search", Priority: 0, Functions: []registry.FunctionDescriptor{descriptor("search", "lookup")}})

	contracts, _, err := r.Build()
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "search-lookup", contracts[0].Name)
}

func TestRegistry_PrefixedCollisionNameStaysWithinMaxLength(t *testing.T) {
	longProvider := "this-is-a-very-long-provider-name-well-past-thirty-two-characters"
	longFunctionName := "this_is_a_very_long_function_name_that_is_itself_close_to_the_sixty_four_character_bound"

	r := registry.New()
	r.AddProvider(registry.FunctionProvider{ProviderName: longProvider, Priority: 0, Functions: []registry.FunctionDescriptor{
		{Contract: registry.FunctionContract{Name: longFunctionName, ClassName: "a"}, Handler: noopHandler, ProviderName: longProvider},
	}})
	r.AddProvider(registry.FunctionProvider{ProviderName: "short", Priority: 1, Functions: []registry.FunctionDescriptor{
		{Contract: registry.FunctionContract{Name: longFunctionName, ClassName: "b"}, Handler: noopHandler, ProviderName: "short"},
	}})

	contracts, handlers, err := r.Build()
	require.NoError(t, err)
	require.Len(t, contracts, 2)

	for _, c := range contracts {
		assert.LessOrEqual(t, len(c.Name), 64, "registered name %q exceeds the 64-char bound", c.Name)
		assert.Contains(t, handlers, c.Name)
	}
	assert.NotEqual(t, contracts[0].Name, contracts[1].Name)
}

func TestRegistry_SanitizesInvalidNameCharacters(t *testing.T) {
	r := registry.New()
	r.AddProvider(registry.FunctionProvider{ProviderName: "search", Priority: 0, Functions: []registry.FunctionDescriptor{
		{Contract: registry.FunctionContract{Name: "look up!!"}, Handler: noopHandler, ProviderName: "search"},
	}})

	contracts, handlers, err := r.Build()
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "look_up", contracts[0].Name)
	assert.Contains(t, handlers, "look_up")
}

func TestRegistry_ValidateFlagsInvalidCustomPrefix(t *testing.T) {
	r := registry.New()
	r.SetCustomPrefix("not valid!")

	issues, err := r.Validate()
	require.NoError(t, err)
	assert.NotEmpty(t, issues)
}

func TestFunctionContract_JSONSchemaMarksRequiredParameters(t *testing.T) {
	c := registry.FunctionContract{
		Name: "lookup",
		Parameters: []registry.ParameterContract{
			{Name: "query", IsRequired: true, Schema: json.RawMessage(`{"type":"string"}`)},
			{Name: "limit", IsRequired: false},
		},
	}

	var schema struct {
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	require.NoError(t, json.Unmarshal(c.JSONSchema(), &schema))
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"query"}, schema.Required)
	assert.JSONEq(t, `{"type":"string"}`, string(schema.Properties["query"]))
	assert.JSONEq(t, `{}`, string(schema.Properties["limit"]))
}

func TestFunctionContract_KeyIncludesClassNameWhenPresent(t *testing.T) {
	withClass := registry.FunctionContract{Name: "lookup", ClassName: "tool"}
	withoutClass := registry.FunctionContract{Name: "lookup"}

	assert.Equal(t, "tool-lookup", withClass.Key())
	assert.Equal(t, "lookup", withoutClass.Key())
}
