package registry

import "fmt"

// ConflictResolution names a built-in policy for resolving a group of
// descriptors that share a Key. See Registry.SetConflictResolution.
type ConflictResolution string

const (
	// ConflictThrow fails Build when any group has more than one descriptor.
	ConflictThrow ConflictResolution = "throw"
	// ConflictTakeFirst keeps the descriptor from the lowest-priority
	// (earliest-collected) provider.
	ConflictTakeFirst ConflictResolution = "take_first"
	// ConflictTakeLast keeps the descriptor from the highest-priority
	// (latest-collected) provider.
	ConflictTakeLast ConflictResolution = "take_last"
	// ConflictPreferMCP keeps the descriptor whose contract has ClassName set
	// (an MCP-style tool), when exactly one group member qualifies.
	ConflictPreferMCP ConflictResolution = "prefer_mcp"
	// ConflictPreferNatural keeps the descriptor whose contract has no
	// ClassName, when exactly one group member qualifies.
	ConflictPreferNatural ConflictResolution = "prefer_natural"
	// ConflictRequireExplicit always fails: conflicts must be resolved by
	// adding the function directly via AddFunction.
	ConflictRequireExplicit ConflictResolution = "require_explicit"
)

// ConflictHandler resolves a group of conflicting descriptors explicitly,
// overriding the built-in ConflictResolution policy when set.
type ConflictHandler func(group []FunctionDescriptor) (FunctionDescriptor, error)

// resolveGroup picks the winning descriptor from group according to
// resolution/handler. explicit descriptors in the group always win outright
// regardless of policy, per spec §4.8 phase 3.
func resolveGroup(group []FunctionDescriptor, resolution ConflictResolution, handler ConflictHandler) (FunctionDescriptor, error) {
	if len(group) == 1 {
		return group[0], nil
	}
	for _, d := range group {
		if d.ProviderName == explicitProviderName {
			return d, nil
		}
	}
	if handler != nil {
		return handler(group)
	}
	switch resolution {
	case ConflictTakeFirst, "":
		return group[0], nil
	case ConflictTakeLast:
		return group[len(group)-1], nil
	case ConflictPreferMCP:
		return preferBy(group, func(d FunctionDescriptor) bool { return d.Contract.ClassName != "" })
	case ConflictPreferNatural:
		return preferBy(group, func(d FunctionDescriptor) bool { return d.Contract.ClassName == "" })
	case ConflictThrow, ConflictRequireExplicit:
		return FunctionDescriptor{}, fmt.Errorf("registry: unresolved conflict for key %q across providers %v", group[0].Key(), providerNames(group))
	default:
		return FunctionDescriptor{}, fmt.Errorf("registry: unknown conflict resolution %q", resolution)
	}
}

func preferBy(group []FunctionDescriptor, match func(FunctionDescriptor) bool) (FunctionDescriptor, error) {
	var matched []FunctionDescriptor
	for _, d := range group {
		if match(d) {
			matched = append(matched, d)
		}
	}
	if len(matched) == 1 {
		return matched[0], nil
	}
	return FunctionDescriptor{}, fmt.Errorf("registry: conflict policy did not narrow to a single descriptor for key %q (matched %d)", group[0].Key(), len(matched))
}

func providerNames(group []FunctionDescriptor) []string {
	names := make([]string, 0, len(group))
	for _, d := range group {
		names = append(names, d.ProviderName)
	}
	return names
}

// explicitProviderName marks descriptors added directly via
// Registry.AddFunction rather than contributed by a FunctionProvider, so
// resolveGroup can implement "explicit always wins".
const explicitProviderName = "__explicit__"
