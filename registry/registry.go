package registry

import (
	"fmt"
	"sort"
)

// Registry accumulates FunctionProviders and directly-added functions, then
// resolves them into a flat, conflict-free, name-sanitized function set via
// Build.
//
// Registry is single-threaded during configuration: AddProvider, AddFunction,
// and the Set* option methods must all complete before the first call to
// Build or Validate. Once configured, a Registry is read many times
// concurrently and never mutated again (see spec §5).
type Registry struct {
	providers []FunctionProvider
	explicit  []FunctionDescriptor

	filter Filter

	conflictResolution ConflictResolution
	conflictHandler    ConflictHandler

	customPrefix              string
	usePrefixOnlyForCollision bool
}

// New creates an empty Registry. Prefixing defaults to "only on collision"
// (spec §4.8 phase 4 default) and conflicts default to ConflictTakeFirst.
func New() *Registry {
	return &Registry{
		conflictResolution:        ConflictTakeFirst,
		usePrefixOnlyForCollision: true,
	}
}

// AddProvider registers a FunctionProvider. Providers contribute descriptors
// in ascending Priority order during Build (lower Priority is collected
// first).
func (r *Registry) AddProvider(p FunctionProvider) {
	r.providers = append(r.providers, p)
}

// AddFunction registers a function directly. Explicit functions always win
// conflict resolution against anything contributed by a FunctionProvider,
// per spec §4.8 phase 3.
func (r *Registry) AddFunction(d FunctionDescriptor) {
	d.ProviderName = explicitProviderName
	r.explicit = append(r.explicit, d)
}

// SetFilter installs the inclusion rules applied before conflict resolution.
func (r *Registry) SetFilter(f Filter) {
	r.filter = f
}

// SetConflictResolution installs the built-in policy used when no
// ConflictHandler is set.
func (r *Registry) SetConflictResolution(res ConflictResolution) {
	r.conflictResolution = res
}

// SetConflictHandler installs a custom resolver, taking precedence over
// SetConflictResolution for every group with more than one member.
func (r *Registry) SetConflictHandler(h ConflictHandler) {
	r.conflictHandler = h
}

// SetCustomPrefix overrides the provider-name prefix used for colliding
// function names with a fixed string.
func (r *Registry) SetCustomPrefix(prefix string) {
	r.customPrefix = prefix
}

// SetPrefixAll configures Build to prefix every registered function name with
// its provider, not just names involved in a collision.
func (r *Registry) SetPrefixAll() {
	r.usePrefixOnlyForCollision = false
}

// collect gathers descriptors from providers (ascending priority) followed by
// explicitly-added functions, per spec §4.8 phase 1.
func (r *Registry) collect() []FunctionDescriptor {
	sorted := make([]FunctionProvider, len(r.providers))
	copy(sorted, r.providers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	var all []FunctionDescriptor
	for _, p := range sorted {
		all = append(all, p.Functions...)
	}
	all = append(all, r.explicit...)
	return all
}

// groupByKey partitions descs into ordered groups sharing the same Key,
// preserving first-seen group order.
func groupByKey(descs []FunctionDescriptor) ([]string, map[string][]FunctionDescriptor) {
	var order []string
	groups := map[string][]FunctionDescriptor{}
	for _, d := range descs {
		k := d.Key()
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], d)
	}
	return order, groups
}

// Build resolves the registered providers and explicit functions into a final
// contract list plus a handler map keyed by the (possibly prefixed)
// registered name, following spec §4.8 phases 1-5.
func (r *Registry) Build() ([]FunctionContract, map[string]Handler, error) {
	collected := r.collect()
	filtered, _ := r.filter.apply(collected)

	order, groups := groupByKey(filtered)
	resolved := make([]FunctionDescriptor, 0, len(order))
	for _, k := range order {
		d, err := resolveGroup(groups[k], r.conflictResolution, r.conflictHandler)
		if err != nil {
			return nil, nil, err
		}
		resolved = append(resolved, d)
	}

	byName := map[string][]FunctionDescriptor{}
	var nameOrder []string
	for _, d := range resolved {
		name := d.Contract.Name
		if _, ok := byName[name]; !ok {
			nameOrder = append(nameOrder, name)
		}
		byName[name] = append(byName[name], d)
	}

	contracts := make([]FunctionContract, 0, len(resolved))
	handlers := make(map[string]Handler, len(resolved))
	for _, name := range nameOrder {
		members := byName[name]
		collision := len(members) > 1
		for _, d := range members {
			registeredName := d.Contract.Name
			if collision || !r.usePrefixOnlyForCollision {
				prefix := r.customPrefix
				if prefix == "" {
					prefix = d.ProviderName
				}
				registeredName = combinePrefixedName(sanitizePrefix(prefix), sanitizeName(d.Contract.Name))
			} else {
				registeredName = sanitizeName(d.Contract.Name)
			}
			if _, exists := handlers[registeredName]; exists {
				return nil, nil, fmt.Errorf("registry: sanitized name collision on %q after prefixing", registeredName)
			}
			contract := d.Contract.Clone()
			contract.Name = registeredName
			contracts = append(contracts, contract)
			handlers[registeredName] = d.Handler
		}
	}
	return contracts, handlers, nil
}

// ValidationIssue describes one problem found by Validate.
type ValidationIssue struct {
	Message string
}

// Validate runs a dry-run Build and additionally flags configuration-level
// issues that Build itself tolerates: a custom prefix that is not already in
// sanitized form or is longer than maxPrefixLength, or, when SetPrefixAll is
// in effect without a custom prefix, provider names longer than
// maxPrefixLength (which are truncated when prefixing).
func (r *Registry) Validate() ([]ValidationIssue, error) {
	var issues []ValidationIssue
	if r.customPrefix != "" {
		if sanitizePrefix(r.customPrefix) != r.customPrefix {
			issues = append(issues, ValidationIssue{Message: fmt.Sprintf("custom prefix %q is not a valid prefix (expected %q)", r.customPrefix, sanitizePrefix(r.customPrefix))})
		}
		if len(r.customPrefix) > maxPrefixLength {
			issues = append(issues, ValidationIssue{Message: fmt.Sprintf("custom prefix %q exceeds %d characters", r.customPrefix, maxPrefixLength)})
		}
	}
	if !r.usePrefixOnlyForCollision && r.customPrefix == "" {
		for _, p := range r.providers {
			if len(p.ProviderName) > maxPrefixLength {
				issues = append(issues, ValidationIssue{Message: fmt.Sprintf("provider name %q exceeds %d characters and will be truncated when prefixing all functions", p.ProviderName, maxPrefixLength)})
			}
		}
	}
	if _, _, err := r.Build(); err != nil {
		return issues, err
	}
	return issues, nil
}
