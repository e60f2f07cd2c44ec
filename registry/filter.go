package registry

import "path/filepath"

// FilterResult records why a descriptor was rejected during Build's filtering
// phase. Build discards these after filtering; no exported method returns
// them.
type FilterResult struct {
	Descriptor FunctionDescriptor
	Reason     string
}

// Filter configures the inclusion rules applied before conflict resolution.
// Rules are applied in the order named by spec §4.8 phase 2: provider-
// disabled, provider block list, provider allow list, global block list,
// global allow list. An empty Filter admits everything.
type Filter struct {
	Enabled bool

	// DisabledProviders names providers whose functions are dropped entirely.
	DisabledProviders map[string]bool

	// ProviderBlockList maps provider name to glob patterns (matched against
	// function name) that are rejected for that provider.
	ProviderBlockList map[string][]string
	// ProviderAllowList maps provider name to glob patterns that are the only
	// ones admitted for that provider. A provider absent from this map is
	// unaffected by it.
	ProviderAllowList map[string][]string

	// GlobalBlockList/GlobalAllowList apply across all providers, after the
	// provider-scoped lists.
	GlobalBlockList []string
	GlobalAllowList []string
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// apply runs descriptors through the filter phases and returns the survivors
// plus a FilterResult for every rejection, in the order evaluated.
func (f Filter) apply(descs []FunctionDescriptor) ([]FunctionDescriptor, []FilterResult) {
	if !f.Enabled {
		return descs, nil
	}
	var kept []FunctionDescriptor
	var rejected []FilterResult
	for _, d := range descs {
		name := d.Contract.Name
		if f.DisabledProviders[d.ProviderName] {
			rejected = append(rejected, FilterResult{d, "provider disabled"})
			continue
		}
		if matchAny(f.ProviderBlockList[d.ProviderName], name) {
			rejected = append(rejected, FilterResult{d, "provider block list"})
			continue
		}
		if allow, ok := f.ProviderAllowList[d.ProviderName]; ok && !matchAny(allow, name) {
			rejected = append(rejected, FilterResult{d, "provider allow list"})
			continue
		}
		if matchAny(f.GlobalBlockList, name) {
			rejected = append(rejected, FilterResult{d, "global block list"})
			continue
		}
		if len(f.GlobalAllowList) > 0 && !matchAny(f.GlobalAllowList, name) {
			rejected = append(rejected, FilterResult{d, "global allow list"})
			continue
		}
		kept = append(kept, d)
	}
	return kept, rejected
}
