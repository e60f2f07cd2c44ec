package config

import (
	"fmt"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/crosscut"
)

// BuildModelFallback assembles a crosscut.ModelFallback leaf from
// cfg.ModelFallback, resolving each configured provider name against agents
// (as produced by BuildProviderAgents). An unresolved provider name fails
// fast at build time rather than silently producing an empty chain.
func BuildModelFallback(cfg *Config, agents map[string]agent.Agent) (*crosscut.ModelFallback, error) {
	chains := make(map[string][]agent.Agent, len(cfg.ModelFallback.Chains))
	for modelID, names := range cfg.ModelFallback.Chains {
		chain := make([]agent.Agent, 0, len(names))
		for _, name := range names {
			a, ok := agents[name]
			if !ok {
				return nil, fmt.Errorf("config: model_fallback.chains[%q] references provider %q, which is not enabled", modelID, name)
			}
			chain = append(chain, a)
		}
		chains[modelID] = chain
	}

	mf := crosscut.NewModelFallback(chains)
	mf.TryDefaultLast = cfg.ModelFallback.DefaultTryLast
	if cfg.ModelFallback.Default != "" {
		def, ok := agents[cfg.ModelFallback.Default]
		if !ok {
			return nil, fmt.Errorf("config: model_fallback.default references provider %q, which is not enabled", cfg.ModelFallback.Default)
		}
		mf.Default = def
	}
	return mf, nil
}
