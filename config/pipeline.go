package config

import (
	"context"
	"fmt"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/cache"
	"goa.design/streampipe/crosscut"
	"goa.design/streampipe/functioncall"
	"goa.design/streampipe/jsonfrag"
	"goa.design/streampipe/msgtransform"
	"goa.design/streampipe/naturaltool"
	"goa.design/streampipe/registry"
	"goa.design/streampipe/telemetry"
	"goa.design/streampipe/toolexec"
	"goa.design/streampipe/updatejoin"
)

// Deps carries the runtime-supplied collaborators Pipeline steps need that
// cannot come from a YAML file: the function contracts and handlers this
// process advertises, the options override to layer onto every call, and
// the text callback for the outstanding-work context injector. Any field
// left zero disables the corresponding pipeline step's runtime inputs; the
// step itself is still only included when named in cfg.Pipeline. The one
// exception is TodoContextText: naming "todo_context" in cfg.Pipeline while
// it is nil makes BuildChain return an error.
type Deps struct {
	Contracts       []registry.FunctionContract
	Fns             toolexec.FnMap
	Callback        *toolexec.Callback
	OptionsOverride *agent.Options
	TodoContextText func(ctx context.Context) string
	Logger          telemetry.Logger
}

func (d Deps) logger() telemetry.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return telemetry.NewNoopLogger()
}

// Build assembles the full pipeline: a crosscut.ModelFallback leaf over
// cfg.Providers/cfg.ModelFallback, wrapped by the middlewares named in
// cfg.Pipeline in order, each constructed from cfg and deps.
func Build(ctx context.Context, cfg *Config, deps Deps) (agent.StreamingAgent, error) {
	providerAgents, err := BuildProviderAgents(ctx, cfg)
	if err != nil {
		return nil, err
	}
	leaf, err := BuildModelFallback(cfg, providerAgents)
	if err != nil {
		return nil, err
	}
	chained, err := BuildChain(cfg, leaf, deps)
	if err != nil {
		return nil, err
	}
	if cfg.Monitor {
		return agent.Monitored(chained, deps.logger()), nil
	}
	return chained, nil
}

// BuildChain wraps leaf with the middlewares named in cfg.Pipeline, in
// order, so the last-named step runs first on every call (matching
// agent.Chain's right-associative composition rule).
func BuildChain(cfg *Config, leaf agent.StreamingAgent, deps Deps) (agent.StreamingAgent, error) {
	mws := make([]agent.StreamingMiddleware, 0, len(cfg.Pipeline))
	for _, step := range cfg.Pipeline {
		mw, err := buildStep(cfg, step, deps)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return agent.Chain(leaf, mws...), nil
}

func buildStep(cfg *Config, step string, deps Deps) (agent.StreamingMiddleware, error) {
	switch step {
	case "options_override":
		return crosscut.NewOptionsOverride(deps.OptionsOverride), nil
	case "todo_context":
		if deps.TodoContextText == nil {
			return nil, fmt.Errorf("config: pipeline step %q requires Deps.TodoContextText", step)
		}
		return crosscut.NewTodoContext(deps.TodoContextText), nil
	case "cache":
		return cache.New(BuildCacheStore(cfg)), nil
	case "functioncall":
		mw := functioncall.New(deps.Contracts, deps.Fns)
		mw.Callback = deps.Callback
		return mw, nil
	case "naturaltool":
		return naturaltool.New(deps.Contracts), nil
	case "jsonfrag":
		return jsonfrag.New(), nil
	case "updatejoin":
		return updatejoin.New(), nil
	case "msgtransform":
		return msgtransform.New(), nil
	default:
		return nil, fmt.Errorf("config: unknown pipeline step %q", step)
	}
}
