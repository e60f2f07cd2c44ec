// Package config loads the declarative YAML description of one pipeline
// wiring — which provider adapters are enabled, how a model id resolves to
// an ordered fallback chain, which cache backend backs the caching
// middleware, and which middlewares run in what order — and assembles it
// into a runnable agent.StreamingAgent. It realizes at runtime the same
// "describe the wiring, don't hand-assemble it" spirit the teacher's
// example/*/design packages express at codegen time; no DSL or code
// generation is involved here, only a YAML file and a builder.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type (
	// Config is the root document loaded from a pipeline YAML file.
	Config struct {
		Cache         CacheConfig         `yaml:"cache"`
		Providers     ProvidersConfig     `yaml:"providers"`
		ModelFallback ModelFallbackConfig `yaml:"model_fallback"`
		Pipeline      []string            `yaml:"pipeline"`
		// Monitor wraps the fully composed chain in agent.Monitored, logging
		// stalled-producer warnings/errors per spec §5's default monitoring
		// task.
		Monitor bool `yaml:"monitor"`
	}

	// CacheConfig selects and parameterizes the cache.Store backing
	// cache.Middleware, when "cache" appears in Pipeline.
	CacheConfig struct {
		// Backend is "memory" or "redis". Empty means "memory".
		Backend        string `yaml:"backend"`
		RedisAddr      string `yaml:"redis_addr"`
		RedisPassword  string `yaml:"redis_password"`
		RedisDB        int    `yaml:"redis_db"`
		RedisKeyPrefix string `yaml:"redis_key_prefix"`
	}

	// ProvidersConfig enumerates the provideradapter leaves this pipeline may
	// instantiate. A provider with Enabled false (or absent from the file) is
	// never constructed, so an incomplete credential set doesn't block
	// startup.
	ProvidersConfig struct {
		Anthropic AnthropicProviderConfig `yaml:"anthropic"`
		OpenAI    OpenAIProviderConfig    `yaml:"openai"`
		Bedrock   BedrockProviderConfig   `yaml:"bedrock"`
	}

	// AnthropicProviderConfig parameterizes a provideradapter.Anthropic leaf.
	AnthropicProviderConfig struct {
		Enabled      bool    `yaml:"enabled"`
		APIKeyEnv    string  `yaml:"api_key_env"`
		DefaultModel string  `yaml:"default_model"`
		MaxTokens    int64   `yaml:"max_tokens"`
		Temperature  float64 `yaml:"temperature"`
	}

	// OpenAIProviderConfig parameterizes a provideradapter.OpenAI leaf.
	OpenAIProviderConfig struct {
		Enabled      bool    `yaml:"enabled"`
		APIKeyEnv    string  `yaml:"api_key_env"`
		DefaultModel string  `yaml:"default_model"`
		Temperature  float64 `yaml:"temperature"`
	}

	// BedrockProviderConfig parameterizes a provideradapter.Bedrock leaf. AWS
	// credentials are resolved through the default SDK credential chain
	// (environment, shared config, instance role); there is no api_key_env
	// here because the Bedrock runtime client never takes a bare API key.
	BedrockProviderConfig struct {
		Enabled      bool    `yaml:"enabled"`
		Region       string  `yaml:"region"`
		DefaultModel string  `yaml:"default_model"`
		MaxTokens    int32   `yaml:"max_tokens"`
		Temperature  float32 `yaml:"temperature"`
	}

	// ModelFallbackConfig is the crosscut.ModelFallback wiring table: for
	// each model id a caller may request, Chains names the ordered list of
	// provider keys ("anthropic", "openai", "bedrock") to try.
	ModelFallbackConfig struct {
		Chains         map[string][]string `yaml:"chains"`
		DefaultTryLast bool                `yaml:"default_try_last"`
		Default        string              `yaml:"default"`
	}
)

// Load reads and parses the pipeline configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports whether cfg describes a buildable pipeline, catching
// configuration mistakes before Build attempts to wire anything.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("config: cache.redis_addr is required when cache.backend is \"redis\"")
	}
	for _, step := range c.Pipeline {
		if !knownPipelineSteps[step] {
			return fmt.Errorf("config: unknown pipeline step %q", step)
		}
	}
	for modelID, chain := range c.ModelFallback.Chains {
		for _, name := range chain {
			if !knownProviders[name] {
				return fmt.Errorf("config: model_fallback.chains[%q] references unknown provider %q", modelID, name)
			}
		}
	}
	if c.ModelFallback.Default != "" && !knownProviders[c.ModelFallback.Default] {
		return fmt.Errorf("config: model_fallback.default references unknown provider %q", c.ModelFallback.Default)
	}
	return nil
}

var knownProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"bedrock":   true,
}

var knownPipelineSteps = map[string]bool{
	"options_override": true,
	"todo_context":     true,
	"cache":            true,
	"functioncall":     true,
	"naturaltool":      true,
	"jsonfrag":         true,
	"updatejoin":       true,
	"msgtransform":     true,
}
