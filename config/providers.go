package config

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/provideradapter"
)

// BuildProviderAgents constructs one provideradapter leaf per enabled entry
// in cfg.Providers, keyed by the same provider name used in
// ModelFallbackConfig.Chains ("anthropic", "openai", "bedrock"). A provider
// left disabled is simply absent from the result; BuildModelFallback then
// rejects any fallback chain that names it. An enabled provider whose
// api_key_env is empty or names an unset environment variable makes this
// function return an error.
func BuildProviderAgents(ctx context.Context, cfg *Config) (map[string]agent.Agent, error) {
	out := make(map[string]agent.Agent, 3)

	if p := cfg.Providers.Anthropic; p.Enabled {
		apiKey, err := requireEnv(p.APIKeyEnv)
		if err != nil {
			return nil, fmt.Errorf("config: anthropic provider: %w", err)
		}
		maxTokens := p.MaxTokens
		if maxTokens <= 0 {
			maxTokens = 4096
		}
		a := provideradapter.NewAnthropicFromAPIKey(apiKey, p.DefaultModel, maxTokens)
		a.Temperature = p.Temperature
		out["anthropic"] = a
	}

	if p := cfg.Providers.OpenAI; p.Enabled {
		apiKey, err := requireEnv(p.APIKeyEnv)
		if err != nil {
			return nil, fmt.Errorf("config: openai provider: %w", err)
		}
		o := provideradapter.NewOpenAIFromAPIKey(apiKey, p.DefaultModel)
		o.Temperature = p.Temperature
		out["openai"] = o
	}

	if p := cfg.Providers.Bedrock; p.Enabled {
		var opts []func(*awsconfig.LoadOptions) error
		if p.Region != "" {
			opts = append(opts, awsconfig.WithRegion(p.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("config: bedrock provider: load aws config: %w", err)
		}
		runtime := bedrockruntime.NewFromConfig(awsCfg)
		b := provideradapter.NewBedrock(runtime, p.DefaultModel)
		b.MaxTokens = p.MaxTokens
		b.Temperature = p.Temperature
		out["bedrock"] = b
	}

	return out, nil
}

func requireEnv(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("api_key_env is required")
	}
	val := os.Getenv(name)
	if val == "" {
		return "", fmt.Errorf("environment variable %s is unset", name)
	}
	return val, nil
}
