package config_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/streampipe/config"
	"goa.design/streampipe/provideradapter"
)

func TestBuildProviderAgents_OnlyEnabledAndCredentialed(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-test-key")

	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			Anthropic: config.AnthropicProviderConfig{
				Enabled:      true,
				APIKeyEnv:    "TEST_ANTHROPIC_KEY",
				DefaultModel: "claude-3-5-sonnet-20241022",
				MaxTokens:    2048,
			},
			OpenAI: config.OpenAIProviderConfig{Enabled: false},
		},
	}

	agents, err := config.BuildProviderAgents(context.Background(), cfg)
	require.NoError(t, err)
	require.Contains(t, agents, "anthropic")
	assert.NotContains(t, agents, "openai")
	assert.NotContains(t, agents, "bedrock")

	a, ok := agents["anthropic"].(*provideradapter.Anthropic)
	require.True(t, ok)
	assert.Equal(t, "claude-3-5-sonnet-20241022", a.DefaultModel)
	assert.EqualValues(t, 2048, a.MaxTokens)
}

func TestBuildProviderAgents_MissingAPIKeyEnvFails(t *testing.T) {
	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			Anthropic: config.AnthropicProviderConfig{
				Enabled:   true,
				APIKeyEnv: "NONEXISTENT_ANTHROPIC_KEY_VAR",
			},
		},
	}
	_, err := config.BuildProviderAgents(context.Background(), cfg)
	assert.Error(t, err)
}
