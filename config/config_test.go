package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/streampipe/config"
)

const validYAML = `
cache:
  backend: memory
providers:
  anthropic:
    enabled: true
    api_key_env: TEST_ANTHROPIC_KEY
    default_model: claude-3-5-sonnet-20241022
    max_tokens: 4096
model_fallback:
  default_try_last: true
  chains:
    claude-3-5-sonnet-20241022:
      - anthropic
pipeline:
  - options_override
  - cache
  - functioncall
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeTemp(t, validYAML)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Providers.Anthropic.Enabled)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Providers.Anthropic.DefaultModel)
	assert.Equal(t, []string{"anthropic"}, cfg.ModelFallback.Chains["claude-3-5-sonnet-20241022"])
	assert.Equal(t, []string{"options_override", "cache", "functioncall"}, cfg.Pipeline)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_UnknownPipelineStep(t *testing.T) {
	path := writeTemp(t, `
pipeline:
  - not_a_real_step
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_UnknownFallbackProvider(t *testing.T) {
	path := writeTemp(t, `
model_fallback:
  chains:
    some-model:
      - not_a_real_provider
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_RedisBackendRequiresAddr(t *testing.T) {
	path := writeTemp(t, `
cache:
  backend: redis
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_UnknownCacheBackend(t *testing.T) {
	path := writeTemp(t, `
cache:
  backend: memcached
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}
