package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_KeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  base_url: http://localhost:8080/v1
  model: test-model
search:
  provider: searxng
  searxng:
    base_url: http://localhost:8888
concurrency:
  rpm: 120
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "test-model", cfg.LLM.Model)
	assert.Equal(t, "searxng", cfg.Search.Provider)
	assert.Equal(t, 30, cfg.Search.SearXNG.Timeout)
	assert.Equal(t, 120, cfg.Concurrency.RPM)
	assert.Equal(t, 1, cfg.Concurrency.QPS)
	assert.Equal(t, "outputs", cfg.Output.Dir)
	assert.Equal(t, 3, cfg.Research.MaxSubQueries)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0o644))
	_, err = LoadConfig(path)
	require.Error(t, err)
}
