package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	path := writeConfig(t, "server_addr: \":9090\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, time.Second, cfg.LLM.Backoff())
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout())
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "data/proposals", cfg.Storage.Dir)
	assert.Equal(t, "data/exports", cfg.Export.Dir)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	t.Setenv("PROPOSAL_LLM_MODEL", "gemini-2.0-flash")
	t.Setenv("GEMINI_API_KEY", "gm-key")
	path := writeConfig(t, `
llm:
  provider: gemini
  model: gemini-1.5-pro
  temperature: 0.7
  max_retries: 5
  backoff_seconds: 0.5
storage:
  driver: sqlite
  dsn: /tmp/proposals.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, "gm-key", cfg.LLM.APIKey)
	assert.Equal(t, 5, cfg.LLM.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.LLM.Backoff())
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/proposals.db", cfg.Storage.DSN)

	s := cfg.LLM.Settings()
	assert.Equal(t, "gemini-2.0-flash", s.Model)
	assert.InDelta(t, 0.7, s.Temperature, 1e-9)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
llm:
  temperature: 1.5
  max_tokens: 0
storage:
  driver: postgres
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.temperature")
	assert.Contains(t, err.Error(), "llm.max_tokens")
	assert.Contains(t, err.Error(), "storage.driver")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
