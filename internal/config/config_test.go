package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// clearEnv blanks every override variable so ambient CI secrets cannot leak
// into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "GEMINI_EMBEDDING_API_KEY",
		"SUPABASE_URL", "SUPABASE_KEY",
		"DREAMSIGHT_API_SECRET_KEY", "DREAMSIGHT_CRON_SECRET",
		"DREAMSIGHT_PORT", "DREAMSIGHT_DB_PATH",
		"DREAMSIGHT_ALLOWED_ORIGINS", "DREAMSIGHT_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
name: TestSight
server:
  port: 9000
  api_secret_key: sekret
  allowed_origins:
    - https://dreams.example
llm:
  model: gemini-2.5-pro
  temperature: 0.2
cache:
  max_size: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "TestSight", cfg.Name)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sekret", cfg.Server.APISecretKey)
	assert.Equal(t, []string{"https://dreams.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, 10, cfg.Cache.MaxSize)

	// Untouched sections keep their defaults.
	assert.Equal(t, "gemini-embedding-001", cfg.Embedding.Model)
	assert.Equal(t, 2, cfg.Analysis.MaxRetries)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "llm-key")
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co")
	t.Setenv("DREAMSIGHT_PORT", "8080")
	t.Setenv("DREAMSIGHT_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "llm-key", cfg.LLM.APIKey)
	assert.Equal(t, "llm-key", cfg.Embedding.APIKey, "embedding key falls back to the LLM key")
	assert.Equal(t, "https://proj.supabase.co", cfg.Supabase.URL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestDedicatedEmbeddingKeyWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "llm-key")
	t.Setenv("GEMINI_EMBEDDING_API_KEY", "embed-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "embed-key", cfg.Embedding.APIKey)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, ParseDuration("30s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("garbage", time.Minute))
}

func TestAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8000}
	assert.Equal(t, "127.0.0.1:8000", s.Addr())
}
