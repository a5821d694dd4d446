package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()

	for _, k := range []string{
		"TRIPMESH_ADDR", "TRIPMESH_LOG_LEVEL", "TRIPMESH_LOG_FORMAT", "TRIPMESH_PROVIDER",
		"TRIPMESH_MODEL", "USER_ID", "TRIPMESH_REDIS_ADDR", "TRIPMESH_S3_BUCKET",
		"GOOGLE_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "g-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ProviderGemini, cfg.Model.Provider)
	assert.Empty(t, cfg.Model.Name)
	assert.Equal(t, "g-key", cfg.Model.APIKey)
	assert.Equal(t, 5*time.Minute, cfg.Planner.RequestTimeout)
	assert.Equal(t, "user", cfg.Planner.UserID)
	assert.Equal(t, BackendMemory, cfg.Session.Backend)
	assert.Equal(t, BackendMemory, cfg.Artifacts.Backend)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "tripmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  allowed_origins: ["https://planner.example"]
model:
  provider: openai
  name: gpt-4o-mini
  agents:
    itinerary_agent: gpt-4o
planner:
  mode: sequential
  request_timeout: 90s
  max_duration_days: 14
`), 0o600))

	t.Setenv("TRIPMESH_ADDR", ":7000")
	t.Setenv("USER_ID", "alice")
	t.Setenv("OPENAI_API_KEY", "o-key")
	t.Setenv("TRIPMESH_REDIS_ADDR", "localhost:6379")
	t.Setenv("TRIPMESH_S3_BUCKET", "itineraries")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://planner.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "o-key", cfg.Model.APIKey)
	assert.Equal(t, "gpt-4o", cfg.ModelFor("itinerary_agent"))
	assert.Equal(t, "gpt-4o-mini", cfg.ModelFor("inspiration_agent"))
	assert.Equal(t, "sequential", cfg.Planner.Mode)
	assert.Equal(t, 90*time.Second, cfg.Planner.RequestTimeout)
	assert.InDelta(t, 14, cfg.Planner.MaxDurationDays, 0)
	assert.Equal(t, "alice", cfg.Planner.UserID)
	assert.Equal(t, BackendRedis, cfg.Session.Backend)
	assert.Equal(t, "localhost:6379", cfg.Session.Redis.Addr)
	assert.Equal(t, BackendS3, cfg.Artifacts.Backend)
	assert.Equal(t, "itineraries", cfg.Artifacts.S3.Bucket)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  provider: mistral\nsession:\n  backend: redis\n"), 0o600))

	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "mistral"`)
	assert.Contains(t, err.Error(), "session.redis.addr")
}
