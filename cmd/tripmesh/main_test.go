package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripmesh/artifact"
	"github.com/hupe1980/tripmesh/internal/config"
	"github.com/hupe1980/tripmesh/planner"
	"github.com/hupe1980/tripmesh/session"
	redisstore "github.com/hupe1980/tripmesh/session/redis"
)

func TestNewModel(t *testing.T) {
	ctx := context.Background()

	_, err := newModel(ctx, config.ModelConfig{Provider: config.ProviderGemini}, "")
	assert.ErrorContains(t, err, "GOOGLE_API_KEY")

	_, err = newModel(ctx, config.ModelConfig{Provider: "mistral"}, "")
	assert.ErrorContains(t, err, "unknown model provider")

	m, err := newModel(ctx, config.ModelConfig{Provider: config.ProviderOpenAI, APIKey: "test"}, "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", m.Info().Name)
}

func TestNewModels_PerAgentOverride(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Provider = config.ProviderAnthropic
	cfg.Model.APIKey = "test"
	cfg.Model.Agents = map[string]string{planner.ItineraryAgentName: "claude-3-5-haiku-latest"}

	models, err := newModels(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, models.Default)
	require.NotNil(t, models.Itinerary)
	assert.Equal(t, "claude-3-5-haiku-latest", models.Itinerary.Info().Name)
	assert.Nil(t, models.Inspiration)
	assert.Nil(t, models.Coordinator)
}

func TestNewStores(t *testing.T) {
	assert.IsType(t, &session.InMemoryStore{}, newSessionStore(config.SessionConfig{Backend: config.BackendMemory}))

	mr := miniredis.RunT(t)
	store := newSessionStore(config.SessionConfig{
		Backend: config.BackendRedis,
		Redis:   config.RedisConfig{Addr: mr.Addr(), Prefix: "test:"},
	})
	require.IsType(t, &redisstore.Store{}, store)

	_, err := store.Create(context.Background(), planner.AppName, "user", "s1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:s1"))

	none, err := newArtifactStore(context.Background(), config.ArtifactsConfig{Backend: config.BackendNone})
	require.NoError(t, err)
	assert.Nil(t, none)

	mem, err := newArtifactStore(context.Background(), config.ArtifactsConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &artifact.InMemoryStore{}, mem)
}

func TestPlanCommand(t *testing.T) {
	var got planner.TripRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/plan", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Itinerary-ID", "itinerary-1.md")
		_, _ = w.Write([]byte(`{"itinerary":"# Rome\nDay 1"}`))
	}))
	defer ts.Close()

	outFile := filepath.Join(t.TempDir(), "rome.md")

	var stdout, stderr bytes.Buffer

	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{
		"plan", "--server", ts.URL, "--location", "Rome", "--days", "2",
		"--interest", "art", "--interest", "food", "--out", outFile, "--raw",
	})

	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, planner.TripRequest{Location: "Rome", DurationDays: 2, Interests: []string{"art", "food"}}, got)
	assert.Equal(t, "# Rome\nDay 1\n", stdout.String())
	assert.Contains(t, stderr.String(), outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, "# Rome\nDay 1", string(data))
}

func TestVersionCommand(t *testing.T) {
	var stdout bytes.Buffer

	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"version"})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "tripmesh version dev\n", stdout.String())
}
