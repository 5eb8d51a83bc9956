package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kismet-tech/NLWeb/internal/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "")
	t.Setenv("WEAVIATE_URL", "https://weaviate.example.com")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://weaviate.example.com", cfg.WeaviateURL)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.CrawlDelay)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.LedgerEnabled)
}

func TestLoadConfig_ProviderNormalized(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", " Gemini ")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.ProviderGemini, cfg.EmbeddingProvider)
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WEAVIATE_API_KEY=from-file\n"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	// godotenv sets the variable for the process; clear it afterwards.
	t.Cleanup(func() { _ = os.Unsetenv("WEAVIATE_API_KEY") })

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.WeaviateAPIKey)
}

func TestLoadConfig_Toggles(t *testing.T) {
	t.Setenv("LEDGER_ENABLED", "true")
	t.Setenv("BATCH_SIZE", "25")
	t.Setenv("CRAWL_DELAY", "1s")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.LedgerEnabled)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.CrawlDelay)
}

func TestLoadConfig_BadDuration(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "soon")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestConfig_DSN(t *testing.T) {
	cfg := config.Config{DBHost: "db", DBPort: 5433, DBUser: "u", DBPass: "p", DBName: "n"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=disable", cfg.DSN())
}
