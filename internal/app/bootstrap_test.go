package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kismet-tech/NLWeb/internal/app"
	"github.com/kismet-tech/NLWeb/internal/config"
	"github.com/kismet-tech/NLWeb/internal/vector"
)

type statefulEnsurer struct {
	callCount int
	failUntil int
}

func (m *statefulEnsurer) EnsureCollection(ctx context.Context) error {
	m.callCount++
	if m.callCount <= m.failUntil {
		return errors.New("schema error")
	}
	return nil
}

func TestEnsureCollectionWithRetry_Success(t *testing.T) {
	m := &statefulEnsurer{}
	err := app.EnsureCollectionWithRetry(context.Background(), m, 1, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 1, m.callCount)
}

func TestEnsureCollectionWithRetry_Retries(t *testing.T) {
	m := &statefulEnsurer{failUntil: 2}
	err := app.EnsureCollectionWithRetry(context.Background(), m, 5, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 3, m.callCount)
}

func TestEnsureCollectionWithRetry_Exhausted(t *testing.T) {
	m := &statefulEnsurer{failUntil: 10}
	err := app.EnsureCollectionWithRetry(context.Background(), m, 3, time.Millisecond)
	assert.EqualError(t, err, "schema error")
	assert.Equal(t, 3, m.callCount)
}

func TestEnsureCollectionWithRetry_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &statefulEnsurer{failUntil: 10}
	err := app.EnsureCollectionWithRetry(ctx, m, 5, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, m.callCount)
}

func TestOpenLedger_DBDown(t *testing.T) {
	cfg := &config.Config{
		DBHost:                 "localhost",
		DBPort:                 54322, // Random port likely closed
		DBUser:                 "test",
		DBPass:                 "test",
		DBName:                 "test",
		BootstrapRetryAttempts: 1,
	}

	start := time.Now()
	db, err := app.OpenLedger(cfg)

	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to ping db")
	assert.Less(t, time.Since(start), 5*time.Second)
}

// newFakeWeaviate serves just enough of the Weaviate API for Bootstrap.
func newFakeWeaviate(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/meta":
			w.Write([]byte(`{"version": "1.19.0"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/schema/NLWebCollection":
			json.NewEncoder(w).Encode(vector.Class())
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestBootstrap_OpenAIWithoutOptionalIntegrations(t *testing.T) {
	ts := newFakeWeaviate(t)

	cfg := &config.Config{
		EmbeddingProvider:      config.ProviderOpenAI,
		OpenAIAPIKey:           "sk-test",
		WeaviateURL:            ts.URL,
		WeaviateAPIKey:         "wv-key",
		BootstrapRetryAttempts: 1,
	}

	deps, err := app.Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer deps.Close()

	assert.NotNil(t, deps.Embedder)
	assert.NotNil(t, deps.VectorStore)
	assert.Nil(t, deps.DB)
	assert.Nil(t, deps.NSQProducer)
}

func TestBootstrap_WeaviateDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	cfg := &config.Config{
		EmbeddingProvider:      config.ProviderOpenAI,
		OpenAIAPIKey:           "sk-test",
		WeaviateURL:            ts.URL,
		WeaviateAPIKey:         "wv-key",
		BootstrapRetryAttempts: 2,
		BootstrapRetryDelay:    time.Millisecond,
	}

	deps, err := app.Bootstrap(context.Background(), cfg)
	assert.Error(t, err)
	assert.Nil(t, deps)
	assert.Contains(t, err.Error(), "weaviate schema error")
}
