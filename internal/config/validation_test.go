package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kismet-tech/NLWeb/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		EmbeddingProvider: config.ProviderOpenAI,
		OpenAIAPIKey:      "sk-test",
		WeaviateURL:       "https://weaviate.example.com",
		WeaviateAPIKey:    "wv-key",
		BatchSize:         100,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
		errIs   error
	}{
		{
			name:   "Valid Config",
			mutate: func(c *config.Config) {},
		},
		{
			name:    "Missing OpenAI Key",
			mutate:  func(c *config.Config) { c.OpenAIAPIKey = "" },
			wantErr: "missing required configuration: OPENAI_API_KEY environment variable not set",
			errIs:   config.ErrMissingRequired,
		},
		{
			name: "Gemini Needs Its Own Key",
			mutate: func(c *config.Config) {
				c.EmbeddingProvider = config.ProviderGemini
			},
			wantErr: "missing required configuration: GEMINI_API_KEY environment variable not set",
			errIs:   config.ErrMissingRequired,
		},
		{
			name: "Gemini Without OpenAI Key",
			mutate: func(c *config.Config) {
				c.EmbeddingProvider = config.ProviderGemini
				c.GeminiAPIKey = "g-key"
				c.OpenAIAPIKey = ""
			},
		},
		{
			name:    "Missing Weaviate URL",
			mutate:  func(c *config.Config) { c.WeaviateURL = "" },
			wantErr: "missing required configuration: WEAVIATE_URL environment variable not set",
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Missing Weaviate Key",
			mutate:  func(c *config.Config) { c.WeaviateAPIKey = "" },
			wantErr: "missing required configuration: WEAVIATE_API_KEY environment variable not set",
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Unknown Provider",
			mutate:  func(c *config.Config) { c.EmbeddingProvider = "cohere" },
			wantErr: `unsupported EMBEDDING_PROVIDER "cohere" (want openai or gemini)`,
		},
		{
			name:    "Zero Batch Size",
			mutate:  func(c *config.Config) { c.BatchSize = 0 },
			wantErr: "BATCH_SIZE must be positive, got 0",
		},
		{
			name: "Ledger Needs DB Host",
			mutate: func(c *config.Config) {
				c.LedgerEnabled = true
				c.DBUser = "u"
				c.DBName = "n"
			},
			wantErr: "missing required configuration: DB_HOST environment variable not set",
			errIs:   config.ErrMissingRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
		})
	}
}
