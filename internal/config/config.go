package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	// Embeddings
	EmbeddingProvider string `envconfig:"EMBEDDING_PROVIDER" default:"openai"`
	EmbeddingModel    string `envconfig:"EMBEDDING_MODEL"`
	OpenAIAPIKey      string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL     string `envconfig:"OPENAI_BASE_URL"`
	GeminiAPIKey      string `envconfig:"GEMINI_API_KEY"`

	// Vector store
	WeaviateURL    string `envconfig:"WEAVIATE_URL"`
	WeaviateAPIKey string `envconfig:"WEAVIATE_API_KEY"`

	// Crawling
	FetchTimeout    time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	CrawlDelay      time.Duration `envconfig:"CRAWL_DELAY" default:"500ms"`
	UserAgent       string        `envconfig:"USER_AGENT" default:"NLWebIndexer/1.0 (+https://www.makekismet.com)"`
	MaxContentBytes int64         `envconfig:"MAX_CONTENT_BYTES" default:"10485760"` // 10MB
	BatchSize       int           `envconfig:"BATCH_SIZE" default:"100"`

	// Embedding cache
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"720h"`

	// Run ledger
	LedgerEnabled bool   `envconfig:"LEDGER_ENABLED" default:"false"`
	DBHost        string `envconfig:"DB_HOST" default:"localhost"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"nlweb"`
	DBPass        string `envconfig:"DB_PASS" default:"password"`
	DBName        string `envconfig:"DB_NAME" default:"nlweb"`

	// Run events
	NSQDHost string `envconfig:"NSQD_HOST"`

	MetricsAddr  string `envconfig:"METRICS_ADDR"`
	QueryLogPath string `envconfig:"QUERY_LOG_PATH"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Resilience
	BootstrapRetryAttempts int           `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"5"`
	BootstrapRetryDelay    time.Duration `envconfig:"BOOTSTRAP_RETRY_DELAY" default:"2s"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; it never overrides variables that
// are already set.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.EmbeddingProvider = strings.ToLower(strings.TrimSpace(cfg.EmbeddingProvider))
	return &cfg, nil
}

func missing(name string) error {
	return fmt.Errorf("%w: %s environment variable not set", ErrMissingRequired, name)
}

// Validate checks the settings every indexing command needs. It runs before
// any network client is built.
func (c *Config) Validate() error {
	switch c.EmbeddingProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return missing("OPENAI_API_KEY")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return missing("GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("unsupported EMBEDDING_PROVIDER %q (want %s or %s)", c.EmbeddingProvider, ProviderOpenAI, ProviderGemini)
	}

	if c.WeaviateURL == "" {
		return missing("WEAVIATE_URL")
	}
	if c.WeaviateAPIKey == "" {
		return missing("WEAVIATE_API_KEY")
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize)
	}

	if c.LedgerEnabled {
		if c.DBHost == "" {
			return missing("DB_HOST")
		}
		if c.DBUser == "" {
			return missing("DB_USER")
		}
		if c.DBName == "" {
			return missing("DB_NAME")
		}
	}
	return nil
}

// DSN is the lib/pq connection string for the run ledger.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}
