package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/redis/rueidis"

	"github.com/kismet-tech/NLWeb/features/run"
	"github.com/kismet-tech/NLWeb/internal/adapter/gemini"
	"github.com/kismet-tech/NLWeb/internal/adapter/openai"
	"github.com/kismet-tech/NLWeb/internal/adapter/redis"
	wstore "github.com/kismet-tech/NLWeb/internal/adapter/weaviate"
	"github.com/kismet-tech/NLWeb/internal/config"
	"github.com/kismet-tech/NLWeb/internal/indexer"
)

// CollectionEnsurer is the part of the vector store Bootstrap checks on startup.
type CollectionEnsurer interface {
	EnsureCollection(ctx context.Context) error
}

// Dependencies are the process-wide clients. Optional integrations are nil
// when not configured.
type Dependencies struct {
	Embedder    indexer.Embedder
	VectorStore *wstore.Store
	DB          *sql.DB
	NSQProducer *nsq.Producer

	closers []func() error
}

// Close releases every client in reverse order of creation.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func (d *Dependencies) onClose(fn func() error) {
	d.closers = append(d.closers, fn)
}

// Bootstrap builds the clients described by cfg. cfg must already be validated.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}
	fail := func(err error) (*Dependencies, error) {
		_ = deps.Close()
		return nil, err
	}

	// 1. Ledger
	if cfg.LedgerEnabled {
		db, err := OpenLedger(cfg)
		if err != nil {
			return fail(err)
		}
		deps.DB = db
		deps.onClose(db.Close)
	}

	// 2. Embeddings
	embedder, err := NewEmbedder(ctx, cfg, deps)
	if err != nil {
		return fail(err)
	}
	deps.Embedder = embedder

	// 3. Weaviate
	wClient, err := wstore.NewClient(cfg.WeaviateURL, cfg.WeaviateAPIKey)
	if err != nil {
		return fail(fmt.Errorf("weaviate client error: %w", err))
	}
	deps.VectorStore = wstore.NewStore(wClient)

	if err := EnsureCollectionWithRetry(ctx, deps.VectorStore, cfg.BootstrapRetryAttempts, cfg.BootstrapRetryDelay); err != nil {
		return fail(fmt.Errorf("weaviate schema error: %w", err))
	}

	// 4. NSQ Producer
	if cfg.NSQDHost != "" {
		producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
		if err != nil {
			return fail(fmt.Errorf("nsq producer error: %w", err))
		}
		deps.NSQProducer = producer
		deps.onClose(func() error {
			producer.Stop()
			return nil
		})
	}

	return deps, nil
}

// NewEmbedder builds the configured provider, wrapped in the Redis cache when
// REDIS_ADDR is set.
func NewEmbedder(ctx context.Context, cfg *config.Config, deps *Dependencies) (indexer.Embedder, error) {
	var (
		embedder indexer.Embedder
		model    string
	)

	switch cfg.EmbeddingProvider {
	case config.ProviderGemini:
		g, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, indexer.VectorSize)
		if err != nil {
			return nil, fmt.Errorf("gemini client error: %w", err)
		}
		deps.onClose(g.Close)
		embedder, model = g, g.Model()
	default:
		o := openai.NewEmbedder(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.EmbeddingModel,
			Dimensions: indexer.VectorSize,
		})
		embedder, model = o, o.Model()
	}

	if cfg.RedisAddr == "" {
		return embedder, nil
	}
	client, err := redis.NewClient(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		// The cache is an optimization; indexing works without it.
		slog.WarnContext(ctx, "embedding cache disabled", "addr", cfg.RedisAddr, "error", err)
		return embedder, nil
	}
	deps.onClose(closeRedis(client))
	return redis.NewCachedEmbedder(embedder, client, model, cfg.CacheTTL), nil
}

func closeRedis(c rueidis.Client) func() error {
	return func() error {
		c.Close()
		return nil
	}
}

// OpenLedger connects to Postgres, retrying the ping, and applies migrations.
func OpenLedger(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	attempts := max(cfg.BootstrapRetryAttempts, 1)
	for i := 0; i < attempts; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1)
		if i < attempts-1 {
			time.Sleep(cfg.BootstrapRetryDelay)
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if err := run.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureCollectionWithRetry retries the collection check while the vector
// store is still coming up.
func EnsureCollectionWithRetry(ctx context.Context, store CollectionEnsurer, attempts int, delay time.Duration) error {
	attempts = max(attempts, 1)
	var err error
	for i := 0; i < attempts; i++ {
		if err = store.EnsureCollection(ctx); err == nil {
			return nil
		}
		slog.WarnContext(ctx, "vector store not ready, retrying...", "attempt", i+1, "error", err)
		if i < attempts-1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}
