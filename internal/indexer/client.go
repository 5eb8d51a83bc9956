// Package indexer turns Documents into persisted index points: one embedding
// call per document, one store upsert per batch, and site-scoped deletion.
package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kismet-tech/NLWeb/internal/document"
	"github.com/kismet-tech/NLWeb/internal/metrics"
)

const (
	CollectionName   = "NLWebCollection"
	VectorSize       = 1536
	Distance         = "cosine"
	DefaultBatchSize = 100
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Point pairs a freshly generated identifier and vector with its document.
type Point struct {
	ID       string
	Vector   []float32
	Document document.Document
}

type Store interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	// DeleteSite removes every point whose site equals site and reports how many.
	DeleteSite(ctx context.Context, site string) (int64, error)
}

type Client struct {
	embedder  Embedder
	store     Store
	batchSize int
}

type Option func(*Client)

func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func New(embedder Embedder, store Store, opts ...Option) *Client {
	c := &Client{embedder: embedder, store: store, batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) EnsureCollection(ctx context.Context) error {
	if err := c.store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("%w: ensure collection %s: %v", ErrIndex, CollectionName, err)
	}
	return nil
}

// Embed returns the vector for text, validated against VectorSize.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vec) != VectorSize {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrEmbedding, len(vec), VectorSize)
	}
	return vec, nil
}

// Upsert embeds and stores docs in batches and returns the number of points
// written. The first embedding failure aborts the run; nothing of the failing
// batch is stored.
func (c *Client) Upsert(ctx context.Context, docs []document.Document) (int, error) {
	written := 0
	for start := 0; start < len(docs); start += c.batchSize {
		end := min(start+c.batchSize, len(docs))
		batch := docs[start:end]

		points := make([]Point, 0, len(batch))
		for _, doc := range batch {
			vec, err := c.Embed(ctx, doc.Text)
			if err != nil {
				return written, fmt.Errorf("document %s: %w", doc.URL, err)
			}
			points = append(points, Point{ID: uuid.NewString(), Vector: vec, Document: doc})
		}

		if err := c.store.Upsert(ctx, points); err != nil {
			return written, fmt.Errorf("%w: upsert batch %d-%d: %v", ErrIndex, start, end, err)
		}
		written += len(points)

		for _, p := range points {
			metrics.PointsUpsertedTotal.WithLabelValues(p.Document.Site).Inc()
		}
		slog.InfoContext(ctx, "batch upserted", "collection", CollectionName, "from", start, "to", end, "total", written)
	}
	return written, nil
}

// DeleteSite removes all points of site.
func (c *Client) DeleteSite(ctx context.Context, site string) (int64, error) {
	deleted, err := c.store.DeleteSite(ctx, site)
	if err != nil {
		metrics.SiteDeletesTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("%w: delete site %s: %v", ErrIndex, site, err)
	}
	metrics.SiteDeletesTotal.WithLabelValues("ok").Inc()
	slog.InfoContext(ctx, "site deleted", "site", site, "deleted", deleted)
	return deleted, nil
}
