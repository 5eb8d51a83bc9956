// Package retrieval answers verification queries against the index: embed the
// question, return the nearest documents, and log the query.
package retrieval

import (
	"context"
	"errors"
	"time"

	"github.com/kismet-tech/NLWeb/internal/logger"
)

const DefaultLimit = 10

var ErrEmptyQuery = errors.New("query is empty")

type SearchResult struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	Site        string  `json:"site"`
	TypeTag     string  `json:"@type"`
	Description string  `json:"description,omitempty"`
	Text        string  `json:"text,omitempty"`
	Distance    float32 `json:"distance"`
	Score       float32 `json:"score"`
}

type SearchOptions struct {
	Site  string
	Limit int
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Search(ctx context.Context, vector []float32, site string, limit int) ([]SearchResult, error)
}

type Service struct {
	embedder Embedder
	store    VectorStore
	logger   *QueryLogger
}

func NewService(e Embedder, s VectorStore, l *QueryLogger) *Service {
	return &Service{embedder: e, store: s, logger: l}
}

func (s *Service) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	start := time.Now()

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	// 1. Embed query
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	// 2. Nearest documents
	docs, err := s.store.Search(ctx, vec, opts.Site, limit)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		entry := NewQueryLogEntry(query, opts.Site, limit, docs, time.Since(start))
		entry.RunID = logger.RunID(ctx)
		s.logger.Log(entry)
	}
	return docs, nil
}
