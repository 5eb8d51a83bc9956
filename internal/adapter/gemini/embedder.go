package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/kismet-tech/NLWeb/internal/metrics"
)

const (
	DefaultModel = "gemini-embedding-001"
	providerName = "gemini"
)

var ErrDimensions = errors.New("embedding shorter than required dimensions")

// Embedder produces vectors of exactly `dimensions` length. Longer model
// output is truncated and L2-renormalized.
type Embedder struct {
	client     *genai.Client
	model      string
	dimensions int
}

func NewEmbedder(ctx context.Context, apiKey, model string, dimensions int, opts ...option.ClientOption) (*Embedder, error) {
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultModel
	}
	return &Embedder{client: client, model: model, dimensions: dimensions}, nil
}

func (e *Embedder) Model() string { return e.model }

func (e *Embedder) Close() error { return e.client.Close() }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	slog.DebugContext(ctx, "embedding content", "model", e.model, "length", len(text))
	res, err := e.client.EmbeddingModel(e.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, "error").Inc()
		slog.ErrorContext(ctx, "embedding failed", "error", err)
		return nil, err
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, "error").Inc()
		return nil, fmt.Errorf("empty embedding response from %s", e.model)
	}

	vec, err := Fit(res.Embedding.Values, e.dimensions)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, "error").Inc()
		return nil, err
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, "success").Inc()
	return vec, nil
}

// Fit truncates v to n dimensions and rescales it to unit length. Vectors
// shorter than n are rejected; n <= 0 returns v unchanged.
func Fit(v []float32, n int) ([]float32, error) {
	if n <= 0 || len(v) == n {
		return v, nil
	}
	if len(v) < n {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensions, len(v), n)
	}

	out := make([]float32, n)
	copy(out, v[:n])

	var sum float64
	for _, f := range out {
		sum += float64(f) * float64(f)
	}
	if norm := math.Sqrt(sum); norm > 0 {
		for i := range out {
			out[i] = float32(float64(out[i]) / norm)
		}
	}
	return out, nil
}
