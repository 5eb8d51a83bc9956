// Package redis caches embeddings in Redis so repeated runs over unchanged
// content skip the provider.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/rueidis"

	"github.com/kismet-tech/NLWeb/internal/metrics"
)

const keyPrefix = "nlweb:emb_cache:"

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewClient connects to a single Redis address.
func NewClient(addr, password string) (rueidis.Client, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		Password:     password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return client, nil
}

// CachedEmbedder decorates an Embedder with a Redis lookup keyed by model and
// text. Cache failures degrade to a provider call.
type CachedEmbedder struct {
	inner  Embedder
	client rueidis.Client
	model  string
	ttl    time.Duration
}

func NewCachedEmbedder(inner Embedder, client rueidis.Client, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, client: client, model: model, ttl: ttl}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if vec, ok := c.get(ctx, key); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return vec, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.put(ctx, key, vec)
	return vec, nil
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEmbedder) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			slog.WarnContext(ctx, "failed to get cached embedding", "key", key, "error", err)
		}
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil || len(vec) == 0 {
		slog.WarnContext(ctx, "discarding unreadable cached embedding", "key", key, "error", err)
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) put(ctx context.Context, key string, vec []float32) {
	value := string(vectorToBytes(vec))
	var cmd rueidis.Completed
	if c.ttl > 0 {
		cmd = c.client.B().Set().Key(key).Value(value).Ex(c.ttl).Build()
	} else {
		cmd = c.client.B().Set().Key(key).Value(value).Build()
	}
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		slog.WarnContext(ctx, "failed to cache embedding", "key", key, "error", err)
	}
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
