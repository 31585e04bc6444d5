package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/wabenzi/prethrift/internal/domain"
	"github.com/wabenzi/prethrift/internal/metrics"
)

// FallbackEmbedder degrades to a deterministic hash projection when the
// inner provider fails, so query vectorization stays available during
// outages. Fallback vectors are marked in the result; the scorer discounts
// them and the response reports degraded mode. Intended for the query path
// only: persisting hash vectors into the catalog would outlive the outage.
type FallbackEmbedder struct {
	inner  domain.Embedder
	dim    int
	logger *zap.Logger
}

// NewFallbackEmbedder wraps an embedder with the hash projection safety net.
func NewFallbackEmbedder(inner domain.Embedder, dim int, logger *zap.Logger) *FallbackEmbedder {
	return &FallbackEmbedder{inner: inner, dim: dim, logger: logger}
}

// Embed delegates to the inner embedder and projects on failure.
// A canceled context still fails: the caller is gone either way.
func (f *FallbackEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	result, err := f.inner.Embed(ctx, text)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	f.logger.Warn("Embedding provider unavailable, projecting query locally", zap.Error(err))
	metrics.EmbeddingFallbackTotal.Inc()

	return domain.EmbeddingResult{
		Vector:   HashProjection(text, f.dim),
		Fallback: true,
	}, nil
}

// HashProjection maps text to a unit-length vector using token hashing.
// The same text always yields the same vector, so repeated degraded queries
// rank identically. Each token lands in two buckets with signed weights to
// soften collisions at low dimensionality.
func HashProjection(text string, dim int) []float32 {
	vec := make([]float32, dim)
	if dim == 0 {
		return vec
	}

	for _, token := range strings.Fields(strings.ToLower(text)) {
		sum := sha256.Sum256([]byte(token))

		idx := binary.LittleEndian.Uint32(sum[0:4]) % uint32(dim)
		sign := float32(1)
		if sum[4]&1 == 1 {
			sign = -1
		}
		vec[idx] += sign

		idx2 := binary.LittleEndian.Uint32(sum[8:12]) % uint32(dim)
		sign2 := float32(0.5)
		if sum[12]&1 == 1 {
			sign2 = -0.5
		}
		vec[idx2] += sign2
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// No tokens: use a fixed basis vector so cosine stays defined.
		vec[0] = 1
		return vec
	}

	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
