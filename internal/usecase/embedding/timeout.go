package embedding

import (
	"context"
	"time"

	"github.com/wabenzi/prethrift/internal/domain"
)

// TimeoutEmbedder bounds every provider call. It sits inside the fallback
// wrapper, so a slow provider degrades to the hash projection instead of
// stalling the query.
type TimeoutEmbedder struct {
	inner   domain.Embedder
	timeout time.Duration
}

// NewTimeoutEmbedder wraps an embedder with a per-call deadline. A zero
// timeout disables the bound.
func NewTimeoutEmbedder(inner domain.Embedder, timeout time.Duration) *TimeoutEmbedder {
	return &TimeoutEmbedder{inner: inner, timeout: timeout}
}

// Embed delegates with a bounded context.
func (t *TimeoutEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.Embed(ctx, text)
}

// BatchEmbed delegates with a bounded context covering the whole batch.
func (t *TimeoutEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	if be, ok := t.inner.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, t.inner, texts)
}

func (t *TimeoutEmbedder) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.timeout)
}
