package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the vector and token usage through the decorator chain.
// Fallback marks vectors produced by the deterministic hash projection when the
// provider was unreachable; the scorer discounts those and the response reports
// degraded mode.
type EmbeddingResult struct {
	Vector       []float32
	PromptTokens int
	TotalTokens  int
	Fallback     bool
}

// BatchEmbeddingResult carries multiple vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
	Fallback     bool
}

// BatchFallback calls Embed once per text. Safety net for providers without
// native batch support.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	vectors := make([][]float32, len(texts))
	var totalPrompt, totalTokens int
	var anyFallback bool

	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("fallback embed [%d]: %w", i, err)
		}
		vectors[i] = res.Vector
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
		anyFallback = anyFallback || res.Fallback
	}

	return BatchEmbeddingResult{
		Vectors:      vectors,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
		Fallback:     anyFallback,
	}, nil
}
