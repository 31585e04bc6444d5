package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/wabenzi/prethrift/internal/domain"
)

// Describer turns an image reference into catalog text.
type Describer interface {
	Describe(ctx context.Context, imageRef string) (string, error)
}

// ImageEmbedder produces image-modality vectors by describing the image and
// embedding the description. Catalog image vectors are built the same way at
// ingest, so query and corpus share one vector space per modality.
type ImageEmbedder struct {
	describer Describer
	embedder  domain.Embedder
	timeout   time.Duration
}

// NewImageEmbedder chains a vision describer with a text embedder. timeout
// bounds the describe call; zero disables the bound.
func NewImageEmbedder(describer Describer, embedder domain.Embedder, timeout time.Duration) *ImageEmbedder {
	return &ImageEmbedder{describer: describer, embedder: embedder, timeout: timeout}
}

// Embed treats text as an image reference.
func (e *ImageEmbedder) Embed(ctx context.Context, imageRef string) (domain.EmbeddingResult, error) {
	dctx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	description, err := e.describer.Describe(dctx, imageRef)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("describe image: %w", err)
	}

	return e.embedder.Embed(ctx, description)
}
