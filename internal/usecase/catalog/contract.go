package catalog

import (
	"context"

	"github.com/wabenzi/prethrift/internal/domain"
	"github.com/wabenzi/prethrift/internal/domain/filter"
	"github.com/wabenzi/prethrift/internal/domain/garment"
	"github.com/wabenzi/prethrift/internal/domain/result"
	"github.com/wabenzi/prethrift/internal/usecase/ontology"
)

// Repository defines the storage contract for the garment catalog.
type Repository interface {
	Upsert(ctx context.Context, g *garment.Garment) (created bool, err error)
	Get(ctx context.Context, id string) (garment.Garment, error)
	GetMulti(ctx context.Context, ids []string) ([]garment.Garment, error)
	Delete(ctx context.Context, id string) error
}

// Searcher runs KNN lookups for similar-garment queries.
type Searcher interface {
	Query(ctx context.Context, vector []float32, modality domain.Modality,
		k int, filters filter.Expression) ([]result.Neighbor, error)
}

// Extractor assigns taxonomy attributes to listing text.
type Extractor interface {
	Extract(ctx context.Context, text string) ontology.Result
}

// Describer captions a garment image for the image-modality embedding.
type Describer interface {
	Describe(ctx context.Context, imageRef string) (string, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
