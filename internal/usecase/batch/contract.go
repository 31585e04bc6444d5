package batch

import (
	"context"

	"github.com/wabenzi/prethrift/internal/domain"
	"github.com/wabenzi/prethrift/internal/domain/garment"
	"github.com/wabenzi/prethrift/internal/usecase/ontology"
)

// BulkUpserter writes several garments to the catalog in one round trip.
type BulkUpserter interface {
	UpsertMulti(ctx context.Context, gs []garment.Garment) error
}

// GarmentDeleter removes one garment from the catalog.
type GarmentDeleter interface {
	Delete(ctx context.Context, id string) error
}

// Extractor assigns taxonomy attributes to listing text.
type Extractor interface {
	Extract(ctx context.Context, text string) ontology.Result
}

// Describer captions a garment image for the image-modality embedding.
type Describer interface {
	Describe(ctx context.Context, imageRef string) (string, error)
}

// Embedder vectorizes several texts in one provider call.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
