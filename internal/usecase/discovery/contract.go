package discovery

import (
	"context"

	"github.com/wabenzi/prethrift/internal/domain"
	"github.com/wabenzi/prethrift/internal/domain/filter"
	"github.com/wabenzi/prethrift/internal/domain/garment"
	"github.com/wabenzi/prethrift/internal/domain/preference"
	"github.com/wabenzi/prethrift/internal/domain/query"
	"github.com/wabenzi/prethrift/internal/domain/result"
	"github.com/wabenzi/prethrift/internal/domain/verdict"
	"github.com/wabenzi/prethrift/internal/usecase/ontology"
	"github.com/wabenzi/prethrift/internal/usecase/ranking"
)

// Gate screens queries before any retrieval work runs.
type Gate interface {
	Check(req *query.Request) verdict.Verdict
}

// Extractor produces query attributes. It degrades internally, never fails.
type Extractor interface {
	Extract(ctx context.Context, text string) ontology.Result
}

// Searcher answers nearest-neighbor queries against the garment index.
type Searcher interface {
	Query(ctx context.Context, vector []float32, modality domain.Modality,
		k int, filters filter.Expression) ([]result.Neighbor, error)
}

// GarmentReader hydrates candidates from catalog storage.
type GarmentReader interface {
	GetMulti(ctx context.Context, ids []string) ([]garment.Garment, error)
}

// PreferenceReader loads taste vectors for personalized ranking.
type PreferenceReader interface {
	Get(ctx context.Context, userID string) (preference.Vector, error)
}

// Ranker orders hydrated candidates.
type Ranker interface {
	Rank(candidates []ranking.Candidate, q ranking.Query, limit int) []result.Ranked
}

// Deps bundles the pipeline collaborators.
type Deps struct {
	Gate      Gate
	Extractor Extractor
	// TextEmbedder vectorizes query text; wrap it in the fallback chain so
	// provider outages degrade instead of failing the request.
	TextEmbedder domain.Embedder
	// ImageEmbedder vectorizes an image reference. nil disables the image
	// modality.
	ImageEmbedder domain.Embedder
	Searcher      Searcher
	Garments      GarmentReader
	Preferences   PreferenceReader
	Ranker        Ranker
}
