package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wabenzi/prethrift/internal/db"
	"github.com/wabenzi/prethrift/internal/domain"
	"github.com/wabenzi/prethrift/internal/domain/filter"
	"github.com/wabenzi/prethrift/internal/domain/result"
)

// store is the consumer interface for vector search (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo answers nearest-neighbor queries against the garment index.
// Filters are applied by the engine before candidate selection, so the
// caller always receives up to k post-filter hits.
type Repo struct {
	store store
}

// New creates a similarity search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// vectorFields maps a modality to the schema alias of its vector field.
var vectorFields = map[domain.Modality]string{
	domain.ModalityText:  "text_vec",
	domain.ModalityImage: "image_vec",
}

// Query returns up to k neighbors ordered by ascending distance.
// Engine failures surface as domain.ErrIndexUnavailable; the query is safe
// to retry once the index recovers.
func (r *Repo) Query(
	ctx context.Context, vector []float32, modality domain.Modality,
	k int, filters filter.Expression,
) ([]result.Neighbor, error) {
	field, ok := vectorFields[modality]
	if !ok {
		return nil, fmt.Errorf("unknown modality %q", modality)
	}

	q := &db.KNNQuery{
		IndexName:   indexName(),
		Filters:     filters,
		VectorField: field,
		Vector:      vector,
		K:           k,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		var dbErr *db.Error
		if errors.As(err, &dbErr) {
			return nil, fmt.Errorf("knn %s: %w: %w", field, domain.ErrIndexUnavailable, err)
		}
		return nil, fmt.Errorf("knn %s: %w", field, err)
	}

	return parseNeighbors(sr), nil
}

// parseNeighbors converts db.SearchResult into lean neighbor hits.
func parseNeighbors(sr *db.SearchResult) []result.Neighbor {
	if sr == nil || sr.Total == 0 {
		return nil
	}

	prefix := garmentPrefix()
	neighbors := make([]result.Neighbor, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		neighbors = append(neighbors, result.Neighbor{
			GarmentID: strings.TrimPrefix(entry.Key, prefix),
			Distance:  entry.Distance,
		})
	}
	return neighbors
}

func indexName() string {
	return domain.KeyPrefix + "garments:idx"
}

func garmentPrefix() string {
	return domain.KeyPrefix + "garment:"
}
