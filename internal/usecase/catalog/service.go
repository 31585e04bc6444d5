// Package catalog handles garment ingest and catalog reads. Ingest runs
// the enrichment pipeline: caption the image (when vision is configured),
// extract taxonomy attributes, embed both modalities, index the result.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wabenzi/prethrift/internal/domain"
	"github.com/wabenzi/prethrift/internal/domain/filter"
	"github.com/wabenzi/prethrift/internal/domain/garment"
	"github.com/wabenzi/prethrift/internal/domain/result"
	"github.com/wabenzi/prethrift/internal/metrics"
)

// Similar-garment lookup limits.
const (
	DefaultSimilarLimit = 10
	MaxSimilarLimit     = 100
)

// Deps carries the catalog service collaborators. Describer may be nil,
// which disables image captioning at ingest. Embedder must not carry the
// hash fallback: stored vectors have to come from the real provider.
type Deps struct {
	Repo      Repository
	Searcher  Searcher
	Extractor Extractor
	Describer Describer
	Embedder  Embedder
}

// Service handles garment ingest, reads, and similar-garment lookups.
type Service struct {
	repo      Repository
	searcher  Searcher
	extractor Extractor
	describer Describer
	embedder  Embedder
	logger    *zap.Logger
}

// New creates a catalog service.
func New(d Deps, logger *zap.Logger) *Service {
	return &Service{
		repo:      d.Repo,
		searcher:  d.Searcher,
		extractor: d.Extractor,
		describer: d.Describer,
		embedder:  d.Embedder,
		logger:    logger,
	}
}

// Upsert ingests one garment through the enrichment pipeline and indexes
// it. Returns true if the garment was created rather than updated.
func (s *Service) Upsert(ctx context.Context, g *garment.Garment) (bool, error) {
	enriched, err := s.enrich(ctx, g)
	if err != nil {
		return false, err
	}

	created, err := s.repo.Upsert(ctx, &enriched)
	if err != nil {
		return false, fmt.Errorf("upsert garment %s: %w", g.ID(), err)
	}

	metrics.GarmentsIndexedTotal.Inc()
	return created, nil
}

// enrich returns a copy of the garment carrying extracted attributes and
// freshly embedded vectors. Re-ingesting recomputes everything, so an
// upsert is also the repair path for a previously degraded item.
func (s *Service) enrich(ctx context.Context, g *garment.Garment) (garment.Garment, error) {
	imageDesc := s.describe(ctx, g)

	extraction := s.extractor.Extract(ctx, extractionText(g, imageDesc))

	textRes, err := s.embedder.Embed(ctx, listingText(g))
	if err != nil {
		return garment.Garment{}, fmt.Errorf("vectorize listing %s: %w", g.ID(), err)
	}
	domain.UsageFromContext(ctx).Record(textRes)

	var imageVec []float32
	if imageDesc != "" {
		imageRes, embErr := s.embedder.Embed(ctx, imageDesc)
		if embErr != nil {
			s.logger.Warn("image embedding failed, indexing without image vector",
				zap.String("garment_id", g.ID()), zap.Error(embErr))
		} else {
			imageVec = imageRes.Vector
			domain.UsageFromContext(ctx).Record(imageRes)
		}
	}

	enriched := g.WithAttributes(extraction.Assignments)
	return enriched.WithVectors(textRes.Vector, imageVec), nil
}

// describe captions the garment image. Vision failures are not fatal: the
// listing still indexes with its text vector, and a later upsert retries.
func (s *Service) describe(ctx context.Context, g *garment.Garment) string {
	if s.describer == nil || g.ImagePath() == "" {
		return ""
	}

	desc, err := s.describer.Describe(ctx, g.ImagePath())
	if err != nil {
		s.logger.Warn("image description failed, indexing without image vector",
			zap.String("garment_id", g.ID()),
			zap.String("image_path", g.ImagePath()),
			zap.Error(err))
		return ""
	}
	return desc
}

// Get retrieves a garment by ID.
func (s *Service) Get(ctx context.Context, id string) (garment.Garment, error) {
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return garment.Garment{}, fmt.Errorf("get garment: %w", err)
	}
	return g, nil
}

// Delete removes a sold or withdrawn listing.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete garment: %w", err)
	}
	return nil
}

// Similar returns the nearest catalog neighbors of a stored garment,
// preferring the text-modality vector and falling back to the image
// vector. The garment itself is excluded from the results.
func (s *Service) Similar(ctx context.Context, id string, limit int) ([]result.Similar, error) {
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	if limit > MaxSimilarLimit {
		limit = MaxSimilarLimit
	}

	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get garment: %w", err)
	}

	vector, modality := g.TextVector(), domain.ModalityText
	if len(vector) == 0 {
		vector, modality = g.ImageVector(), domain.ModalityImage
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("garment %s has no stored vectors: %w", id, domain.ErrInvalidGarment)
	}

	// The garment itself comes back at distance zero; fetch one extra.
	neighbors, err := s.searcher.Query(ctx, vector, modality, limit+1, filter.Expression{})
	if err != nil {
		return nil, fmt.Errorf("similar candidates: %w", err)
	}

	ids := make([]string, 0, len(neighbors))
	distance := make(map[string]float64, len(neighbors))
	for _, n := range neighbors {
		if n.GarmentID == id {
			continue
		}
		ids = append(ids, n.GarmentID)
		distance[n.GarmentID] = n.Distance
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	if len(ids) == 0 {
		return nil, nil
	}

	garments, err := s.repo.GetMulti(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate %d similar garments: %w", len(ids), err)
	}

	out := make([]result.Similar, 0, len(garments))
	for i := range garments {
		out = append(out, result.Similar{
			Garment:    garments[i],
			Similarity: 1 - distance[garments[i].ID()],
		})
	}
	return out, nil
}

// listingText is the text-modality embedding input.
func listingText(g *garment.Garment) string {
	if g.Description() == "" {
		return g.Title()
	}
	return g.Title() + "\n" + g.Description()
}

// extractionText is the attribute-extraction input: every piece of text
// we have, including the vision caption when present.
func extractionText(g *garment.Garment, imageDesc string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{g.Title(), g.Description(), imageDesc} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}
