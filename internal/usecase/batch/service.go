// Package batch ingests and deletes garments in bulk with per-item error
// reporting. Listing texts go to the provider in a single batch call;
// storage writes go out in one pipelined round trip.
package batch

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wabenzi/prethrift/internal/domain"
	dombatch "github.com/wabenzi/prethrift/internal/domain/batch"
	"github.com/wabenzi/prethrift/internal/domain/garment"
	"github.com/wabenzi/prethrift/internal/metrics"
)

// MaxBatchSize is the maximum number of items per batch request.
const MaxBatchSize = 100

// Deps carries the batch service collaborators. Describer may be nil,
// which disables image captioning.
type Deps struct {
	Bulk      BulkUpserter
	Deleter   GarmentDeleter
	Extractor Extractor
	Describer Describer
	Embedder  Embedder
}

// Service handles batch garment operations.
type Service struct {
	bulk         BulkUpserter
	del          GarmentDeleter
	extractor    Extractor
	describer    Describer
	embedder     Embedder
	logger       *zap.Logger
	maxBatchSize int
}

// New creates a batch service.
func New(d Deps, logger *zap.Logger) *Service {
	return &Service{
		bulk:         d.Bulk,
		del:          d.Deleter,
		extractor:    d.Extractor,
		describer:    d.Describer,
		embedder:     d.Embedder,
		logger:       logger,
		maxBatchSize: MaxBatchSize,
	}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// Upsert ingests garments in batch. Captioning and extraction run per
// item; embedding and indexing are batched, so a provider or storage
// failure fails every pending item at once.
func (s *Service) Upsert(ctx context.Context, items []garment.Garment) []dombatch.Result {
	results := make([]dombatch.Result, len(items))

	if len(items) > s.maxBatchSize {
		err := fmt.Errorf("batch size %d exceeds %d: %w",
			len(items), s.maxBatchSize, domain.ErrInvalidGarment)
		return failAll(results, items, err)
	}
	if len(items) == 0 {
		return results
	}

	texts := make([]string, len(items))
	captions := make([]string, len(items))
	for i := range items {
		captions[i] = s.describe(ctx, &items[i])
		extraction := s.extractor.Extract(ctx, extractionText(&items[i], captions[i]))
		items[i] = items[i].WithAttributes(extraction.Assignments)
		texts[i] = listingText(&items[i])
	}

	textRes, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return failAll(results, items, fmt.Errorf("vectorize %d listings: %w", len(items), err))
	}
	domain.UsageFromContext(ctx).RecordBatch(textRes)

	imageVecs := s.embedCaptions(ctx, captions)
	for i := range items {
		items[i] = items[i].WithVectors(textRes.Vectors[i], imageVecs[i])
	}

	if err := s.bulk.UpsertMulti(ctx, items); err != nil {
		return failAll(results, items, fmt.Errorf("index %d garments: %w", len(items), err))
	}

	metrics.GarmentsIndexedTotal.Add(float64(len(items)))
	for i := range items {
		results[i] = dombatch.NewOK(items[i].ID())
	}
	return results
}

// Delete removes garments by ID in batch.
func (s *Service) Delete(ctx context.Context, ids []string) []dombatch.Result {
	results := make([]dombatch.Result, len(ids))

	if len(ids) > s.maxBatchSize {
		err := fmt.Errorf("batch size %d exceeds %d: %w",
			len(ids), s.maxBatchSize, domain.ErrInvalidGarment)
		for i, id := range ids {
			results[i] = dombatch.NewError(id, err)
		}
		return results
	}

	for i, id := range ids {
		if err := s.del.Delete(ctx, id); err != nil {
			results[i] = dombatch.NewError(id, fmt.Errorf("delete: %w", err))
			continue
		}
		results[i] = dombatch.NewOK(id)
	}
	return results
}

// describe captions one garment image. Vision failures are not fatal: the
// item still indexes with its text vector.
func (s *Service) describe(ctx context.Context, g *garment.Garment) string {
	if s.describer == nil || g.ImagePath() == "" {
		return ""
	}

	desc, err := s.describer.Describe(ctx, g.ImagePath())
	if err != nil {
		s.logger.Warn("image description failed, indexing without image vector",
			zap.String("garment_id", g.ID()), zap.Error(err))
		return ""
	}
	return desc
}

// embedCaptions batch-embeds the non-empty captions, keyed back to item
// positions. A provider failure here leaves every image vector nil; the
// items still index with their text vectors.
func (s *Service) embedCaptions(ctx context.Context, captions []string) [][]float32 {
	vecs := make([][]float32, len(captions))

	texts := make([]string, 0, len(captions))
	idx := make([]int, 0, len(captions))
	for i, c := range captions {
		if c != "" {
			texts = append(texts, c)
			idx = append(idx, i)
		}
	}
	if len(texts) == 0 {
		return vecs
	}

	res, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		s.logger.Warn("caption embedding failed, indexing without image vectors",
			zap.Int("captions", len(texts)), zap.Error(err))
		return vecs
	}
	domain.UsageFromContext(ctx).RecordBatch(res)

	for j, i := range idx {
		vecs[i] = res.Vectors[j]
	}
	return vecs
}

func failAll(results []dombatch.Result, items []garment.Garment, err error) []dombatch.Result {
	for i := range items {
		results[i] = dombatch.NewError(items[i].ID(), err)
	}
	return results
}

// listingText is the text-modality embedding input.
func listingText(g *garment.Garment) string {
	if g.Description() == "" {
		return g.Title()
	}
	return g.Title() + "\n" + g.Description()
}

// extractionText is the attribute-extraction input, caption included.
func extractionText(g *garment.Garment, caption string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{g.Title(), g.Description(), caption} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}
