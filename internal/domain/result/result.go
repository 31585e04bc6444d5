// Package result defines ranked discovery results with score breakdowns.
package result

import "github.com/wabenzi/prethrift/internal/domain/garment"

// Breakdown exposes the per-component contribution behind a final score.
// Each component keeps its own range: similarity and preference are roughly
// [-1, 1], attribute overlap is [0, 1].
type Breakdown struct {
	Similarity       float64
	AttributeOverlap float64
	Preference       float64
}

// Ranked is a single scored discovery hit.
type Ranked struct {
	garment   garment.Garment
	score     float64
	breakdown Breakdown
}

// New creates a ranked result.
func New(g garment.Garment, score float64, breakdown Breakdown) Ranked {
	return Ranked{garment: g, score: score, breakdown: breakdown}
}

// Garment returns the underlying catalog entry.
func (r *Ranked) Garment() garment.Garment { return r.garment }

// Score returns the blended final score.
func (r *Ranked) Score() float64 { return r.score }

// Breakdown returns the per-component contributions.
func (r *Ranked) Breakdown() Breakdown { return r.breakdown }

// Neighbor is one nearest-neighbor hit before hydration and scoring.
// Distance is the raw cosine distance reported by the index, in [0, 2].
type Neighbor struct {
	GarmentID string
	Distance  float64
}

// Similar is one similar-garment hit, hydrated from the catalog.
// Similarity is 1 minus the index distance.
type Similar struct {
	Garment    garment.Garment
	Similarity float64
}

// Degraded flags describe which pipeline stages ran in reduced form.
const (
	// DegradedEmbeddingFallback marks hash-projected query vectors.
	DegradedEmbeddingFallback = "embedding_fallback"
	// DegradedExtractionRuleOnly marks a failed assisted extraction pass.
	DegradedExtractionRuleOnly = "extraction_rule_only"
	// DegradedPreferenceUnavailable marks an unreachable preference store.
	DegradedPreferenceUnavailable = "preference_unavailable"
)
