// Package ranking blends vector similarity, attribute overlap, and learned
// user preference into one explainable score per garment.
package ranking

import (
	"sort"

	"github.com/wabenzi/prethrift/internal/domain"
	"github.com/wabenzi/prethrift/internal/domain/attribute"
	"github.com/wabenzi/prethrift/internal/domain/garment"
	"github.com/wabenzi/prethrift/internal/domain/preference"
	"github.com/wabenzi/prethrift/internal/domain/result"
)

// Weights configures the hybrid blend. All values come from configuration;
// DefaultWeights documents the shipped tuning.
type Weights struct {
	Similarity float64
	Attribute  float64
	Preference float64
	// TextModality and ImageModality average per-modality similarities when
	// a candidate matched on both vectors.
	TextModality  float64
	ImageModality float64
	// FallbackDiscount scales the similarity term when the query vector came
	// from the hash-projection embedder instead of the real model.
	FallbackDiscount float64
}

// DefaultWeights returns the shipped scorer tuning.
func DefaultWeights() Weights {
	return Weights{
		Similarity:       0.5,
		Attribute:        0.3,
		Preference:       0.2,
		TextModality:     0.6,
		ImageModality:    0.4,
		FallbackDiscount: 0.5,
	}
}

// Candidate pairs a hydrated garment with its raw cosine distances, keyed by
// the modality that produced each hit. A candidate found through one index
// query only carries that single distance.
type Candidate struct {
	Garment   garment.Garment
	Distances map[domain.Modality]float64
}

// Query carries the per-request signals the scorer blends.
type Query struct {
	// Attributes are the attributes extracted from the query text.
	Attributes []attribute.Assignment
	// Preference is the user's decayed taste vector. The zero value (no
	// user, or an unreachable store) scores every candidate at 0.
	Preference preference.Vector
	// HasVector is false only on total embedding failure. That removes the
	// similarity term and renormalizes the remaining weights.
	HasVector bool
	// Fallback marks a hash-projected query vector.
	Fallback bool
}

// Scorer ranks candidates. It is stateless and safe for concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given blend weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Rank scores every candidate and returns them best first, truncated to
// limit. Ties resolve by higher attribute overlap, then lower garment id,
// so equal inputs always produce the same order.
func (s *Scorer) Rank(candidates []Candidate, q Query, limit int) []result.Ranked {
	wSim, wAttr, wPref := s.weights.Similarity, s.weights.Attribute, s.weights.Preference
	if !q.HasVector {
		if total := wAttr + wPref; total > 0 {
			wAttr /= total
			wPref /= total
		}
		wSim = 0
	}

	queryAttrs := make(map[attribute.Family]attribute.Assignment, len(q.Attributes))
	for _, a := range q.Attributes {
		queryAttrs[a.Family()] = a
	}

	ranked := make([]result.Ranked, 0, len(candidates))
	for _, c := range candidates {
		b := result.Breakdown{
			AttributeOverlap: attributeOverlap(queryAttrs, c.Garment.Attributes()),
			Preference:       preferenceScore(q.Preference, c.Garment.Attributes()),
		}
		if q.HasVector {
			b.Similarity = s.similarity(c.Distances)
			if q.Fallback {
				b.Similarity *= s.weights.FallbackDiscount
			}
		}
		score := wSim*b.Similarity + wAttr*b.AttributeOverlap + wPref*b.Preference
		ranked = append(ranked, result.New(c.Garment, score, b))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score() != ranked[j].Score() {
			return ranked[i].Score() > ranked[j].Score()
		}
		bi, bj := ranked[i].Breakdown(), ranked[j].Breakdown()
		if bi.AttributeOverlap != bj.AttributeOverlap {
			return bi.AttributeOverlap > bj.AttributeOverlap
		}
		gi, gj := ranked[i].Garment(), ranked[j].Garment()
		return gi.ID() < gj.ID()
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// similarity converts distances to 1-d per modality and averages them by
// modality weight. Cosine distance is in [0, 2], so each term lands in
// [-1, 1].
func (s *Scorer) similarity(distances map[domain.Modality]float64) float64 {
	var weighted, total float64
	for m, d := range distances {
		w := s.modalityWeight(m)
		if w <= 0 {
			continue
		}
		weighted += w * (1 - d)
		total += w
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

func (s *Scorer) modalityWeight(m domain.Modality) float64 {
	switch m {
	case domain.ModalityText:
		return s.weights.TextModality
	case domain.ModalityImage:
		return s.weights.ImageModality
	}
	return 0
}

// attributeOverlap sums min(query confidence, garment confidence) over
// families where both sides agree on the value, divided by the number of
// query families. The measure is asymmetric: families missing or different
// on the garment add 0 rather than penalize, so sparse garment metadata is
// not punished.
func attributeOverlap(queryAttrs map[attribute.Family]attribute.Assignment, garmentAttrs []attribute.Assignment) float64 {
	if len(queryAttrs) == 0 {
		return 0
	}
	var sum float64
	for _, g := range garmentAttrs {
		q, ok := queryAttrs[g.Family()]
		if !ok || q.Value() != g.Value() {
			continue
		}
		if q.Confidence() < g.Confidence() {
			sum += q.Confidence()
		} else {
			sum += g.Confidence()
		}
	}
	return sum / float64(len(queryAttrs))
}

// preferenceScore sums weight*confidence over the garment's attributes and
// normalizes by the vector's running max, clamped to [-1, 1]. An empty
// vector scores 0.
func preferenceScore(pref preference.Vector, garmentAttrs []attribute.Assignment) float64 {
	maxAbs := pref.MaxAbs()
	if maxAbs == 0 {
		return 0
	}
	var sum float64
	for _, a := range garmentAttrs {
		sum += pref.Weight(a.Key()) * a.Confidence()
	}
	score := sum / maxAbs
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}
