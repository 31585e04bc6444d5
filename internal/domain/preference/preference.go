// Package preference defines the per-user learned taste vector.
package preference

import (
	"math"
	"time"
)

// DefaultHalfLife is the decay half-life applied to stored weights at read time.
const DefaultHalfLife = 30 * 24 * time.Hour

// Vector holds learned attribute weights for one user, keyed by
// "family:value". Weights are signed: positive attracts, negative repels.
// maxAbs tracks the running maximum absolute weight ever applied and is the
// normalization denominator for the preference score.
type Vector struct {
	userID    string
	weights   map[string]float64
	maxAbs    float64
	updatedAt time.Time
}

// New creates an empty preference vector for a user.
func New(userID string) Vector {
	return Vector{userID: userID, weights: make(map[string]float64)}
}

// Reconstruct creates a Vector from stored state (no validation).
func Reconstruct(userID string, weights map[string]float64, maxAbs float64, updatedAt time.Time) Vector {
	if weights == nil {
		weights = make(map[string]float64)
	}
	return Vector{userID: userID, weights: weights, maxAbs: maxAbs, updatedAt: updatedAt}
}

// UserID returns the owning user.
func (v *Vector) UserID() string { return v.userID }

// Weight returns the stored weight for a "family:value" key, 0 when absent.
func (v *Vector) Weight(key string) float64 { return v.weights[key] }

// Weights returns a copy of all stored weights.
func (v *Vector) Weights() map[string]float64 {
	c := make(map[string]float64, len(v.weights))
	for k, w := range v.weights {
		c[k] = w
	}
	return c
}

// MaxAbs returns the running maximum absolute weight.
func (v *Vector) MaxAbs() float64 { return v.maxAbs }

// UpdatedAt returns when the vector was last written.
func (v *Vector) UpdatedAt() time.Time { return v.updatedAt }

// Len returns the number of non-zero weights.
func (v *Vector) Len() int { return len(v.weights) }

// Apply adds delta to the weight under key, clipping the result to
// [-maxWeight, maxWeight], and advances the running max.
func (v *Vector) Apply(key string, delta, maxWeight float64, now time.Time) {
	w := v.weights[key] + delta
	if w > maxWeight {
		w = maxWeight
	}
	if w < -maxWeight {
		w = -maxWeight
	}
	v.weights[key] = w
	if abs := math.Abs(w); abs > v.maxAbs {
		v.maxAbs = abs
	}
	v.updatedAt = now
}

// Decayed returns a copy with every weight (and the running max) scaled by
// an exponential half-life factor based on the age of the last write.
// A zero updatedAt or non-positive half-life leaves the vector unchanged.
func (v *Vector) Decayed(now time.Time, halfLife time.Duration) Vector {
	if v.updatedAt.IsZero() || halfLife <= 0 {
		return *v
	}
	age := now.Sub(v.updatedAt)
	if age <= 0 {
		return *v
	}

	factor := math.Exp(-math.Ln2 * age.Seconds() / halfLife.Seconds())
	weights := make(map[string]float64, len(v.weights))
	for k, w := range v.weights {
		weights[k] = w * factor
	}
	return Vector{
		userID:    v.userID,
		weights:   weights,
		maxAbs:    v.maxAbs * factor,
		updatedAt: v.updatedAt,
	}
}
