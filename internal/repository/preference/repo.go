package preference

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/wabenzi/prethrift/internal/domain"
	dompref "github.com/wabenzi/prethrift/internal/domain/preference"
)

// Bookkeeping hash fields. Attribute weight keys carry a colon
// ("family:value"), so plain __ names cannot collide with them.
const (
	fieldMaxAbs    = "__max_abs"
	fieldUpdatedAt = "__updated_at"
)

// store is the consumer interface for preference persistence (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
}

// Repo persists per-user preference vectors as one hash per user.
// Weights are stored raw; half-life decay is the caller's concern.
type Repo struct {
	store store
}

// New creates a preference repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Get returns the stored vector for a user. Users without feedback history
// get an empty vector, not an error. Store failures surface as
// domain.ErrPreferenceUnavailable so the ranking path can degrade.
func (r *Repo) Get(ctx context.Context, userID string) (dompref.Vector, error) {
	m, err := r.store.HGetAll(ctx, prefKey(userID))
	if err != nil {
		return dompref.Vector{}, fmt.Errorf(
			"hgetall preferences %s: %w: %w", userID, domain.ErrPreferenceUnavailable, err)
	}
	if len(m) == 0 {
		return dompref.New(userID), nil
	}
	return vectorFromHash(userID, m), nil
}

// Put stores the full vector. Weight keys are never removed; decay and
// clipping keep them bounded.
func (r *Repo) Put(ctx context.Context, v *dompref.Vector) error {
	if err := r.store.HSet(ctx, prefKey(v.UserID()), vectorToHash(v)); err != nil {
		return fmt.Errorf(
			"hset preferences %s: %w: %w", v.UserID(), domain.ErrPreferenceUnavailable, err)
	}
	return nil
}

// vectorToHash flattens a preference vector into hash fields.
func vectorToHash(v *dompref.Vector) map[string]string {
	weights := v.Weights()
	m := make(map[string]string, len(weights)+2)
	for k, w := range weights {
		m[k] = strconv.FormatFloat(w, 'f', -1, 64)
	}
	m[fieldMaxAbs] = strconv.FormatFloat(v.MaxAbs(), 'f', -1, 64)
	m[fieldUpdatedAt] = strconv.FormatInt(v.UpdatedAt().Unix(), 10)
	return m
}

// vectorFromHash hydrates a preference vector. Unparsable weight fields are
// skipped rather than failing the read.
func vectorFromHash(userID string, m map[string]string) dompref.Vector {
	weights := make(map[string]float64, len(m))
	var maxAbs float64
	var updatedAt time.Time

	for k, raw := range m {
		switch k {
		case fieldMaxAbs:
			maxAbs, _ = strconv.ParseFloat(raw, 64)
		case fieldUpdatedAt:
			if sec, err := strconv.ParseInt(raw, 10, 64); err == nil && sec > 0 {
				updatedAt = time.Unix(sec, 0)
			}
		default:
			if w, err := strconv.ParseFloat(raw, 64); err == nil {
				weights[k] = w
			}
		}
	}

	return dompref.Reconstruct(userID, weights, maxAbs, updatedAt)
}

// Redis key pattern: prethrift:pref:{userID}

func prefKey(userID string) string {
	return fmt.Sprintf("%spref:%s", domain.KeyPrefix, userID)
}
