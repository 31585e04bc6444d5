package feedback

import (
	"context"

	"github.com/wabenzi/prethrift/internal/domain/garment"
	"github.com/wabenzi/prethrift/internal/domain/preference"
)

// Deduper claims event ids so redelivered events apply at most once.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// GarmentReader loads the garment whose attributes the event reinforces.
type GarmentReader interface {
	Get(ctx context.Context, id string) (garment.Garment, error)
}

// PreferenceStore reads and writes per-user taste vectors.
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (preference.Vector, error)
	Put(ctx context.Context, v *preference.Vector) error
}
