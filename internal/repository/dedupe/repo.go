package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/wabenzi/prethrift/internal/domain"
)

var eventKeyPrefix = domain.KeyPrefix + "event:"

// store is the consumer interface for idempotency claims (ISP).
type store interface {
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// Repo claims feedback event ids so replays inside the TTL window are
// detected before any weight is touched.
type Repo struct {
	store store
	ttl   time.Duration
}

// New creates a dedupe repository. ttl bounds how long a claim is remembered.
func New(s store, ttl time.Duration) *Repo {
	return &Repo{store: s, ttl: ttl}
}

// Claim records the event id. Returns false when the id was already claimed,
// meaning the event must not be applied again.
func (r *Repo) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := r.store.SetNX(ctx, eventKeyPrefix+eventID, []byte("1"), r.ttl)
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return ok, nil
}

// Release gives a claimed id back, so a retry after a failed apply is not
// mistaken for a replay.
func (r *Repo) Release(ctx context.Context, eventID string) error {
	if err := r.store.Del(ctx, eventKeyPrefix+eventID); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}
