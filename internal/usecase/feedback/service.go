// Package feedback turns interaction events into preference weight updates.
// Processing is idempotent per event id and serialized per user; it never
// runs on the search path.
package feedback

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wabenzi/prethrift/internal/domain/event"
	"github.com/wabenzi/prethrift/internal/domain/preference"
	"github.com/wabenzi/prethrift/internal/metrics"
)

// Params configures preference learning.
type Params struct {
	// Delta is the base weight step for an explicit like or dislike.
	// Clicks move half a step, ignores move nothing.
	Delta float64
	// MaxWeight clips every stored weight to [-MaxWeight, MaxWeight].
	MaxWeight float64
	// HalfLife is the decay applied to stored weights when reading a
	// snapshot, matching what the ranking path sees.
	HalfLife time.Duration
}

// DefaultParams returns the shipped learning rates.
func DefaultParams() Params {
	return Params{Delta: 0.2, MaxWeight: 3, HalfLife: preference.DefaultHalfLife}
}

// Service applies feedback events to preference vectors.
type Service struct {
	dedupe   Deduper
	garments GarmentReader
	prefs    PreferenceStore
	params   Params
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// New creates the feedback service.
func New(dedupe Deduper, garments GarmentReader, prefs PreferenceStore, params Params, logger *zap.Logger) *Service {
	return &Service{
		dedupe:   dedupe,
		garments: garments,
		prefs:    prefs,
		params:   params,
		logger:   logger,
		now:      time.Now,
		users:    make(map[string]*sync.Mutex),
	}
}

// Process applies one event. It reports whether any weight moved: false for
// replayed ids and for actions that carry no signal. A failure after the
// claim releases the id so the caller can safely resubmit.
func (s *Service) Process(ctx context.Context, f *event.Feedback) (bool, error) {
	fresh, err := s.dedupe.Claim(ctx, f.ID())
	if err != nil {
		return false, fmt.Errorf("claim feedback event: %w", err)
	}
	if !fresh {
		metrics.FeedbackEventsTotal.WithLabelValues(string(f.Action()), "false").Inc()
		s.logger.Debug("feedback event already processed",
			zap.String("event_id", f.ID()),
			zap.String("user_id", f.UserID()))
		return false, nil
	}

	applied, err := s.apply(ctx, f)
	if err != nil {
		if rerr := s.dedupe.Release(context.WithoutCancel(ctx), f.ID()); rerr != nil {
			s.logger.Warn("failed to release feedback claim",
				zap.String("event_id", f.ID()), zap.Error(rerr))
		}
		return false, err
	}

	metrics.FeedbackEventsTotal.WithLabelValues(string(f.Action()), strconv.FormatBool(applied)).Inc()
	if applied {
		s.logger.Debug("feedback applied",
			zap.String("event_id", f.ID()),
			zap.String("user_id", f.UserID()),
			zap.String("garment_id", f.GarmentID()),
			zap.String("action", string(f.Action())))
	}
	return applied, nil
}

func (s *Service) apply(ctx context.Context, f *event.Feedback) (bool, error) {
	delta := actionDelta(f.Action(), s.params.Delta)
	if delta == 0 {
		return false, nil
	}

	g, err := s.garments.Get(ctx, f.GarmentID())
	if err != nil {
		return false, fmt.Errorf("load garment %s: %w", f.GarmentID(), err)
	}
	attrs := g.Attributes()
	if len(attrs) == 0 {
		return false, nil
	}

	// Reads from the ranking path stay lock-free; only writers for the
	// same user queue behind each other.
	lock := s.userLock(f.UserID())
	lock.Lock()
	defer lock.Unlock()

	vec, err := s.prefs.Get(ctx, f.UserID())
	if err != nil {
		return false, fmt.Errorf("load preferences for %s: %w", f.UserID(), err)
	}

	now := s.now()
	for _, a := range attrs {
		vec.Apply(a.Key(), delta*a.Confidence(), s.params.MaxWeight, now)
	}

	if err := s.prefs.Put(ctx, &vec); err != nil {
		return false, fmt.Errorf("store preferences for %s: %w", f.UserID(), err)
	}
	return true, nil
}

// Snapshot returns a user's preference vector with read-time decay applied.
// Users without history get an empty vector.
func (s *Service) Snapshot(ctx context.Context, userID string) (preference.Vector, error) {
	vec, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return preference.Vector{}, fmt.Errorf("load preferences for %s: %w", userID, err)
	}
	return vec.Decayed(s.now(), s.params.HalfLife), nil
}

// actionDelta maps an action to its signed weight step.
func actionDelta(a event.Action, delta float64) float64 {
	switch a {
	case event.ActionLike:
		return delta
	case event.ActionDislike:
		return -delta
	case event.ActionClick:
		return delta / 2
	}
	return 0
}

func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.users[userID]
	if !ok {
		l = &sync.Mutex{}
		s.users[userID] = l
	}
	return l
}
