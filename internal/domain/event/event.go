// Package event defines feedback events emitted by marketplace clients.
package event

import (
	"fmt"
	"time"

	"github.com/wabenzi/prethrift/internal/domain"
)

// Action is a finite set of user reactions to a garment.
type Action string

const (
	// ActionLike is an explicit positive signal.
	ActionLike Action = "like"
	// ActionDislike is an explicit negative signal.
	ActionDislike Action = "dislike"
	// ActionClick is a weak positive signal (opened the listing).
	ActionClick Action = "click"
	// ActionIgnore is recorded but moves no weights.
	ActionIgnore Action = "ignore"
)

// IsValid reports whether a is a known action.
func (a Action) IsValid() bool {
	switch a {
	case ActionLike, ActionDislike, ActionClick, ActionIgnore:
		return true
	}
	return false
}

// Feedback is a validated feedback event. The ID makes re-delivery
// idempotent: processing the same ID twice is a no-op.
type Feedback struct {
	id        string
	userID    string
	garmentID string
	action    Action
	createdAt time.Time
}

// New validates and creates a Feedback event.
func New(id, userID, garmentID string, action Action, createdAt time.Time) (Feedback, error) {
	if id == "" {
		return Feedback{}, fmt.Errorf("event ID is required: %w", domain.ErrInvalidEvent)
	}
	if userID == "" {
		return Feedback{}, fmt.Errorf("user ID is required: %w", domain.ErrInvalidEvent)
	}
	if garmentID == "" {
		return Feedback{}, fmt.Errorf("garment ID is required: %w", domain.ErrInvalidEvent)
	}
	if !action.IsValid() {
		return Feedback{}, fmt.Errorf("unknown action %q: %w", action, domain.ErrInvalidEvent)
	}
	return Feedback{id: id, userID: userID, garmentID: garmentID, action: action, createdAt: createdAt}, nil
}

// ID returns the event identifier.
func (f *Feedback) ID() string { return f.id }

// UserID returns the acting user.
func (f *Feedback) UserID() string { return f.userID }

// GarmentID returns the target garment.
func (f *Feedback) GarmentID() string { return f.garmentID }

// Action returns the user reaction.
func (f *Feedback) Action() Action { return f.action }

// CreatedAt returns the event timestamp.
func (f *Feedback) CreatedAt() time.Time { return f.createdAt }
