// Package query defines the validated discovery search request.
package query

import (
	"fmt"

	"github.com/wabenzi/prethrift/internal/domain"
)

// Search parameter limits.
const (
	// MaxTextLength is the maximum allowed query text length.
	MaxTextLength = 2048
	// MaxImageRefLength is the maximum allowed image reference length.
	MaxImageRefLength = 2048
	DefaultLimit      = 20
	MaxLimit          = 100
)

// Request is a validated discovery query. An empty text with a present image
// reference is allowed; fully empty input is admitted here and blocked by the
// guardrail gate, which owns that decision.
type Request struct {
	text     string
	imageRef string
	userID   string
	limit    int
	force    bool
}

// New validates and normalizes search parameters. Defaults: limit=20.
func New(text, imageRef, userID string, limit int, force bool) (Request, error) {
	if len(text) > MaxTextLength {
		return Request{}, fmt.Errorf("query text too long (max %d chars): %w", MaxTextLength, domain.ErrInvalidQuery)
	}
	if len(imageRef) > MaxImageRefLength {
		return Request{}, fmt.Errorf("image reference too long (max %d chars): %w", MaxImageRefLength, domain.ErrInvalidQuery)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Request{
		text:     text,
		imageRef: imageRef,
		userID:   userID,
		limit:    limit,
		force:    force,
	}, nil
}

// Text returns the raw query text.
func (r *Request) Text() string { return r.text }

// ImageRef returns the optional image reference (URL), possibly empty.
func (r *Request) ImageRef() string { return r.imageRef }

// UserID returns the requesting user, possibly empty for anonymous queries.
func (r *Request) UserID() string { return r.userID }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }

// Force reports whether the caller asked to override a soft guardrail block.
func (r *Request) Force() bool { return r.force }
