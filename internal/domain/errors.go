package domain

import "errors"

var (
	// ErrGarmentNotFound signals a missing garment.
	ErrGarmentNotFound = errors.New("garment not found")
	// ErrUserNotFound signals a user with no stored state.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidQuery signals a malformed search request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidEvent signals a malformed feedback event.
	ErrInvalidEvent = errors.New("invalid feedback event")
	// ErrInvalidGarment signals a malformed garment payload.
	ErrInvalidGarment = errors.New("invalid garment")

	// ErrIndexUnavailable signals that the similarity index cannot be reached.
	// Fatal for the request; safe to retry (searches make no writes).
	ErrIndexUnavailable = errors.New("similarity index unavailable")
	// ErrEmbeddingUnavailable signals an embedding provider failure.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrExtractionUnavailable signals an assisted-extraction provider failure.
	ErrExtractionUnavailable = errors.New("assisted extraction unavailable")
	// ErrVisionUnavailable signals an image-description provider failure.
	ErrVisionUnavailable = errors.New("vision provider unavailable")
	// ErrPreferenceUnavailable signals that the preference store cannot be reached.
	ErrPreferenceUnavailable = errors.New("preference store unavailable")

	// ErrEmbeddingQuotaExceeded signals an exhausted provider token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
)
