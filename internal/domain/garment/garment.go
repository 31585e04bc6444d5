// Package garment defines the garment aggregate stored in the catalog.
package garment

import (
	"fmt"
	"regexp"

	"github.com/wabenzi/prethrift/internal/domain/attribute"
)

var (
	idRegex     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	reservedIDs = map[string]bool{"search": true, "similar": true, "batch": true}
)

const (
	// MaxTitleSize is the maximum title length in bytes.
	MaxTitleSize = 512
	// MaxDescriptionSize is the maximum description length in bytes.
	MaxDescriptionSize = 16384
)

// Garment is the catalog aggregate (immutable value object).
// Extras holds free-form descriptors outside the closed attribute taxonomy;
// they are stored and returned as-is but never scored.
type Garment struct {
	id          string
	title       string
	brand       string
	price       float64
	currency    string
	imagePath   string
	description string
	attributes  []attribute.Assignment
	extras      map[string]string
	textVector  []float32
	imageVector []float32
}

// New validates and creates a Garment.
// ID: ^[a-zA-Z0-9_-]+$, 1-256 chars, not reserved. Title required.
func New(
	id, title, brand string, price float64, currency, imagePath, description string,
	attributes []attribute.Assignment, extras map[string]string,
) (Garment, error) {
	if id == "" {
		return Garment{}, fmt.Errorf("garment ID is required")
	}
	if len(id) > 256 {
		return Garment{}, fmt.Errorf("garment ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Garment{}, fmt.Errorf("garment ID must be alphanumeric with underscores and hyphens")
	}
	if reservedIDs[id] {
		return Garment{}, fmt.Errorf("garment ID %q is reserved", id)
	}
	if title == "" {
		return Garment{}, fmt.Errorf("title is required")
	}
	if len(title) > MaxTitleSize {
		return Garment{}, fmt.Errorf("title too long (max %d bytes)", MaxTitleSize)
	}
	if len(description) > MaxDescriptionSize {
		return Garment{}, fmt.Errorf("description too large (max %d bytes)", MaxDescriptionSize)
	}
	if price < 0 {
		return Garment{}, fmt.Errorf("price must not be negative")
	}

	return Garment{
		id:          id,
		title:       title,
		brand:       brand,
		price:       price,
		currency:    currency,
		imagePath:   imagePath,
		description: description,
		attributes:  cloneAssignments(attributes),
		extras:      cloneStringMap(extras),
	}, nil
}

// Reconstruct creates a Garment without validation (storage hydration).
func Reconstruct(
	id, title, brand string, price float64, currency, imagePath, description string,
	attributes []attribute.Assignment, extras map[string]string,
	textVector, imageVector []float32,
) Garment {
	return Garment{
		id: id, title: title, brand: brand, price: price, currency: currency,
		imagePath: imagePath, description: description,
		attributes: attributes, extras: extras,
		textVector: textVector, imageVector: imageVector,
	}
}

// ID returns the garment identifier.
func (g *Garment) ID() string { return g.id }

// Title returns the listing title.
func (g *Garment) Title() string { return g.title }

// Brand returns the brand name, possibly empty.
func (g *Garment) Brand() string { return g.brand }

// Price returns the listing price.
func (g *Garment) Price() float64 { return g.price }

// Currency returns the ISO currency code, possibly empty.
func (g *Garment) Currency() string { return g.currency }

// ImagePath returns the primary image reference, possibly empty.
func (g *Garment) ImagePath() string { return g.imagePath }

// Description returns the listing description.
func (g *Garment) Description() string { return g.description }

// Attributes returns the taxonomy assignments.
func (g *Garment) Attributes() []attribute.Assignment { return g.attributes }

// Extras returns free-form descriptors outside the taxonomy.
func (g *Garment) Extras() map[string]string { return g.extras }

// TextVector returns the description embedding.
func (g *Garment) TextVector() []float32 { return g.textVector }

// ImageVector returns the image-description embedding.
func (g *Garment) ImageVector() []float32 { return g.imageVector }

// WithAttributes returns a copy with the given assignments set.
func (g *Garment) WithAttributes(as []attribute.Assignment) Garment {
	c := *g
	c.attributes = cloneAssignments(as)
	return c
}

// WithVectors returns a copy with the given embeddings set.
func (g *Garment) WithVectors(text, image []float32) Garment {
	c := *g
	c.textVector = text
	c.imageVector = image
	return c
}

// WithDescription returns a copy with the given description set.
func (g *Garment) WithDescription(d string) Garment {
	c := *g
	c.description = d
	return c
}

func cloneAssignments(as []attribute.Assignment) []attribute.Assignment {
	if as == nil {
		return nil
	}
	return append([]attribute.Assignment(nil), as...)
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
