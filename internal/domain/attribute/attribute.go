// Package attribute defines the closed garment attribute taxonomy shared by
// extraction, scoring, and feedback.
package attribute

import (
	"fmt"
	"sort"
	"strings"
)

// Family is one dimension of the garment taxonomy. The set is closed:
// descriptors outside it travel as free-form metadata, never as assignments.
type Family string

const (
	// FamilyCategory is the garment type (dress, jacket, ...). Single-valued.
	FamilyCategory Family = "category"
	// FamilyFit is the cut (slim, oversized, ...).
	FamilyFit Family = "fit"
	// FamilyMaterial is the fabric (denim, wool, ...).
	FamilyMaterial Family = "material"
	// FamilyColorPrimary is the dominant color.
	FamilyColorPrimary Family = "color_primary"
	// FamilyPattern is the surface pattern (solid, striped, ...).
	FamilyPattern Family = "pattern"
	// FamilyStyle is the aesthetic (vintage, streetwear, ...).
	FamilyStyle Family = "style"
	// FamilySeason is the wearing season.
	FamilySeason Family = "season"
	// FamilyOccasion is the wearing occasion.
	FamilyOccasion Family = "occasion"
)

// Families returns every family in canonical order.
func Families() []Family {
	return []Family{
		FamilyCategory,
		FamilyFit,
		FamilyMaterial,
		FamilyColorPrimary,
		FamilyPattern,
		FamilyStyle,
		FamilySeason,
		FamilyOccasion,
	}
}

// IsValid reports whether f is part of the closed family set.
func (f Family) IsValid() bool {
	switch f {
	case FamilyCategory, FamilyFit, FamilyMaterial, FamilyColorPrimary,
		FamilyPattern, FamilyStyle, FamilySeason, FamilyOccasion:
		return true
	}
	return false
}

// Source identifies which extraction pass produced an assignment.
type Source string

const (
	// SourceRule marks assignments from the deterministic keyword pass.
	SourceRule Source = "rule"
	// SourceAssisted marks assignments from the LLM-assisted pass.
	SourceAssisted Source = "assisted"
)

// Assignment binds a family:value pair to a confidence in [0, 1].
type Assignment struct {
	family     Family
	value      string
	confidence float64
	source     Source
}

// New validates and creates an Assignment. The value is lowercased.
func New(family Family, value string, confidence float64, source Source) (Assignment, error) {
	if !family.IsValid() {
		return Assignment{}, fmt.Errorf("unknown attribute family %q", family)
	}
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return Assignment{}, fmt.Errorf("attribute value is required for family %q", family)
	}
	if confidence < 0 || confidence > 1 {
		return Assignment{}, fmt.Errorf("confidence must be in [0, 1], got %g", confidence)
	}
	if source != SourceRule && source != SourceAssisted {
		return Assignment{}, fmt.Errorf("unknown assignment source %q", source)
	}
	return Assignment{family: family, value: value, confidence: confidence, source: source}, nil
}

// Reconstruct creates an Assignment without validation (storage hydration).
func Reconstruct(family Family, value string, confidence float64, source Source) Assignment {
	return Assignment{family: family, value: value, confidence: confidence, source: source}
}

// Family returns the taxonomy dimension.
func (a Assignment) Family() Family { return a.family }

// Value returns the canonical value.
func (a Assignment) Value() string { return a.value }

// Confidence returns the confidence in [0, 1].
func (a Assignment) Confidence() float64 { return a.confidence }

// Source returns which pass produced the assignment.
func (a Assignment) Source() Source { return a.source }

// Key returns the "family:value" identity used for overlap and preference lookups.
func (a Assignment) Key() string { return string(a.family) + ":" + a.value }

// Merge combines rule and assisted assignments, keeping at most one
// assignment per family. When both passes populate a family the higher
// confidence wins; exact ties favor the assisted source. Output order is
// canonical (family order) so repeated merges are byte-identical.
func Merge(rule, assisted []Assignment) []Assignment {
	byFamily := make(map[Family]Assignment, len(rule)+len(assisted))
	for _, a := range rule {
		byFamily[a.family] = a
	}
	for _, a := range assisted {
		prev, ok := byFamily[a.family]
		if !ok || a.confidence >= prev.confidence {
			byFamily[a.family] = a
		}
	}

	out := make([]Assignment, 0, len(byFamily))
	for _, a := range byFamily {
		out = append(out, a)
	}
	Sort(out)
	return out
}

// Sort orders assignments canonically: family order, then value.
func Sort(as []Assignment) {
	rank := make(map[Family]int, len(Families()))
	for i, f := range Families() {
		rank[f] = i
	}
	sort.SliceStable(as, func(i, j int) bool {
		if as[i].family != as[j].family {
			return rank[as[i].family] < rank[as[j].family]
		}
		return as[i].value < as[j].value
	})
}
