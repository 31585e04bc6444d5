package ontology

import (
	"context"

	"github.com/wabenzi/prethrift/internal/domain/attribute"
)

// Assister is the optional model-backed pass that enriches rule extraction.
// Implementations must return only closed-taxonomy assignments.
type Assister interface {
	Extract(ctx context.Context, text string) ([]attribute.Assignment, error)
}
