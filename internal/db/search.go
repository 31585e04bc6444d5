package db

import "github.com/wabenzi/prethrift/internal/domain/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filters      filter.Expression
	VectorField  string // schema field holding the vector, e.g. "text_vec"
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a KNN search. Distance is the
// raw metric value reported by the engine (cosine distance in [0, 2]).
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}
