package memory

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/wabenzi/prethrift/internal/db"
	"github.com/wabenzi/prethrift/internal/domain/filter"
)

// SearchKNN scans every hash under the index prefixes, applies the
// pre-filter, then ranks the survivors by exact cosine distance.
// Semantics mirror the redis driver: filtering narrows the candidate
// set before the top-k cut, and ties sort by key for determinism.
func (s *Store) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.VectorField == "" {
		return nil, fmt.Errorf("vector field is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("unknown index name %s", q.IndexName)}
	}

	vecField := resolveField(def, q.VectorField)
	if vecField == nil || vecField.Type != db.IndexFieldVector {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("unknown vector field %s", q.VectorField)}
	}
	if len(q.Vector) != vecField.VectorDim {
		return nil, &db.Error{
			Op:  db.OpSearch,
			Err: fmt.Errorf("query dim %d does not match index dim %d", len(q.Vector), vecField.VectorDim),
		}
	}

	var entries []db.SearchEntry
	for key, doc := range s.hashes {
		if !underPrefix(key, def.Prefixes) {
			continue
		}
		if !matchExpression(def, doc, q.Filters) {
			continue
		}
		vec, ok := decodeVector(doc[vecField.Name], vecField.VectorDim)
		if !ok {
			// Documents missing the queried vector field are not indexed for it.
			continue
		}
		entries = append(entries, db.SearchEntry{
			Key:      key,
			Distance: cosineDistance(q.Vector, vec),
			Fields:   pickFields(doc, q.ReturnFields),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Distance != entries[j].Distance {
			return entries[i].Distance < entries[j].Distance
		}
		return entries[i].Key < entries[j].Key
	})
	if len(entries) > q.K {
		entries = entries[:q.K]
	}

	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

// resolveField finds a schema field by its AS alias or raw name.
func resolveField(def *db.IndexDefinition, name string) *db.IndexField {
	for i := range def.Fields {
		f := &def.Fields[i]
		if f.Alias == name || f.Name == name {
			return f
		}
	}
	return nil
}

func underPrefix(key string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// matchExpression applies must/should/must_not groups to a document.
func matchExpression(def *db.IndexDefinition, doc map[string]string, expr filter.Expression) bool {
	for _, cond := range expr.Must() {
		if !matchCondition(def, doc, cond) {
			return false
		}
	}
	if should := expr.Should(); len(should) > 0 {
		matched := false
		for _, cond := range should {
			if matchCondition(def, doc, cond) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, cond := range expr.MustNot() {
		if matchCondition(def, doc, cond) {
			return false
		}
	}
	return true
}

func matchCondition(def *db.IndexDefinition, doc map[string]string, cond filter.Condition) bool {
	f := resolveField(def, cond.Key())
	if f == nil {
		return false
	}
	raw, ok := doc[f.Name]
	if !ok {
		return false
	}

	switch {
	case cond.IsMatch() && f.Type == db.IndexFieldTag:
		return matchTag(raw, cond.Match(), f)
	case cond.IsRange() && f.Type == db.IndexFieldNumeric:
		return matchRange(raw, *cond.Range())
	default:
		return false
	}
}

// matchTag splits the stored value on the field separator and compares
// tags trimmed and case-insensitively, matching the default TAG behavior
// of the Redis index.
func matchTag(raw, want string, f *db.IndexField) bool {
	sep := f.TagSeparator
	if sep == "" {
		sep = ","
	}
	for _, tag := range strings.Split(raw, sep) {
		if strings.EqualFold(strings.TrimSpace(tag), want) {
			return true
		}
	}
	return false
}

func matchRange(raw string, r filter.Range) bool {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false
	}
	if b := r.GT(); b != nil && v <= *b {
		return false
	}
	if b := r.GTE(); b != nil && v < *b {
		return false
	}
	if b := r.LT(); b != nil && v >= *b {
		return false
	}
	if b := r.LTE(); b != nil && v > *b {
		return false
	}
	return true
}

// decodeVector reads the little-endian float32 blob stored in a hash field.
func decodeVector(raw string, dim int) ([]float32, bool) {
	if len(raw) != dim*4 {
		return nil, false
	}
	buf := []byte(raw)
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, true
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func pickFields(doc map[string]string, names []string) map[string]string {
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := doc[name]; ok {
			out[name] = v
		}
	}
	return out
}
