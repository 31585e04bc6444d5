package memory

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/wabenzi/prethrift/internal/db"
	"github.com/wabenzi/prethrift/internal/domain/filter"
)

// --- hash.go tests ---

func TestHash_SetGetRoundTrip(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.HSet(ctx, "k1", map[string]string{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Second HSet merges, it does not replace.
	if err := s.HSet(ctx, "k1", map[string]string{"b": "3", "c": "4"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, err := s.HGetAll(ctx, "k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{"a": "1", "b": "3", "c": "4"}
	if len(m) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(m))
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("field %s: expected %q, got %q", k, v, m[k])
		}
	}
}

func TestHash_GetAllMissingKeyIsEmptyMap(t *testing.T) {
	s := NewStore()

	m, err := s.HGetAll(context.Background(), "absent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("expected empty map, got %v", m)
	}
}

func TestHash_ReturnedMapIsACopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.HSet(ctx, "k1", map[string]string{"a": "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, _ := s.HGetAll(ctx, "k1")
	m["a"] = "mutated"

	again, _ := s.HGetAll(ctx, "k1")
	if again["a"] != "1" {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestHash_SetMulti(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	items := []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"a": "1"}},
		{Key: "k2", Fields: map[string]string{"b": "2"}},
	}
	if err := s.HSetMulti(ctx, items); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := s.HGetAllMulti(ctx, []string{"k1", "missing", "k2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	if out[0]["a"] != "1" || out[2]["b"] != "2" {
		t.Errorf("unexpected results: %v", out)
	}
	if len(out[1]) != 0 {
		t.Errorf("expected empty map for missing key, got %v", out[1])
	}
}

func TestHash_DelAndExists(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.HSet(ctx, "k1", map[string]string{"a": "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, _ := s.Exists(ctx, "k1")
	if !ok {
		t.Fatal("expected key to exist")
	}

	if err := s.Del(ctx, "k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, _ = s.Exists(ctx, "k1")
	if ok {
		t.Fatal("expected key to be gone")
	}
}

// --- kv.go tests ---

func TestKV_SetWithTTLGetRoundTrip(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("expected v, got %s", got)
	}
}

func TestKV_GetMissingIsKeyNotFound(t *testing.T) {
	s := NewStore()

	_, err := s.Get(context.Background(), "absent")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestKV_TTLExpiry(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	base := time.Unix(1756000000, 0)
	s.now = func() time.Time { return base }

	if err := s.SetWithTTL(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("expected live key, got %v", err)
	}

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestKV_SetNX(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	ok, err := s.SetNX(ctx, "k", []byte("first"), time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected first SetNX to claim the key")
	}

	ok, err = s.SetNX(ctx, "k", []byte("second"), time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected second SetNX to be refused")
	}

	got, _ := s.Get(ctx, "k")
	if string(got) != "first" {
		t.Errorf("expected original value, got %s", got)
	}
}

func TestKV_SetNXAfterExpiryClaimsAgain(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	base := time.Unix(1756000000, 0)
	s.now = func() time.Time { return base }
	if _, err := s.SetNX(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.now = func() time.Time { return base.Add(time.Hour) }
	ok, err := s.SetNX(ctx, "k", []byte("v2"), time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected expired key to be claimable")
	}
}

func TestKV_IncrBy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.IncrBy(ctx, "n", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.IncrBy(ctx, "n", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := s.Get(ctx, "n")
	if string(got) != "8" {
		t.Errorf("expected 8, got %s", got)
	}
}

func TestKV_IncrByNonInteger(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "n", []byte("abc"), time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.IncrBy(ctx, "n", 1)
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected db.Error, got %v", err)
	}
	if dbErr.Op != db.OpIncrBy {
		t.Errorf("expected op %s, got %s", db.OpIncrBy, dbErr.Op)
	}
}

func TestKV_ExpireNX(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	base := time.Unix(1756000000, 0)
	s.now = func() time.Time { return base }

	// Counters are created without expiry, then bounded via EXPIRE NX.
	if err := s.IncrBy(ctx, "k", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Expire(ctx, "k", time.Minute, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// NX: a second expire must not push the deadline out.
	if err := s.Expire(ctx, "k", time.Hour, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatal("expected the first, shorter TTL to win")
	}
}

// --- index.go tests ---

func testIndexDef() *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:        "idx",
		StorageType: db.StorageHash,
		Prefixes:    []string{"garment:"},
		Fields: []db.IndexField{
			{Name: "category", Type: db.IndexFieldTag},
			{Name: "brand", Type: db.IndexFieldTag, TagSeparator: "|"},
			{Name: "price", Type: db.IndexFieldNumeric},
			{Name: "__text_vec", Alias: "text_vec", Type: db.IndexFieldVector, VectorDim: 4},
			{Name: "__image_vec", Alias: "image_vec", Type: db.IndexFieldVector, VectorDim: 4},
		},
	}
}

func TestIndex_Lifecycle(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	ok, _ := s.IndexExists(ctx, "idx")
	if ok {
		t.Fatal("expected no index yet")
	}

	if err := s.CreateIndex(ctx, testIndexDef()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, _ = s.IndexExists(ctx, "idx")
	if !ok {
		t.Fatal("expected index to exist")
	}

	if err := s.CreateIndex(ctx, testIndexDef()); !errors.Is(err, db.ErrIndexExists) {
		t.Fatalf("expected ErrIndexExists, got %v", err)
	}

	if err := s.DropIndex(ctx, "idx"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.DropIndex(ctx, "idx"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndex_CreateInvalidDefinition(t *testing.T) {
	s := NewStore()

	err := s.CreateIndex(context.Background(), &db.IndexDefinition{Name: "idx"})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

// --- search.go tests ---

func encodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func seedSearchStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	ctx := context.Background()

	if err := s.CreateIndex(ctx, testIndexDef()); err != nil {
		t.Fatalf("create index: %v", err)
	}

	garments := []db.HashSetItem{
		{Key: "garment:a", Fields: map[string]string{
			"category":   "shirt",
			"brand":      "Acme",
			"price":      "20",
			"__text_vec": encodeVector([]float32{1, 0, 0, 0}),
		}},
		{Key: "garment:b", Fields: map[string]string{
			"category":    "jacket",
			"brand":       "Acme|Krupp, Inc",
			"price":       "45",
			"__text_vec":  encodeVector([]float32{0.9, 0.1, 0, 0}),
			"__image_vec": encodeVector([]float32{0, 1, 0, 0}),
		}},
		{Key: "garment:c", Fields: map[string]string{
			"category":   "jacket",
			"price":      "80",
			"__text_vec": encodeVector([]float32{0, 0, 1, 0}),
		}},
		{Key: "other:z", Fields: map[string]string{
			"category":   "jacket",
			"__text_vec": encodeVector([]float32{1, 0, 0, 0}),
		}},
	}
	if err := s.HSetMulti(ctx, garments); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func knnQuery(vec []float32, field string, k int, filters filter.Expression) *db.KNNQuery {
	return &db.KNNQuery{
		IndexName:   "idx",
		Filters:     filters,
		VectorField: field,
		Vector:      vec,
		K:           k,
	}
}

func TestSearchKNN_RanksByCosineDistance(t *testing.T) {
	s := seedSearchStore(t)

	res, err := s.SearchKNN(context.Background(), knnQuery([]float32{1, 0, 0, 0}, "text_vec", 10, filter.Expression{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 3 {
		t.Fatalf("expected 3 hits, got %d", res.Total)
	}
	if res.Entries[0].Key != "garment:a" || res.Entries[1].Key != "garment:b" || res.Entries[2].Key != "garment:c" {
		t.Fatalf("unexpected order: %v", res.Entries)
	}
	if res.Entries[0].Distance > 1e-6 {
		t.Errorf("expected near-zero distance for identical vector, got %f", res.Entries[0].Distance)
	}
	if math.Abs(res.Entries[2].Distance-1.0) > 1e-6 {
		t.Errorf("expected distance 1 for orthogonal vector, got %f", res.Entries[2].Distance)
	}
}

func TestSearchKNN_FiltersBeforeTopK(t *testing.T) {
	s := seedSearchStore(t)

	match, err := filter.NewMatch("category", "jacket")
	if err != nil {
		t.Fatalf("build filter: %v", err)
	}
	expr, err := filter.NewExpression([]filter.Condition{match}, nil, nil)
	if err != nil {
		t.Fatalf("build expression: %v", err)
	}

	// garment:a is nearest overall but filtered out; it must not consume a slot.
	res, err := s.SearchKNN(context.Background(), knnQuery([]float32{1, 0, 0, 0}, "text_vec", 2, expr))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("expected 2 hits, got %d", res.Total)
	}
	if res.Entries[0].Key != "garment:b" || res.Entries[1].Key != "garment:c" {
		t.Fatalf("unexpected order: %v", res.Entries)
	}
}

func TestSearchKNN_TagSeparator(t *testing.T) {
	s := seedSearchStore(t)

	match, _ := filter.NewMatch("brand", "Krupp, Inc")
	expr, _ := filter.NewExpression([]filter.Condition{match}, nil, nil)

	res, err := s.SearchKNN(context.Background(), knnQuery([]float32{1, 0, 0, 0}, "text_vec", 10, expr))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 1 || res.Entries[0].Key != "garment:b" {
		t.Fatalf("expected only garment:b, got %v", res.Entries)
	}
}

func TestSearchKNN_NumericRange(t *testing.T) {
	s := seedSearchStore(t)

	lte := 50.0
	rng, err := filter.NewRangeFilter(nil, nil, nil, &lte)
	if err != nil {
		t.Fatalf("build range: %v", err)
	}
	cond, _ := filter.NewRange("price", rng)
	expr, _ := filter.NewExpression([]filter.Condition{cond}, nil, nil)

	res, err := s.SearchKNN(context.Background(), knnQuery([]float32{1, 0, 0, 0}, "text_vec", 10, expr))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("expected garment:a and garment:b, got %v", res.Entries)
	}
}

func TestSearchKNN_MustNot(t *testing.T) {
	s := seedSearchStore(t)

	match, _ := filter.NewMatch("category", "shirt")
	expr, _ := filter.NewExpression(nil, nil, []filter.Condition{match})

	res, err := s.SearchKNN(context.Background(), knnQuery([]float32{1, 0, 0, 0}, "text_vec", 10, expr))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range res.Entries {
		if e.Key == "garment:a" {
			t.Fatal("must_not condition did not exclude garment:a")
		}
	}
}

func TestSearchKNN_ImageModalityUsesImageField(t *testing.T) {
	s := seedSearchStore(t)

	res, err := s.SearchKNN(context.Background(), knnQuery([]float32{0, 1, 0, 0}, "image_vec", 10, filter.Expression{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Only garment:b carries an image vector.
	if res.Total != 1 || res.Entries[0].Key != "garment:b" {
		t.Fatalf("expected only garment:b, got %v", res.Entries)
	}
}

func TestSearchKNN_UnknownIndexIsDBError(t *testing.T) {
	s := NewStore()

	_, err := s.SearchKNN(context.Background(), knnQuery([]float32{1, 0, 0, 0}, "text_vec", 5, filter.Expression{}))
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected db.Error, got %v", err)
	}
	if dbErr.Op != db.OpSearch {
		t.Errorf("expected op %s, got %s", db.OpSearch, dbErr.Op)
	}
}

func TestSearchKNN_DimensionMismatch(t *testing.T) {
	s := seedSearchStore(t)

	_, err := s.SearchKNN(context.Background(), knnQuery([]float32{1, 0}, "text_vec", 5, filter.Expression{}))
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestSearchKNN_ReturnFields(t *testing.T) {
	s := seedSearchStore(t)

	q := knnQuery([]float32{1, 0, 0, 0}, "text_vec", 1, filter.Expression{})
	q.ReturnFields = []string{"category", "price"}

	res, err := s.SearchKNN(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Entries[0].Fields["category"] != "shirt" || res.Entries[0].Fields["price"] != "20" {
		t.Errorf("unexpected fields: %v", res.Entries[0].Fields)
	}
}
