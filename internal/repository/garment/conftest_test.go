package garment

import (
	"context"
	"testing"

	"github.com/wabenzi/prethrift/internal/db"
	"github.com/wabenzi/prethrift/internal/domain/attribute"
	domgar "github.com/wabenzi/prethrift/internal/domain/garment"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn    func(ctx context.Context, items []db.HashSetItem) error
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	delFn          func(ctx context.Context, key string) error
	existsFn       func(ctx context.Context, key string) (bool, error)
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn    func(ctx context.Context, name string) error
	indexExistsFn  func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return nil, nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, 8)
	return repo, ms
}

func testGarment(t *testing.T) domgar.Garment {
	t.Helper()
	attrs := []attribute.Assignment{
		mustAttr(t, attribute.FamilyCategory, "jacket", 0.7),
		mustAttr(t, attribute.FamilyColorPrimary, "blue", 0.7),
		mustAttr(t, attribute.FamilyMaterial, "denim", 0.7),
	}
	g, err := domgar.New(
		"g-1", "Vintage denim jacket", "Levi's", 45.0, "USD",
		"img/g-1.jpg", "vintage blue denim jacket", attrs,
		map[string]string{"era": "90s"},
	)
	if err != nil {
		t.Fatalf("garment.New: %v", err)
	}
	return g.WithVectors(testVector(0.1), testVector(0.2))
}

func mustAttr(t *testing.T, f attribute.Family, v string, conf float64) attribute.Assignment {
	t.Helper()
	a, err := attribute.New(f, v, conf, attribute.SourceRule)
	if err != nil {
		t.Fatalf("attribute.New: %v", err)
	}
	return a
}

func testVector(fill float32) []float32 {
	vec := make([]float32, 8)
	for i := range vec {
		vec[i] = fill
	}
	return vec
}
