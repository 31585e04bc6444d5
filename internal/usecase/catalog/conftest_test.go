package catalog

import (
	"context"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/wabenzi/prethrift/internal/domain"
	"github.com/wabenzi/prethrift/internal/domain/filter"
	"github.com/wabenzi/prethrift/internal/domain/garment"
	"github.com/wabenzi/prethrift/internal/domain/result"
	"github.com/wabenzi/prethrift/internal/metrics"
	"github.com/wabenzi/prethrift/internal/usecase/ontology"
)

func TestMain(m *testing.M) {
	metrics.RegisterPipelineMetrics()
	os.Exit(m.Run())
}

type mockRepo struct {
	upsertFn   func(ctx context.Context, g *garment.Garment) (bool, error)
	getFn      func(ctx context.Context, id string) (garment.Garment, error)
	getMultiFn func(ctx context.Context, ids []string) ([]garment.Garment, error)
	deleteFn   func(ctx context.Context, id string) error
}

func (m *mockRepo) Upsert(ctx context.Context, g *garment.Garment) (bool, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, g)
	}
	return true, nil
}

func (m *mockRepo) Get(ctx context.Context, id string) (garment.Garment, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return garment.Garment{}, domain.ErrGarmentNotFound
}

func (m *mockRepo) GetMulti(ctx context.Context, ids []string) ([]garment.Garment, error) {
	if m.getMultiFn != nil {
		return m.getMultiFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockSearcher struct {
	queryFn func(ctx context.Context, vector []float32, modality domain.Modality,
		k int, filters filter.Expression) ([]result.Neighbor, error)
}

func (m *mockSearcher) Query(ctx context.Context, vector []float32, modality domain.Modality,
	k int, filters filter.Expression) ([]result.Neighbor, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, vector, modality, k, filters)
	}
	return nil, nil
}

type mockDescriber struct {
	describeFn func(ctx context.Context, imageRef string) (string, error)
}

func (m *mockDescriber) Describe(ctx context.Context, imageRef string) (string, error) {
	if m.describeFn != nil {
		return m.describeFn(ctx, imageRef)
	}
	return "", nil
}

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Vector: []float32{1, 0}}, nil
}

func testExtractor(t *testing.T) *ontology.Service {
	t.Helper()
	rs, err := ontology.NewRuleset(ontology.Config{
		Families: map[string][]string{
			"category":      {"jacket", "dress"},
			"color_primary": {"blue", "olive"},
			"material":      {"denim", "wool"},
			"style":         {"vintage"},
		},
	})
	if err != nil {
		t.Fatalf("ontology.NewRuleset: %v", err)
	}
	return ontology.New(rs, nil, 0, zap.NewNop())
}

type testDeps struct {
	repo      Repository
	searcher  Searcher
	describer Describer
	embedder  Embedder
}

func newTestService(t *testing.T, d testDeps) *Service {
	t.Helper()
	if d.repo == nil {
		d.repo = &mockRepo{}
	}
	if d.searcher == nil {
		d.searcher = &mockSearcher{}
	}
	if d.embedder == nil {
		d.embedder = &mockEmbedder{}
	}
	return New(Deps{
		Repo:      d.repo,
		Searcher:  d.searcher,
		Extractor: testExtractor(t),
		Describer: d.describer,
		Embedder:  d.embedder,
	}, zap.NewNop())
}

func mustGarment(t *testing.T, id, title, description, imagePath string) garment.Garment {
	t.Helper()
	g, err := garment.New(id, title, "", 45, "USD", imagePath, description, nil, nil)
	if err != nil {
		t.Fatalf("garment.New: %v", err)
	}
	return g
}
