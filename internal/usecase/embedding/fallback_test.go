package embedding

import (
	"context"
	"fmt"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/wabenzi/prethrift/internal/domain"
)

func TestFallbackEmbedder_PassesThroughOnSuccess(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Vector:      []float32{0.1, 0.2, 0.3},
		TotalTokens: 5,
	}}
	f := NewFallbackEmbedder(inner, 3, zap.NewNop())

	res, err := f.Embed(context.Background(), "blue dress")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fallback {
		t.Error("expected Fallback=false on provider success")
	}
	if res.TotalTokens != 5 {
		t.Errorf("expected provider tokens to pass through, got %d", res.TotalTokens)
	}
}

func TestFallbackEmbedder_DegradesOnProviderError(t *testing.T) {
	inner := &mockEmbedder{err: fmt.Errorf("connection refused")}
	f := NewFallbackEmbedder(inner, 16, zap.NewNop())

	res, err := f.Embed(context.Background(), "blue dress")
	if err != nil {
		t.Fatalf("expected degraded result, got error: %v", err)
	}
	if !res.Fallback {
		t.Fatal("expected Fallback=true")
	}
	if len(res.Vector) != 16 {
		t.Fatalf("expected 16 dimensions, got %d", len(res.Vector))
	}
	if res.TotalTokens != 0 {
		t.Errorf("hash vectors cost no tokens, got %d", res.TotalTokens)
	}
}

func TestFallbackEmbedder_DegradesOnQuotaExceeded(t *testing.T) {
	inner := &mockEmbedder{err: fmt.Errorf("embed: %w", domain.ErrEmbeddingQuotaExceeded)}
	f := NewFallbackEmbedder(inner, 8, zap.NewNop())

	res, err := f.Embed(context.Background(), "wool coat")
	if err != nil {
		t.Fatalf("expected degraded result, got error: %v", err)
	}
	if !res.Fallback {
		t.Error("expected Fallback=true when quota is exhausted")
	}
}

func TestFallbackEmbedder_SameTextSameVector(t *testing.T) {
	inner := &mockEmbedder{err: fmt.Errorf("outage")}
	f := NewFallbackEmbedder(inner, 32, zap.NewNop())

	first, err := f.Embed(context.Background(), "blue dress")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.Embed(context.Background(), "blue dress")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Vector) != len(second.Vector) {
		t.Fatalf("dimension mismatch: %d vs %d", len(first.Vector), len(second.Vector))
	}
	for i := range first.Vector {
		if first.Vector[i] != second.Vector[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, first.Vector[i], second.Vector[i])
		}
	}
}

func TestFallbackEmbedder_ContextCanceledPropagatesError(t *testing.T) {
	inner := &mockEmbedder{err: context.Canceled}
	f := NewFallbackEmbedder(inner, 8, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Embed(ctx, "blue dress")
	if err == nil {
		t.Fatal("expected error when context is canceled")
	}
}

func TestHashProjection_Deterministic(t *testing.T) {
	a := HashProjection("blue dress", 64)
	b := HashProjection("blue dress", 64)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("projection not deterministic at %d", i)
		}
	}
}

func TestHashProjection_CaseInsensitive(t *testing.T) {
	a := HashProjection("Blue Dress", 64)
	b := HashProjection("blue dress", 64)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected case-folded tokens to project identically, differ at %d", i)
		}
	}
}

func TestHashProjection_DistinctTexts(t *testing.T) {
	a := HashProjection("blue dress", 64)
	b := HashProjection("leather boots", 64)
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("distinct texts projected to an identical vector")
	}
}

func TestHashProjection_UnitNorm(t *testing.T) {
	vec := HashProjection("vintage denim jacket", 128)
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if math.Abs(norm-1.0) > 1e-5 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
}

func TestHashProjection_EmptyText(t *testing.T) {
	vec := HashProjection("", 8)
	if len(vec) != 8 {
		t.Fatalf("expected 8 dimensions, got %d", len(vec))
	}
	if vec[0] != 1 {
		t.Errorf("expected basis vector for empty text, got %v", vec)
	}
}
