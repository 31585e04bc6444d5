package domain

import (
	"context"
	"testing"
)

func TestEmbeddingUsage_RecordAccumulates(t *testing.T) {
	_, u := NewContextWithUsage(context.Background())

	u.Record(
		EmbeddingResult{Vector: []float32{1, 0}, TotalTokens: 7},
		EmbeddingResult{Vector: []float32{0, 1}, TotalTokens: 3, Fallback: true},
	)

	if u.TotalTokens != 10 {
		t.Errorf("TotalTokens = %d, want 10", u.TotalTokens)
	}
	if !u.Used {
		t.Error("Used = false, want true")
	}
	if !u.Fallback {
		t.Error("Fallback = false, want true")
	}
}

func TestEmbeddingUsage_RecordSkipsZeroResults(t *testing.T) {
	_, u := NewContextWithUsage(context.Background())

	// The image modality of a text-only query never runs; its zero-value
	// result must not mark the request as having embedded.
	u.Record(EmbeddingResult{})

	if u.Used {
		t.Error("Used = true for a zero-value result")
	}
	if u.TotalTokens != 0 {
		t.Errorf("TotalTokens = %d, want 0", u.TotalTokens)
	}
}

func TestEmbeddingUsage_CacheHitStillCounts(t *testing.T) {
	_, u := NewContextWithUsage(context.Background())

	u.Record(EmbeddingResult{Vector: []float32{1}, TotalTokens: 0})

	if !u.Used {
		t.Error("Used = false, want true for a cache hit")
	}
}

func TestEmbeddingUsage_RecordBatch(t *testing.T) {
	_, u := NewContextWithUsage(context.Background())

	u.RecordBatch(BatchEmbeddingResult{
		Vectors:     [][]float32{{1, 0}, {0, 1}},
		TotalTokens: 22,
		Fallback:    true,
	})
	u.RecordBatch(BatchEmbeddingResult{})

	if u.TotalTokens != 22 {
		t.Errorf("TotalTokens = %d, want 22", u.TotalTokens)
	}
	if !u.Fallback {
		t.Error("Fallback = false, want true")
	}
}

func TestEmbeddingUsage_NilCollectorIsNoop(t *testing.T) {
	u := UsageFromContext(context.Background())
	if u != nil {
		t.Fatalf("UsageFromContext on bare context = %+v, want nil", u)
	}

	// Services record without checking; a request without a collector
	// must not panic.
	u.Record(EmbeddingResult{Vector: []float32{1}, TotalTokens: 5})
	u.RecordBatch(BatchEmbeddingResult{Vectors: [][]float32{{1}}, TotalTokens: 5})
}
