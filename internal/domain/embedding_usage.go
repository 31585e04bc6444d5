package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage accumulates embedding spend across one request. Handlers seed
// the context before calling into a service, every embed call records its
// result, and the totals come back as response headers.
type EmbeddingUsage struct {
	TotalTokens int
	Fallback    bool // at least one vector came from the hash projection
	Used        bool // an embed call happened, even a cache hit with 0 tokens
}

// NewContextWithUsage returns a context carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if
// not set; Record tolerates a nil receiver so services record unconditionally.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// Record adds the spend of completed embed calls. Zero-value results from
// modalities that never ran carry no vector and are skipped.
func (u *EmbeddingUsage) Record(results ...EmbeddingResult) {
	if u == nil {
		return
	}
	for _, res := range results {
		if res.Vector == nil {
			continue
		}
		u.TotalTokens += res.TotalTokens
		u.Fallback = u.Fallback || res.Fallback
		u.Used = true
	}
}

// RecordBatch adds the spend of one bulk embed call.
func (u *EmbeddingUsage) RecordBatch(res BatchEmbeddingResult) {
	if u == nil || len(res.Vectors) == 0 {
		return
	}
	u.TotalTokens += res.TotalTokens
	u.Fallback = u.Fallback || res.Fallback
	u.Used = true
}
