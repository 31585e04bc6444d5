// Package ontology extracts closed-taxonomy attributes from garment and
// query text. A deterministic keyword pass always runs; a model-assisted
// pass can enrich it and is merged per family, higher confidence winning.
package ontology

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wabenzi/prethrift/internal/domain/attribute"
	"github.com/wabenzi/prethrift/internal/metrics"
)

// Result is an extraction outcome. Degraded is set when the assisted pass
// was enabled but failed, leaving rule assignments only.
type Result struct {
	Assignments []attribute.Assignment
	Degraded    bool
}

// Service orchestrates the two extraction passes.
type Service struct {
	rules    *Ruleset
	assister Assister
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates the extraction service. A nil assister disables the assisted
// pass entirely, which is the configured rule-only mode, not a degradation.
func New(rules *Ruleset, assister Assister, timeout time.Duration, logger *zap.Logger) *Service {
	return &Service{rules: rules, assister: assister, timeout: timeout, logger: logger}
}

// Extract never fails: the rule pass is total, and an assisted failure
// degrades to the rule result.
func (s *Service) Extract(ctx context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{}
	}

	rule := s.rules.Extract(text)
	if s.assister == nil {
		return Result{Assignments: rule}
	}

	actx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	assisted, err := s.assister.Extract(actx, text)
	if err != nil {
		metrics.ExtractionAssistTotal.WithLabelValues("failed").Inc()
		s.logger.Warn("assisted extraction failed, keeping rule assignments",
			zap.Error(err))
		return Result{Assignments: rule, Degraded: true}
	}
	metrics.ExtractionAssistTotal.WithLabelValues("ok").Inc()

	return Result{Assignments: attribute.Merge(rule, assisted)}
}
