// Package discovery orchestrates the search pipeline: guardrail gate,
// concurrent extraction and embedding, filtered candidate generation,
// hydration, and hybrid ranking.
package discovery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wabenzi/prethrift/internal/domain"
	"github.com/wabenzi/prethrift/internal/domain/attribute"
	"github.com/wabenzi/prethrift/internal/domain/filter"
	"github.com/wabenzi/prethrift/internal/domain/preference"
	"github.com/wabenzi/prethrift/internal/domain/query"
	"github.com/wabenzi/prethrift/internal/domain/result"
	"github.com/wabenzi/prethrift/internal/domain/verdict"
	"github.com/wabenzi/prethrift/internal/metrics"
	"github.com/wabenzi/prethrift/internal/usecase/ontology"
	"github.com/wabenzi/prethrift/internal/usecase/ranking"
)

// Params tunes the pipeline.
type Params struct {
	// CategoryFilterConfidence is the minimum extraction confidence for
	// pushing the query category down to the index as a pre-KNN filter.
	CategoryFilterConfidence float64
	// CandidateFactor over-fetches limit*factor neighbors per modality so
	// re-ranking has room to reorder.
	CandidateFactor int
	// PreferenceHalfLife is the decay applied to stored weights at read time.
	PreferenceHalfLife time.Duration
}

// DefaultParams returns the shipped pipeline tuning.
func DefaultParams() Params {
	return Params{
		CategoryFilterConfidence: 0.65,
		CandidateFactor:          3,
		PreferenceHalfLife:       preference.DefaultHalfLife,
	}
}

// Response is a completed search. A blocked query carries the verdict with
// empty results; Degraded lists the stages that ran in reduced form.
type Response struct {
	Results  []result.Ranked
	Verdict  verdict.Verdict
	Degraded []string
}

// Service runs discovery searches.
type Service struct {
	gate        Gate
	extractor   Extractor
	textEmb     domain.Embedder
	imageEmb    domain.Embedder
	searcher    Searcher
	garments    GarmentReader
	preferences PreferenceReader
	ranker      Ranker
	params      Params
	logger      *zap.Logger
	now         func() time.Time
}

// New creates the discovery service.
func New(d Deps, params Params, logger *zap.Logger) *Service {
	return &Service{
		gate:        d.Gate,
		extractor:   d.Extractor,
		textEmb:     d.TextEmbedder,
		imageEmb:    d.ImageEmbedder,
		searcher:    d.Searcher,
		garments:    d.Garments,
		preferences: d.Preferences,
		ranker:      d.Ranker,
		params:      params,
		logger:      logger,
		now:         time.Now,
	}
}

// Search answers one query. A blocking verdict is a structured outcome, not
// an error; only index unavailability and cancellation fail the request, and
// both are safe to retry.
func (s *Service) Search(ctx context.Context, req *query.Request) (Response, error) {
	v := s.gate.Check(req)
	if v.Blocking() {
		metrics.SearchRequestsTotal.WithLabelValues(string(v.Status())).Inc()
		s.logger.Info("query blocked by guardrail",
			zap.String("status", string(v.Status())),
			zap.String("reason", v.Reason()))
		return Response{Verdict: v}, nil
	}
	if v.Overridden() {
		metrics.GuardrailOverridesTotal.Inc()
		s.logger.Info("off-topic verdict overridden by force",
			zap.String("reason", v.Reason()))
	}

	start := time.Now()
	resp, err := s.run(ctx, req, v)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return Response{}, err
	}

	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	metrics.SearchDuration.WithLabelValues(modalityLabel(req)).Observe(time.Since(start).Seconds())
	for _, flag := range resp.Degraded {
		metrics.SearchDegradedTotal.WithLabelValues(flag).Inc()
	}
	return resp, nil
}

func (s *Service) run(ctx context.Context, req *query.Request, v verdict.Verdict) (Response, error) {
	queryText := req.Text() != ""
	queryImage := req.ImageRef() != "" && s.imageEmb != nil

	// Extraction and embedding are independent; run them concurrently and
	// join before touching the index.
	g, gctx := errgroup.WithContext(ctx)

	var extraction ontology.Result
	g.Go(func() error {
		extraction = s.extractor.Extract(gctx, req.Text())
		return nil
	})

	var textVec, imageVec domain.EmbeddingResult
	if queryText {
		g.Go(func() error {
			var err error
			if textVec, err = s.textEmb.Embed(gctx, req.Text()); err != nil {
				return fmt.Errorf("embed query text: %w", err)
			}
			return nil
		})
	}
	if queryImage {
		g.Go(func() error {
			var err error
			if imageVec, err = s.imageEmb.Embed(gctx, req.ImageRef()); err != nil {
				return fmt.Errorf("embed query image: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Response{}, err
	}
	domain.UsageFromContext(ctx).Record(textVec, imageVec)

	var degraded []string
	if (queryText && textVec.Fallback) || (queryImage && imageVec.Fallback) {
		degraded = append(degraded, result.DegradedEmbeddingFallback)
	}
	if extraction.Degraded {
		degraded = append(degraded, result.DegradedExtractionRuleOnly)
	}

	filters := s.categoryFilter(extraction.Assignments)
	k := req.Limit() * s.params.CandidateFactor

	distances := make(map[string]map[domain.Modality]float64)
	var order []string
	collect := func(m domain.Modality, neighbors []result.Neighbor) {
		for _, n := range neighbors {
			d, seen := distances[n.GarmentID]
			if !seen {
				d = make(map[domain.Modality]float64, 2)
				distances[n.GarmentID] = d
				order = append(order, n.GarmentID)
			}
			d[m] = n.Distance
		}
	}

	if queryText {
		neighbors, err := s.searcher.Query(ctx, textVec.Vector, domain.ModalityText, k, filters)
		if err != nil {
			return Response{}, fmt.Errorf("text candidates: %w", err)
		}
		collect(domain.ModalityText, neighbors)
	}
	if queryImage {
		neighbors, err := s.searcher.Query(ctx, imageVec.Vector, domain.ModalityImage, k, filters)
		if err != nil {
			return Response{}, fmt.Errorf("image candidates: %w", err)
		}
		collect(domain.ModalityImage, neighbors)
	}

	var candidates []ranking.Candidate
	if len(order) > 0 {
		garments, err := s.garments.GetMulti(ctx, order)
		if err != nil {
			return Response{}, fmt.Errorf("hydrate %d candidates: %w", len(order), err)
		}
		candidates = make([]ranking.Candidate, 0, len(garments))
		for i := range garments {
			candidates = append(candidates, ranking.Candidate{
				Garment:   garments[i],
				Distances: distances[garments[i].ID()],
			})
		}
	}

	prefVec := preference.Vector{}
	if req.UserID() != "" {
		vec, err := s.preferences.Get(ctx, req.UserID())
		if err != nil {
			s.logger.Warn("preference store unavailable, ranking anonymously",
				zap.String("user_id", req.UserID()), zap.Error(err))
			degraded = append(degraded, result.DegradedPreferenceUnavailable)
		} else {
			prefVec = vec.Decayed(s.now(), s.params.PreferenceHalfLife)
		}
	}

	ranked := s.ranker.Rank(candidates, ranking.Query{
		Attributes: extraction.Assignments,
		Preference: prefVec,
		HasVector:  queryText || queryImage,
		Fallback:   textVec.Fallback || imageVec.Fallback,
	}, req.Limit())

	s.logger.Debug("search pipeline completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(ranked)),
		zap.Strings("degraded", degraded))

	return Response{Results: ranked, Verdict: v, Degraded: degraded}, nil
}

// categoryFilter pushes a confidently extracted category down to the index
// so the KNN budget is spent inside the right shelf.
func (s *Service) categoryFilter(attrs []attribute.Assignment) filter.Expression {
	for _, a := range attrs {
		if a.Family() != attribute.FamilyCategory || a.Confidence() < s.params.CategoryFilterConfidence {
			continue
		}
		cond, err := filter.NewMatch(string(attribute.FamilyCategory), a.Value())
		if err != nil {
			s.logger.Warn("skipping category filter", zap.String("value", a.Value()), zap.Error(err))
			return filter.Expression{}
		}
		expr, err := filter.NewExpression([]filter.Condition{cond}, nil, nil)
		if err != nil {
			s.logger.Warn("skipping category filter", zap.String("value", a.Value()), zap.Error(err))
			return filter.Expression{}
		}
		return expr
	}
	return filter.Expression{}
}

func modalityLabel(req *query.Request) string {
	switch {
	case req.Text() != "" && req.ImageRef() != "":
		return "both"
	case req.ImageRef() != "":
		return "image"
	}
	return "text"
}
