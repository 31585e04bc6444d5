package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/wabenzi/prethrift/internal/config"
	dbRedis "github.com/wabenzi/prethrift/internal/db/redis"
	"github.com/wabenzi/prethrift/internal/domain"
	logpkg "github.com/wabenzi/prethrift/internal/logger"
	"github.com/wabenzi/prethrift/internal/metrics"
	budgetrepo "github.com/wabenzi/prethrift/internal/repository/budget"
	deduperepo "github.com/wabenzi/prethrift/internal/repository/dedupe"
	"github.com/wabenzi/prethrift/internal/repository/embcache"
	garmentrepo "github.com/wabenzi/prethrift/internal/repository/garment"
	preferencerepo "github.com/wabenzi/prethrift/internal/repository/preference"
	searchrepo "github.com/wabenzi/prethrift/internal/repository/search"
	chiTransport "github.com/wabenzi/prethrift/internal/transport/chi"
	"github.com/wabenzi/prethrift/internal/transport/openai"
	batchuc "github.com/wabenzi/prethrift/internal/usecase/batch"
	cataloguc "github.com/wabenzi/prethrift/internal/usecase/catalog"
	discoveryuc "github.com/wabenzi/prethrift/internal/usecase/discovery"
	embeddinguc "github.com/wabenzi/prethrift/internal/usecase/embedding"
	feedbackuc "github.com/wabenzi/prethrift/internal/usecase/feedback"
	"github.com/wabenzi/prethrift/internal/usecase/guardrail"
	healthuc "github.com/wabenzi/prethrift/internal/usecase/health"
	"github.com/wabenzi/prethrift/internal/usecase/ontology"
	"github.com/wabenzi/prethrift/internal/usecase/ranking"
	usageuc "github.com/wabenzi/prethrift/internal/usecase/usage"
	"github.com/wabenzi/prethrift/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	lex, err := config.LoadLexicon("lexicon.yaml")
	if err != nil {
		panic("failed to load lexicon: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting prethrift API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("built", version.Date),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterPipelineMetrics()
	metrics.RegisterEmbeddingMetrics()

	// Single BudgetTracker shared across all embedders and the usage service.
	var budget *embeddinguc.BudgetTracker
	budgetCfg := cfg.OpenAI.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(
			"openai", budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		// Connect persistence so counters survive restarts.
		budgetStore := budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour)
		budget.WithStore(ctx, budgetStore)
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	// Embedder chain shared by ingest and query so both sides of the vector
	// space come from the same model and the same cache:
	// OpenAI -> Instrumented -> Timeout -> Cached.
	base := openai.NewEmbedder(&openai.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})
	instrumented := embeddinguc.NewInstrumentedEmbedder(
		base, "openai", cfg.Embedding.Model, budgetChecker, logger,
	)
	bounded := embeddinguc.NewTimeoutEmbedder(
		instrumented, time.Duration(cfg.Embedding.TimeoutSec)*time.Second,
	)
	embedder := embcache.New(
		bounded, store, time.Duration(cfg.Embedding.CacheTTLSec)*time.Second,
		metrics.EmbeddingCacheTotal, logger,
	)

	// Queries degrade to the deterministic hash projection when the provider
	// is down; ingest keeps failing loudly so stored vectors stay model-grade.
	queryEmbedder := embeddinguc.NewFallbackEmbedder(embedder, cfg.Embedding.Dimensions, logger)

	describer := openai.NewDescriber(&openai.DescriberConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.Vision.Model,
		Logger:  logger,
	})
	// The outer fallback covers the describe step: a vision outage projects
	// the image reference instead of failing the query.
	imageEmbedder := embeddinguc.NewFallbackEmbedder(
		embeddinguc.NewImageEmbedder(
			describer, queryEmbedder, time.Duration(cfg.Vision.TimeoutSec)*time.Second,
		),
		cfg.Embedding.Dimensions, logger,
	)
	logger.Info("Embedders created",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("vision_model", cfg.Vision.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	rules, err := ontology.NewRuleset(ontology.Config{
		Families:         lex.Families,
		Synonyms:         lex.Synonyms,
		Related:          lex.Related,
		CategoryPriority: lex.CategoryPriority,
	})
	if err != nil {
		logger.Fatal("Invalid lexicon", zap.Error(err))
	}

	// Same typed-nil rule as the budget checker above.
	var assister ontology.Assister
	if cfg.Extraction.AssistEnabled {
		assister = openai.NewExtractor(&openai.ExtractorConfig{
			APIKey:   cfg.OpenAI.APIKey,
			BaseURL:  cfg.OpenAI.BaseURL,
			Model:    cfg.Extraction.Model,
			Families: lex.Families,
			Logger:   logger,
		})
	}
	extractor := ontology.New(
		rules, assister, time.Duration(cfg.Extraction.TimeoutSec)*time.Second, logger,
	)

	gate := guardrail.New(guardrail.Config{
		Vocabulary: lex.VocabularyTerms(),
		Polysemy:   lex.Polysemy,
		Threshold:  cfg.Guardrail.OffTopicThreshold,
	})

	// Create repositories
	garmentRepo := garmentrepo.New(store, cfg.Embedding.Dimensions).WithHNSW(garmentrepo.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	if err := garmentRepo.EnsureIndex(ctx, cfg.Index.Recreate); err != nil {
		logger.Fatal("Failed to ensure garment index", zap.Error(err))
	}
	searchRepo := searchrepo.New(store)
	prefRepo := preferencerepo.New(store)
	dedupeRepo := deduperepo.New(store, time.Duration(cfg.Feedback.DedupeTTLSec)*time.Second)

	// Create use case services
	halfLife := time.Duration(cfg.Feedback.HalfLifeDays) * 24 * time.Hour

	scorer := ranking.NewScorer(ranking.Weights{
		Similarity:       cfg.Ranking.SimilarityWeight,
		Attribute:        cfg.Ranking.AttributeWeight,
		Preference:       cfg.Ranking.PreferenceWeight,
		TextModality:     cfg.Ranking.TextModalityWeight,
		ImageModality:    cfg.Ranking.ImageModalityWeight,
		FallbackDiscount: cfg.Ranking.FallbackDiscount,
	})

	discoverySvc := discoveryuc.New(discoveryuc.Deps{
		Gate:          gate,
		Extractor:     extractor,
		TextEmbedder:  queryEmbedder,
		ImageEmbedder: imageEmbedder,
		Searcher:      searchRepo,
		Garments:      garmentRepo,
		Preferences:   prefRepo,
		Ranker:        scorer,
	}, discoveryuc.Params{
		CategoryFilterConfidence: cfg.Ranking.CategoryFilterConfidence,
		CandidateFactor:          cfg.Ranking.CandidateFactor,
		PreferenceHalfLife:       halfLife,
	}, logger)

	catalogSvc := cataloguc.New(cataloguc.Deps{
		Repo:      garmentRepo,
		Searcher:  searchRepo,
		Extractor: extractor,
		Describer: describer,
		Embedder:  embedder,
	}, logger)

	batchSvc := batchuc.New(batchuc.Deps{
		Bulk:      garmentRepo,
		Deleter:   garmentRepo,
		Extractor: extractor,
		Describer: describer,
		Embedder:  embedder,
	}, logger).WithMaxBatchSize(cfg.Index.MaxBatchSize)

	feedbackSvc := feedbackuc.New(dedupeRepo, garmentRepo, prefRepo, feedbackuc.Params{
		Delta:     cfg.Feedback.Delta,
		MaxWeight: cfg.Feedback.MaxWeight,
		HalfLife:  halfLife,
	}, logger)

	// Usage service reads from the shared BudgetTracker.
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader).WithCostRate(cfg.OpenAI.Budget.CostPerMillionTokens)

	// Health checks hit the base provider directly; the decorators would
	// otherwise mask an outage behind the cache or the fallback.
	healthSvc := healthuc.New(store, garmentRepo, newEmbeddingHealthChecker(base))

	// Create chi server
	server := chiTransport.NewServer(
		discoverySvc, catalogSvc, batchSvc, feedbackSvc, usageSvc, healthSvc, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// One canonical log line per request.
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
