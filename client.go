// Package prethrift embeds the secondhand fashion discovery pipeline in a
// Go process: guardrail-gated search over a garment catalog with attribute
// extraction, hybrid ranking, and per-user preference learning.
//
// The zero-dependency path runs entirely in memory:
//
//	client, _ := prethrift.New(prethrift.WithMemoryStore())
//	defer client.Close()
//	client.IngestGarment(ctx, prethrift.Garment{ID: "g1", Title: "Vintage denim jacket"})
//	resp, _ := client.Search(ctx, prethrift.SearchRequest{Query: "blue denim jacket"})
//
// Point it at Redis with WithRedis and at real embeddings with WithOpenAI
// for production quality; without an OpenAI key both the catalog and the
// queries use the same deterministic local projection.
package prethrift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wabenzi/prethrift/internal/config"
	"github.com/wabenzi/prethrift/internal/db"
	dbMemory "github.com/wabenzi/prethrift/internal/db/memory"
	dbRedis "github.com/wabenzi/prethrift/internal/db/redis"
	"github.com/wabenzi/prethrift/internal/domain"
	"github.com/wabenzi/prethrift/internal/domain/event"
	"github.com/wabenzi/prethrift/internal/domain/query"
	deduperepo "github.com/wabenzi/prethrift/internal/repository/dedupe"
	garmentrepo "github.com/wabenzi/prethrift/internal/repository/garment"
	preferencerepo "github.com/wabenzi/prethrift/internal/repository/preference"
	searchrepo "github.com/wabenzi/prethrift/internal/repository/search"
	"github.com/wabenzi/prethrift/internal/transport/openai"
	cataloguc "github.com/wabenzi/prethrift/internal/usecase/catalog"
	discoveryuc "github.com/wabenzi/prethrift/internal/usecase/discovery"
	embeddinguc "github.com/wabenzi/prethrift/internal/usecase/embedding"
	feedbackuc "github.com/wabenzi/prethrift/internal/usecase/feedback"
	"github.com/wabenzi/prethrift/internal/usecase/guardrail"
	"github.com/wabenzi/prethrift/internal/usecase/ontology"
	"github.com/wabenzi/prethrift/internal/usecase/ranking"
)

const (
	defaultEmbeddingModel   = "text-embedding-3-small"
	defaultVisionModel      = "gpt-4o-mini"
	defaultDimensions       = 1536
	defaultEmbedTimeout     = 10 * time.Second
	defaultVisionTimeout    = 20 * time.Second
	defaultDedupeTTL        = 7 * 24 * time.Hour
	defaultReadinessTimeout = 10 * time.Second
)

// Client is the embedded discovery pipeline.
type Client struct {
	store     db.Store
	discovery *discoveryuc.Service
	catalog   *cataloguc.Service
	feedback  *feedbackuc.Service
	logger    *zap.Logger
}

// New creates a Client, connects to the store, and ensures the garment
// index exists.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		embeddingModel: defaultEmbeddingModel,
		visionModel:    defaultVisionModel,
		dimensions:     defaultDimensions,
	}
	for _, o := range opts {
		o(cfg)
	}

	lex := config.DefaultLexicon()
	if cfg.lexiconPath != "" {
		loaded, err := config.LoadLexicon(cfg.lexiconPath)
		if err != nil {
			return nil, fmt.Errorf("prethrift: %w", err)
		}
		lex = loaded
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("prethrift: database not ready: %w", err)
	}

	c, err := wireClient(store, lex, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch {
	case cfg.memoryStore:
		return dbMemory.NewStore(), nil
	case len(cfg.redisAddrs) > 0:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.redisAddrs,
			Password: cfg.redisPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("prethrift: create redis store: %w", err)
		}
		return s, nil
	default:
		return nil, errors.New("prethrift: store required (use WithRedis or WithMemoryStore)")
	}
}

func wireClient(store db.Store, lex config.Lexicon, cfg *clientConfig) (*Client, error) {
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rules, err := ontology.NewRuleset(ontology.Config{
		Families:         lex.Families,
		Synonyms:         lex.Synonyms,
		Related:          lex.Related,
		CategoryPriority: lex.CategoryPriority,
	})
	if err != nil {
		return nil, fmt.Errorf("prethrift: %w", err)
	}
	extractor := ontology.New(rules, nil, 0, logger)

	gate := guardrail.New(guardrail.Config{
		Vocabulary: lex.VocabularyTerms(),
		Polysemy:   lex.Polysemy,
	})

	// Lean embedding chain: no cache, budget, or metrics layers; those
	// belong to the service deployment. Offline mode embeds locally.
	var ingestEmbedder domain.Embedder
	var queryEmbedder domain.Embedder
	var describer cataloguc.Describer
	if cfg.openAIKey != "" {
		base := openai.NewEmbedder(&openai.Config{
			APIKey:     cfg.openAIKey,
			BaseURL:    cfg.openAIBaseURL,
			Model:      cfg.embeddingModel,
			Dimensions: cfg.dimensions,
			Provider:   "openai",
			Logger:     logger,
		})
		ingestEmbedder = embeddinguc.NewTimeoutEmbedder(base, defaultEmbedTimeout)
		queryEmbedder = embeddinguc.NewFallbackEmbedder(ingestEmbedder, cfg.dimensions, logger)
		describer = openai.NewDescriber(&openai.DescriberConfig{
			APIKey:  cfg.openAIKey,
			BaseURL: cfg.openAIBaseURL,
			Model:   cfg.visionModel,
			Logger:  logger,
		})
	} else {
		local := hashEmbedder{dim: cfg.dimensions}
		ingestEmbedder = local
		queryEmbedder = local
	}

	// Without vision the image reference itself is projected, so image
	// queries still resolve offline. With vision, a describe failure falls
	// back the same way instead of failing the query.
	imageEmbedder := queryEmbedder
	if describer != nil {
		imageEmbedder = embeddinguc.NewFallbackEmbedder(
			embeddinguc.NewImageEmbedder(describer, queryEmbedder, defaultVisionTimeout),
			cfg.dimensions, logger,
		)
	}

	garmentRepo := garmentrepo.New(store, cfg.dimensions)
	if cfg.hnswM > 0 || cfg.hnswEFConstruct > 0 {
		garmentRepo = garmentRepo.WithHNSW(garmentrepo.HNSWConfig{
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		})
	}
	if err := garmentRepo.EnsureIndex(context.Background(), false); err != nil {
		return nil, fmt.Errorf("prethrift: ensure index: %w", err)
	}
	searchRepo := searchrepo.New(store)
	prefRepo := preferencerepo.New(store)
	dedupeRepo := deduperepo.New(store, defaultDedupeTTL)

	discoverySvc := discoveryuc.New(discoveryuc.Deps{
		Gate:          gate,
		Extractor:     extractor,
		TextEmbedder:  queryEmbedder,
		ImageEmbedder: imageEmbedder,
		Searcher:      searchRepo,
		Garments:      garmentRepo,
		Preferences:   prefRepo,
		Ranker:        ranking.NewScorer(ranking.DefaultWeights()),
	}, discoveryuc.DefaultParams(), logger)

	catalogSvc := cataloguc.New(cataloguc.Deps{
		Repo:      garmentRepo,
		Searcher:  searchRepo,
		Extractor: extractor,
		Describer: describer,
		Embedder:  ingestEmbedder,
	}, logger)

	feedbackSvc := feedbackuc.New(
		dedupeRepo, garmentRepo, prefRepo, feedbackuc.DefaultParams(), logger,
	)

	return &Client{
		store:     store,
		discovery: discoverySvc,
		catalog:   catalogSvc,
		feedback:  feedbackSvc,
		logger:    logger,
	}, nil
}

// Close releases the store connection.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks store connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("prethrift: ping: %w", err)
	}
	return nil
}

// Search runs one discovery query. A blocked query returns a normal
// response with a non-ok verdict; inspect resp.Blocked().
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	q, err := query.New(req.Query, req.ImageRef, req.UserID, req.Limit, req.Force)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("prethrift: %w", err)
	}

	resp, err := c.discovery.Search(ctx, &q)
	if err != nil {
		return SearchResponse{}, err
	}
	return searchResponseFrom(resp), nil
}

// IngestGarment runs a listing through extraction and embedding and indexes
// it. Returns true when the garment was created rather than updated.
// Re-ingesting an id recomputes everything.
func (c *Client) IngestGarment(ctx context.Context, g Garment) (bool, error) {
	dg, err := toDomainGarment(g)
	if err != nil {
		return false, err
	}
	return c.catalog.Upsert(ctx, &dg)
}

// Garment returns a stored listing with its extracted attributes.
func (c *Client) Garment(ctx context.Context, id string) (GarmentInfo, error) {
	g, err := c.catalog.Get(ctx, id)
	if err != nil {
		return GarmentInfo{}, err
	}
	return garmentInfoFrom(g), nil
}

// DeleteGarment removes a sold or withdrawn listing.
func (c *Client) DeleteGarment(ctx context.Context, id string) error {
	return c.catalog.Delete(ctx, id)
}

// Similar returns garments closest to the given one, nearest first.
func (c *Client) Similar(ctx context.Context, id string, limit int) ([]SimilarGarment, error) {
	items, err := c.catalog.Similar(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	return similarFrom(items), nil
}

// Feedback applies one interaction to the user's preference profile.
// Returns false when the event id was already processed.
func (c *Client) Feedback(ctx context.Context, e FeedbackEvent) (bool, error) {
	id := e.EventID
	if id == "" {
		id = uuid.NewString()
	}
	ev, err := event.New(id, e.UserID, e.GarmentID, event.Action(e.Action), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("prethrift: %w", err)
	}
	return c.feedback.Process(ctx, &ev)
}

// Preferences returns the user's decayed taste snapshot. Unknown users get
// an empty snapshot.
func (c *Client) Preferences(ctx context.Context, userID string) (Preferences, error) {
	vec, err := c.feedback.Snapshot(ctx, userID)
	if err != nil {
		return Preferences{}, err
	}
	return preferencesFrom(vec), nil
}

// hashEmbedder vectorizes with the deterministic local projection. Offline
// mode uses it on both the ingest and the query path, so catalog and query
// vectors share one space. Results are flagged so ranking discounts them.
type hashEmbedder struct {
	dim int
}

func (h hashEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{
		Vector:   embeddinguc.HashProjection(text, h.dim),
		Fallback: true,
	}, nil
}
