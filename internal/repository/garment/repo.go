package garment

import (
	"context"
	"fmt"

	"github.com/wabenzi/prethrift/internal/db"
	"github.com/wabenzi/prethrift/internal/domain"
	domgar "github.com/wabenzi/prethrift/internal/domain/garment"
)

// store is the consumer interface for the garment catalog (ISP).
//
//nolint:interfacebloat // catalog repo needs hash + index management operations
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the garment catalog on hash storage with one FT index
// covering both embedding modalities.
type Repo struct {
	store     store
	vectorDim int
	hnsw      HNSWConfig
}

// New creates a garment repository.
func New(s store, vectorDim int) *Repo {
	return &Repo{store: s, vectorDim: vectorDim, hnsw: HNSWConfig{M: 32, EFConstruct: 400}}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// EnsureIndex creates the garment index if missing. With recreate, an
// existing index is dropped first; use after changing vector dimensions.
// Dropping keeps the hashes, so the rebuilt index backfills automatically.
func (r *Repo) EnsureIndex(ctx context.Context, recreate bool) error {
	name := indexName()

	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}

	if exists {
		if !recreate {
			return nil
		}
		if err := r.store.DropIndex(ctx, name); err != nil {
			return fmt.Errorf("drop index %s: %w", name, err)
		}
	}

	def, err := buildIndex(r.vectorDim, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

// IndexReady reports whether the similarity index exists. Used by health
// checks to catch a dropped index while the store itself is reachable.
func (r *Repo) IndexReady(ctx context.Context) (bool, error) {
	return r.store.IndexExists(ctx, indexName())
}

// Upsert stores a garment. Returns true if created.
func (r *Repo) Upsert(ctx context.Context, g *domgar.Garment) (bool, error) {
	key := garmentKey(g.ID())

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}

	if err := r.store.HSet(ctx, key, garmentToHash(g)); err != nil {
		return false, fmt.Errorf("hset garment %s: %w", key, err)
	}

	return !exists, nil
}

// UpsertMulti stores several garments in one pipelined round trip.
func (r *Repo) UpsertMulti(ctx context.Context, gs []domgar.Garment) error {
	if len(gs) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(gs))
	for i := range gs {
		items = append(items, db.HashSetItem{
			Key:    garmentKey(gs[i].ID()),
			Fields: garmentToHash(&gs[i]),
		})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset multi %d garments: %w", len(gs), err)
	}
	return nil
}

// Get returns a garment by ID.
func (r *Repo) Get(ctx context.Context, id string) (domgar.Garment, error) {
	m, err := r.store.HGetAll(ctx, garmentKey(id))
	if err != nil {
		return domgar.Garment{}, fmt.Errorf("hgetall garment %s: %w", id, err)
	}
	if len(m) == 0 {
		return domgar.Garment{}, domain.ErrGarmentNotFound
	}
	return garmentFromHash(id, m), nil
}

// GetMulti hydrates garments by ID in one pipelined round trip.
// IDs deleted since the caller obtained them are silently skipped.
func (r *Repo) GetMulti(ctx context.Context, ids []string) ([]domgar.Garment, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = garmentKey(id)
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi %d garments: %w", len(ids), err)
	}

	garments := make([]domgar.Garment, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		garments = append(garments, garmentFromHash(ids[i], m))
	}
	return garments, nil
}

// Delete removes a garment.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := garmentKey(id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrGarmentNotFound
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del garment %s: %w", key, err)
	}
	return nil
}

// Redis key patterns: prethrift:garment:{id}, prethrift:garments:idx

func garmentKey(id string) string {
	return fmt.Sprintf("%sgarment:%s", domain.KeyPrefix, id)
}

func indexName() string {
	return domain.KeyPrefix + "garments:idx"
}

func garmentPrefix() string {
	return domain.KeyPrefix + "garment:"
}
