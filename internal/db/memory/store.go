// Package memory implements db.Store entirely in process. It backs the
// embedded client mode and pipeline tests where no Redis is reachable.
// KNN search is an exact linear scan, so it suits small catalogs and
// test fixtures rather than production traffic.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wabenzi/prethrift/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// kvEntry is a plain value with an optional expiry (zero means none).
type kvEntry struct {
	value     []byte
	expiresAt time.Time
}

// Store implements db.Store over maps guarded by a single RWMutex.
type Store struct {
	mu      sync.RWMutex
	hashes  map[string]map[string]string
	kv      map[string]kvEntry
	indexes map[string]*db.IndexDefinition

	now func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		hashes:  make(map[string]map[string]string),
		kv:      make(map[string]kvEntry),
		indexes: make(map[string]*db.IndexDefinition),
		now:     time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close releases nothing; the store lives and dies with the process.
func (s *Store) Close() {}

// WaitForReady returns immediately; the store is always ready.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// liveKV returns the entry at key if present and not expired. Expired
// entries are dropped on access. Callers must hold the write lock.
func (s *Store) liveKV(key string) (kvEntry, bool) {
	e, ok := s.kv[key]
	if !ok {
		return kvEntry{}, false
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		delete(s.kv, key)
		return kvEntry{}, false
	}
	return e, true
}
