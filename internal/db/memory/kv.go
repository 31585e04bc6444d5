package memory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/wabenzi/prethrift/internal/db"
)

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveKV(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return cloneBytes(e.value), nil
}

// SetWithTTL stores a value that expires after ttl.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = kvEntry{value: cloneBytes(value), expiresAt: s.now().Add(ttl)}
	return nil
}

// SetNX stores the value with a TTL only if the key is absent.
// Returns false without error when the key already exists.
func (s *Store) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.liveKV(key); ok {
		return false, nil
	}
	s.kv[key] = kvEntry{value: cloneBytes(value), expiresAt: s.now().Add(ttl)}
	return true, nil
}

// IncrBy increments an integer value, creating the key at val when absent.
// The existing expiry is preserved, matching INCRBY.
func (s *Store) IncrBy(_ context.Context, key string, val int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveKV(key)
	if !ok {
		s.kv[key] = kvEntry{value: []byte(strconv.FormatInt(val, 10))}
		return nil
	}
	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return &db.Error{Op: db.OpIncrBy, Err: fmt.Errorf("value at %s is not an integer", key)}
	}
	e.value = []byte(strconv.FormatInt(n+val, 10))
	s.kv[key] = e
	return nil
}

// Expire sets TTL on an existing key. When nx is true the TTL is applied
// only if the key has no expiry yet.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveKV(key)
	if !ok {
		return nil
	}
	if nx && !e.expiresAt.IsZero() {
		return nil
	}
	e.expiresAt = s.now().Add(ttl)
	s.kv[key] = e
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
