package revocation

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/getkayan/warden/internal/domain"
	"github.com/patrickmn/go-cache"
)

// MemoryStore implements domain.KeyValueStore in process memory. It suits
// single-instance deployments and tests; entries do not survive a restart.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewMemoryStore creates a store that sweeps expired entries every cleanupInterval.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

func (s *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.cache.Get(key)
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return asString(val), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(key)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cache.Get(key)
	return ok, nil
}

func (s *MemoryStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.cache.Get(key)
	if !ok || asString(val) != expected {
		return false, nil
	}
	s.cache.Delete(key)
	return true, nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.cache.IncrementInt64(key, 1)
	if err != nil {
		// Absent or expired: start a new window.
		s.cache.Set(key, int64(1), ttl)
		return 1, nil
	}
	return n, nil
}

// asString renders values the way Redis would return them.
func asString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}
