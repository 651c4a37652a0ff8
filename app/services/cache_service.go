package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/address-lookup/app/models"
)

type memoryEntry struct {
	value    *models.CachedLookup
	storedAt time.Time
}

// CacheService is an in-memory ICacheService, used when neither Redis nor
// MongoDB is configured and in tests.
type CacheService struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

var _ ICacheService = (*CacheService)(nil)

// NewCacheService tạo mới CacheService
func NewCacheService(ttl time.Duration) *CacheService {
	return &CacheService{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (cs *CacheService) Get(ctx context.Context, key string) (*models.CachedLookup, bool, error) {
	cs.mu.RLock()
	e, ok := cs.entries[key]
	cs.mu.RUnlock()

	if !ok || cs.isExpired(e) {
		if ok {
			cs.mu.Lock()
			delete(cs.entries, key)
			cs.mu.Unlock()
		}
		cs.misses.Add(1)
		return nil, false, nil
	}

	cs.hits.Add(1)
	return e.value, true, nil
}

func (cs *CacheService) Set(ctx context.Context, key string, entry *models.CachedLookup) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.entries[key] = memoryEntry{value: entry, storedAt: cs.now()}
	return nil
}

func (cs *CacheService) Delete(ctx context.Context, key string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	delete(cs.entries, key)
	return nil
}

func (cs *CacheService) Clear(ctx context.Context) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.entries = make(map[string]memoryEntry)
	return nil
}

func (cs *CacheService) InvalidatePostcode(ctx context.Context, postcode string) error {
	prefix := postcodePrefix(postcode)

	cs.mu.Lock()
	defer cs.mu.Unlock()

	for key := range cs.entries {
		if strings.HasPrefix(key, prefix) {
			delete(cs.entries, key)
		}
	}
	return nil
}

func (cs *CacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	cs.mu.RLock()
	items := int64(len(cs.entries))
	cs.mu.RUnlock()

	hits, misses := cs.hits.Load(), cs.misses.Load()
	return &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: items,
	}, nil
}

func (cs *CacheService) Exists(ctx context.Context, key string) (bool, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	e, ok := cs.entries[key]
	return ok && !cs.isExpired(e), nil
}

func (cs *CacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	e, ok := cs.entries[key]
	if !ok || cs.ttl <= 0 {
		return 0, nil
	}
	return max(0, cs.ttl-cs.now().Sub(e.storedAt)), nil
}

func (cs *CacheService) Close() error { return nil }

func (cs *CacheService) isExpired(e memoryEntry) bool {
	return cs.ttl > 0 && cs.now().Sub(e.storedAt) > cs.ttl
}

// postcodePrefix is the common prefix of every cache key of postcode.
func postcodePrefix(postcode string) string {
	return "nl:" + strings.ToUpper(strings.ReplaceAll(postcode, " ", "")) + ":"
}
