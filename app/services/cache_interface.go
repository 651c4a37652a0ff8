package services

import (
	"context"
	"time"

	"github.com/address-lookup/app/models"
)

// CacheStats thống kê cache
type CacheStats struct {
	HitRate    float64 `json:"hit_rate"`
	TotalHits  int64   `json:"total_hits"`
	TotalMiss  int64   `json:"total_miss"`
	TotalItems int64   `json:"total_items"`
}

func hitRate(hits, misses int64) float64 {
	if total := hits + misses; total > 0 {
		return float64(hits) / float64(total)
	}
	return 0
}

// ICacheService caches lookup answers by canonical key string.
type ICacheService interface {
	// Get returns the entry for key; found is false on a miss.
	Get(ctx context.Context, key string) (*models.CachedLookup, bool, error)

	// Set stores entry under key.
	Set(ctx context.Context, key string, entry *models.CachedLookup) error

	Delete(ctx context.Context, key string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// InvalidatePostcode removes every entry of one postcode, e.g. after the
	// street was renamed.
	InvalidatePostcode(ctx context.Context, postcode string) error

	GetStats(ctx context.Context) (*CacheStats, error)

	Exists(ctx context.Context, key string) (bool, error)

	// GetTTL returns the remaining lifetime of key.
	GetTTL(ctx context.Context, key string) (time.Duration, error)

	Close() error
}
