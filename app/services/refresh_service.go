package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/internal/lookup"
	"github.com/address-lookup/internal/mapping"
	"github.com/address-lookup/internal/parser"
)

// HotKeySource lists the most used cache keys.
type HotKeySource interface {
	HotKeys(ctx context.Context, limit int) ([]string, error)
}

// RefreshStats summarizes one refresh run.
type RefreshStats struct {
	Checked int `json:"checked"`
	Changed int `json:"changed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// CacheRefresher re-validates popular cached answers against the API, so a
// renamed street or a new addition reaches the cache before the TTL runs
// out.
type CacheRefresher struct {
	source HotKeySource
	client lookup.AddressAPI
	cache  ICacheService
	logger *zap.Logger
}

// NewCacheRefresher tạo mới CacheRefresher
func NewCacheRefresher(source HotKeySource, client lookup.AddressAPI, cache ICacheService, logger *zap.Logger) *CacheRefresher {
	return &CacheRefresher{source: source, client: client, cache: cache, logger: logger}
}

// RunOnce refreshes up to limit keys. A failing lookup keeps the cached
// answer.
func (r *CacheRefresher) RunOnce(ctx context.Context, limit int) (RefreshStats, error) {
	var stats RefreshStats

	keys, err := r.source.HotKeys(ctx, limit)
	if err != nil {
		return stats, err
	}

	for _, raw := range keys {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		key, ok := parser.ParseCanonicalKey(raw)
		if !ok {
			stats.Skipped++
			continue
		}
		stats.Checked++

		res, err := r.client.Lookup(ctx, key)
		if err != nil || res.Kind == lookup.ResultError {
			stats.Failed++
			r.logger.Warn("refresh lookup failed", zap.String("key", raw), zap.Error(err))
			continue
		}

		fresh, ok := models.NewCachedLookup(res)
		if !ok {
			continue
		}

		cached, found, err := r.cache.Get(ctx, raw)
		if err != nil {
			return stats, fmt.Errorf("read cache %s: %w", raw, err)
		}
		if found && sameLookup(cached, fresh) {
			continue
		}

		if err := r.cache.Set(ctx, raw, fresh); err != nil {
			return stats, fmt.Errorf("write cache %s: %w", raw, err)
		}
		stats.Changed++
		r.logger.Info("cached lookup refreshed", zap.String("key", raw), zap.String("kind", fresh.Kind))
	}
	return stats, nil
}

// Run calls RunOnce every interval until ctx is done.
func (r *CacheRefresher) Run(ctx context.Context, interval time.Duration, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		stats, err := r.RunOnce(ctx, limit)
		if err != nil && ctx.Err() == nil {
			r.logger.Error("cache refresh failed", zap.Error(err))
		} else {
			r.logger.Info("cache refresh done",
				zap.Int("checked", stats.Checked),
				zap.Int("changed", stats.Changed),
				zap.Int("failed", stats.Failed))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sameLookup(a, b *models.CachedLookup) bool {
	if a.Kind != b.Kind || !slices.Equal(a.Candidates, b.Candidates) {
		return false
	}
	if a.Address == nil || b.Address == nil {
		return a.Address == b.Address
	}
	return a.Address.Formatted() == b.Address.Formatted() &&
		a.Address.Part(mapping.Province) == b.Address.Part(mapping.Province)
}
