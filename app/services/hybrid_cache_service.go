package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/address-lookup/app/models"
)

// HybridCacheService cache service kết hợp Redis (L1) + MongoDB (L2)
type HybridCacheService struct {
	redisCache ICacheService
	mongoCache *MongoCacheService
	logger     *zap.Logger
}

var _ ICacheService = (*HybridCacheService)(nil)

// NewHybridCacheService tạo mới hybrid cache service
func NewHybridCacheService(redisCache ICacheService, mongoCache *MongoCacheService, logger *zap.Logger) *HybridCacheService {
	return &HybridCacheService{
		redisCache: redisCache,
		mongoCache: mongoCache,
		logger:     logger,
	}
}

// Get lấy kết quả từ cache (Redis trước, MongoDB sau)
func (hcs *HybridCacheService) Get(ctx context.Context, key string) (*models.CachedLookup, bool, error) {
	entry, found, err := hcs.redisCache.Get(ctx, key)
	if err != nil {
		hcs.logger.Warn("redis cache failed, falling back to mongo", zap.Error(err))
	} else if found {
		return entry, true, nil
	}

	entry, found, err = hcs.mongoCache.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := hcs.redisCache.Set(bgCtx, key, entry); err != nil {
			hcs.logger.Warn("sync mongo->redis failed", zap.Error(err), zap.String("key", key))
		}
	}()

	hcs.logger.Debug("L2 cache hit (MongoDB)", zap.String("key", key))
	return entry, true, nil
}

// Set lưu vào cả Redis và MongoDB
func (hcs *HybridCacheService) Set(ctx context.Context, key string, entry *models.CachedLookup) error {
	return both(
		func() error { return hcs.redisCache.Set(ctx, key, entry) },
		func() error { return hcs.mongoCache.Set(ctx, key, entry) },
	)
}

func (hcs *HybridCacheService) Delete(ctx context.Context, key string) error {
	return both(
		func() error { return hcs.redisCache.Delete(ctx, key) },
		func() error { return hcs.mongoCache.Delete(ctx, key) },
	)
}

func (hcs *HybridCacheService) Clear(ctx context.Context) error {
	err := both(
		func() error { return hcs.redisCache.Clear(ctx) },
		func() error { return hcs.mongoCache.Clear(ctx) },
	)
	if err == nil {
		hcs.logger.Info("cleared hybrid cache (Redis + MongoDB)")
	}
	return err
}

func (hcs *HybridCacheService) InvalidatePostcode(ctx context.Context, postcode string) error {
	return both(
		func() error { return hcs.redisCache.InvalidatePostcode(ctx, postcode) },
		func() error { return hcs.mongoCache.InvalidatePostcode(ctx, postcode) },
	)
}

// GetStats kết hợp thống kê từ cả 2
func (hcs *HybridCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	redisStats, redisErr := hcs.redisCache.GetStats(ctx)
	mongoStats, mongoErr := hcs.mongoCache.GetStats(ctx)

	switch {
	case redisErr != nil && mongoErr != nil:
		return nil, errors.Join(redisErr, mongoErr)
	case redisErr != nil:
		return mongoStats, nil
	case mongoErr != nil:
		return redisStats, nil
	}

	hits := redisStats.TotalHits + mongoStats.TotalHits
	misses := redisStats.TotalMiss + mongoStats.TotalMiss
	return &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: mongoStats.TotalItems,
	}, nil
}

func (hcs *HybridCacheService) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := hcs.redisCache.Exists(ctx, key)
	if err != nil {
		hcs.logger.Warn("redis exists failed, falling back to mongo", zap.Error(err))
	} else if exists {
		return true, nil
	}
	return hcs.mongoCache.Exists(ctx, key)
}

func (hcs *HybridCacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	return hcs.redisCache.GetTTL(ctx, key)
}

func (hcs *HybridCacheService) Close() error {
	return errors.Join(hcs.redisCache.Close(), hcs.mongoCache.Close())
}

// WarmUp làm nóng L1 của MongoDB cache
func (hcs *HybridCacheService) WarmUp(ctx context.Context, limit int) (int, error) {
	return hcs.mongoCache.WarmUp(ctx, limit)
}

// both runs a and b concurrently and joins their errors.
func both(a, b func() error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a() }()
	errB := b()
	return errors.Join(<-errCh, errB)
}
