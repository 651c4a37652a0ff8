package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/address-lookup/app/models"
)

const redisKeyPrefix = "addr_lookup:"

// RedisCacheService cache service sử dụng Redis
type RedisCacheService struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

var _ ICacheService = (*RedisCacheService)(nil)

// NewRedisCacheService tạo mới Redis cache service
func NewRedisCacheService(redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisCacheService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return NewRedisCacheServiceWithClient(client, ttl, logger), nil
}

// NewRedisCacheServiceWithClient wraps an existing client.
func NewRedisCacheServiceWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCacheService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCacheService{
		client: client,
		logger: logger,
		prefix: redisKeyPrefix,
		ttl:    ttl,
	}
}

func (rcs *RedisCacheService) Get(ctx context.Context, key string) (*models.CachedLookup, bool, error) {
	cacheKey := rcs.prefix + key

	val, err := rcs.client.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		rcs.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		rcs.logger.Error("redis get failed", zap.Error(err), zap.String("key", cacheKey))
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry models.CachedLookup
	if err := json.Unmarshal(val, &entry); err != nil {
		rcs.logger.Error("redis cache entry corrupt", zap.Error(err), zap.String("key", cacheKey))
		return nil, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}

	rcs.hits.Add(1)
	rcs.logger.Debug("redis cache hit", zap.String("key", key))
	return &entry, true, nil
}

func (rcs *RedisCacheService) Set(ctx context.Context, key string, entry *models.CachedLookup) error {
	cacheKey := rcs.prefix + key

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if err := rcs.client.Set(ctx, cacheKey, data, rcs.ttl).Err(); err != nil {
		rcs.logger.Error("redis set failed", zap.Error(err), zap.String("key", cacheKey))
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	rcs.logger.Debug("stored in redis cache", zap.String("key", key))
	return nil
}

func (rcs *RedisCacheService) Delete(ctx context.Context, key string) error {
	if err := rcs.client.Del(ctx, rcs.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (rcs *RedisCacheService) Clear(ctx context.Context) error {
	deleted, err := rcs.deleteMatching(ctx, rcs.prefix+"*")
	if err != nil {
		return err
	}
	rcs.logger.Info("cleared redis cache", zap.Int("keys_deleted", deleted))
	return nil
}

func (rcs *RedisCacheService) InvalidatePostcode(ctx context.Context, postcode string) error {
	deleted, err := rcs.deleteMatching(ctx, rcs.prefix+postcodePrefix(postcode)+"*")
	if err != nil {
		return err
	}
	rcs.logger.Info("invalidated postcode in redis cache",
		zap.String("postcode", postcode),
		zap.Int("keys_deleted", deleted))
	return nil
}

// deleteMatching removes keys matching pattern using SCAN.
func (rcs *RedisCacheService) deleteMatching(ctx context.Context, pattern string) (int, error) {
	var batch []string
	deleted := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := rcs.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}

	iter := rcs.client.Scan(ctx, 0, pattern, 500).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 500 {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	return deleted, flush()
}

func (rcs *RedisCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	var items int64
	iter := rcs.client.Scan(ctx, 0, rcs.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		items++
	}
	if err := iter.Err(); err != nil {
		rcs.logger.Warn("redis scan for stats failed", zap.Error(err))
	}

	hits, misses := rcs.hits.Load(), rcs.misses.Load()
	return &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: items,
	}, nil
}

func (rcs *RedisCacheService) Exists(ctx context.Context, key string) (bool, error) {
	n, err := rcs.client.Exists(ctx, rcs.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (rcs *RedisCacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	return rcs.client.TTL(ctx, rcs.prefix+key).Result()
}

func (rcs *RedisCacheService) Close() error {
	return rcs.client.Close()
}
