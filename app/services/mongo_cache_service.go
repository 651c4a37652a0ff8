package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/address-lookup/app/models"
)

// MongoCacheService persistent cache service sử dụng MongoDB + LRU in-memory
type MongoCacheService struct {
	collection *mongo.Collection
	l1Cache    *lru.Cache[string, *models.CachedLookup]
	logger     *zap.Logger
	ttl        time.Duration

	totalHits atomic.Int64
	totalMiss atomic.Int64
	l1Hits    atomic.Int64
	mongoHits atomic.Int64
}

var _ ICacheService = (*MongoCacheService)(nil)

// NewMongoCacheService tạo mới MongoCacheService
func NewMongoCacheService(db *mongo.Database, l1Size int, ttl time.Duration, logger *zap.Logger) (*MongoCacheService, error) {
	l1Cache, err := lru.New[string, *models.CachedLookup](l1Size)
	if err != nil {
		return nil, fmt.Errorf("create LRU cache: %w", err)
	}

	collection := db.Collection("address_cache")

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "fingerprint", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "postcode", Value: 1}},
		},
		{
			// MongoDB removes documents once expires_at has passed.
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "access_count", Value: -1}},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		logger.Warn("could not create address_cache indexes", zap.Error(err))
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &MongoCacheService{
		collection: collection,
		l1Cache:    l1Cache,
		logger:     logger,
		ttl:        ttl,
	}, nil
}

// Get lấy kết quả từ cache (L1 → MongoDB)
func (mcs *MongoCacheService) Get(ctx context.Context, key string) (*models.CachedLookup, bool, error) {
	if entry, found := mcs.l1Cache.Get(key); found {
		mcs.l1Hits.Add(1)
		mcs.totalHits.Add(1)
		mcs.logger.Debug("L1 cache hit", zap.String("key", key))
		return entry, true, nil
	}

	var doc models.AddressCache
	err := mcs.collection.FindOne(ctx, bson.M{"fingerprint": models.Fingerprint(key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		mcs.totalMiss.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query mongo cache: %w", err)
	}

	// The TTL monitor runs once a minute; expired documents may still be read.
	if doc.IsExpired(time.Now()) {
		mcs.totalMiss.Add(1)
		return nil, false, nil
	}

	mcs.mongoHits.Add(1)
	mcs.totalHits.Add(1)

	go mcs.updateAccessStats(doc.ID)

	entry := doc.Lookup
	mcs.l1Cache.Add(key, &entry)

	mcs.logger.Debug("MongoDB cache hit", zap.String("key", key))
	return &entry, true, nil
}

// Set lưu kết quả vào cache (L1 + MongoDB)
func (mcs *MongoCacheService) Set(ctx context.Context, key string, entry *models.CachedLookup) error {
	mcs.l1Cache.Add(key, entry)

	doc := models.NewAddressCache(key, keyPostcode(key), *entry, mcs.ttl)

	opts := options.Replace().SetUpsert(true)
	if _, err := mcs.collection.ReplaceOne(ctx, bson.M{"fingerprint": doc.Fingerprint}, doc, opts); err != nil {
		mcs.logger.Error("mongo cache upsert failed", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("store mongo cache entry: %w", err)
	}

	mcs.logger.Debug("stored in mongo cache", zap.String("key", key), zap.String("kind", entry.Kind))
	return nil
}

func (mcs *MongoCacheService) Delete(ctx context.Context, key string) error {
	mcs.l1Cache.Remove(key)

	if _, err := mcs.collection.DeleteOne(ctx, bson.M{"fingerprint": models.Fingerprint(key)}); err != nil {
		return fmt.Errorf("delete mongo cache entry: %w", err)
	}
	return nil
}

func (mcs *MongoCacheService) Clear(ctx context.Context) error {
	mcs.l1Cache.Purge()

	if _, err := mcs.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clear mongo cache: %w", err)
	}

	mcs.totalHits.Store(0)
	mcs.totalMiss.Store(0)
	mcs.l1Hits.Store(0)
	mcs.mongoHits.Store(0)
	return nil
}

// InvalidatePostcode xóa cache của một postcode
func (mcs *MongoCacheService) InvalidatePostcode(ctx context.Context, postcode string) error {
	prefix := postcodePrefix(postcode)
	for _, key := range mcs.l1Cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			mcs.l1Cache.Remove(key)
		}
	}

	result, err := mcs.collection.DeleteMany(ctx, bson.M{"postcode": keyPostcode(prefix)})
	if err != nil {
		return fmt.Errorf("invalidate postcode %s: %w", postcode, err)
	}

	mcs.logger.Info("invalidated postcode in mongo cache",
		zap.String("postcode", postcode),
		zap.Int64("deleted_count", result.DeletedCount))
	return nil
}

func (mcs *MongoCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	mongoCount, err := mcs.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("count mongo cache documents: %w", err)
	}

	hits, misses := mcs.totalHits.Load(), mcs.totalMiss.Load()
	stats := &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: mongoCount,
	}

	mcs.logger.Debug("cache stats",
		zap.Float64("hit_rate", stats.HitRate),
		zap.Int64("l1_hits", mcs.l1Hits.Load()),
		zap.Int64("mongo_hits", mcs.mongoHits.Load()),
		zap.Int("l1_size", mcs.l1Cache.Len()),
		zap.Int64("mongo_count", mongoCount))

	return stats, nil
}

func (mcs *MongoCacheService) Exists(ctx context.Context, key string) (bool, error) {
	if mcs.l1Cache.Contains(key) {
		return true, nil
	}

	count, err := mcs.collection.CountDocuments(ctx, bson.M{"fingerprint": models.Fingerprint(key)})
	if err != nil {
		return false, fmt.Errorf("check mongo cache entry: %w", err)
	}
	return count > 0, nil
}

// GetTTL đọc expires_at của document
func (mcs *MongoCacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	var doc models.AddressCache
	err := mcs.collection.FindOne(ctx, bson.M{"fingerprint": models.Fingerprint(key)},
		options.FindOne().SetProjection(bson.M{"expires_at": 1})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return max(0, time.Until(doc.ExpiresAt)), nil
}

// Close không đóng client; connection được quản lý bởi caller
func (mcs *MongoCacheService) Close() error {
	return nil
}

// updateAccessStats cập nhật thống kê truy cập (async)
func (mcs *MongoCacheService) updateAccessStats(id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{"last_accessed": time.Now()},
		"$inc": bson.M{"access_count": 1},
	}
	if _, err := mcs.collection.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		mcs.logger.Warn("update access stats failed", zap.Error(err))
	}
}

// WarmUp nạp các entry được truy cập nhiều nhất vào L1
func (mcs *MongoCacheService) WarmUp(ctx context.Context, limit int) (int, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "access_count", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := mcs.collection.Find(ctx, bson.M{"expires_at": bson.M{"$gt": time.Now()}}, opts)
	if err != nil {
		return 0, fmt.Errorf("warm up cache: %w", err)
	}
	defer cursor.Close(ctx)

	count := 0
	for cursor.Next(ctx) {
		var doc models.AddressCache
		if err := cursor.Decode(&doc); err != nil {
			mcs.logger.Warn("decode cache entry during warm up", zap.Error(err))
			continue
		}
		entry := doc.Lookup
		mcs.l1Cache.Add(doc.Key, &entry)
		count++
	}
	if err := cursor.Err(); err != nil {
		return count, fmt.Errorf("warm up cursor: %w", err)
	}

	mcs.logger.Info("cache warm up done",
		zap.Int("loaded_items", count),
		zap.Int("l1_size", mcs.l1Cache.Len()))
	return count, nil
}

// HotKeys returns the cache keys read most often, busiest first.
func (mcs *MongoCacheService) HotKeys(ctx context.Context, limit int) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "access_count", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"key": 1})

	cursor, err := mcs.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find hot keys: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		Key string `bson:"key"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode hot keys: %w", err)
	}

	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		keys = append(keys, d.Key)
	}
	return keys, nil
}

// keyPostcode extracts the postcode segment of a cache key (nl:1234AB:10:).
func keyPostcode(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
