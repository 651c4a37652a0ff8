package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/internal/lookup"
)

func newRedisCache(t *testing.T) (*RedisCacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheServiceWithClient(client, time.Hour, zap.NewNop()), mr
}

func validEntry(t *testing.T) *models.CachedLookup {
	t.Helper()
	entry, ok := models.NewCachedLookup(lookup.Valid(lookup.Address{
		Street: "Dorpsstraat", HouseNumber: 10, Postcode: "1234AB", City: "Utrecht",
	}))
	require.True(t, ok)
	return entry
}

func TestRedisCacheService_GetSet(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	_, found, err := cache.Get(ctx, "nl:1234AB:10:")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, "nl:1234AB:10:", validEntry(t)))
	assert.True(t, mr.Exists(redisKeyPrefix+"nl:1234AB:10:"))

	got, found, err := cache.Get(ctx, "nl:1234AB:10:")
	require.NoError(t, err)
	require.True(t, found)
	res, err := got.Result()
	require.NoError(t, err)
	assert.Equal(t, lookup.ResultValid, res.Kind)
	assert.Equal(t, "Dorpsstraat 10", res.Address.StreetAndHouseNumber())

	ttl, err := cache.GetTTL(ctx, "nl:1234AB:10:")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)

	stats, err := cache.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalHits)
	assert.Equal(t, int64(1), stats.TotalMiss)
	assert.Equal(t, int64(1), stats.TotalItems)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestRedisCacheService_Expiry(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "nl:1234AB:10:", validEntry(t)))
	mr.FastForward(2 * time.Hour)

	_, found, err := cache.Get(ctx, "nl:1234AB:10:")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCacheService_InvalidatePostcode(t *testing.T) {
	cache, _ := newRedisCache(t)
	ctx := context.Background()

	for _, key := range []string{"nl:1234AB:10:", "nl:1234AB:12:B", "nl:5678CD:1:"} {
		require.NoError(t, cache.Set(ctx, key, validEntry(t)))
	}

	require.NoError(t, cache.InvalidatePostcode(ctx, "1234 ab"))

	for key, want := range map[string]bool{"nl:1234AB:10:": false, "nl:1234AB:12:B": false, "nl:5678CD:1:": true} {
		exists, err := cache.Exists(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, exists, key)
	}

	require.NoError(t, cache.Clear(ctx))
	exists, err := cache.Exists(ctx, "nl:5678CD:1:")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisCacheService_CorruptEntry(t *testing.T) {
	cache, mr := newRedisCache(t)
	require.NoError(t, mr.Set(redisKeyPrefix+"nl:1234AB:10:", "{not json"))

	_, _, err := cache.Get(context.Background(), "nl:1234AB:10:")
	assert.Error(t, err)
}
