package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/internal/lookup"
)

func TestCacheService_Expiry(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(time.Hour)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(ctx, "nl:1234AB:10:", validEntry(t)))

	ttl, err := cache.GetTTL(ctx, "nl:1234AB:10:")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)

	now = now.Add(30 * time.Minute)
	_, found, err := cache.Get(ctx, "nl:1234AB:10:")
	require.NoError(t, err)
	assert.True(t, found)

	now = now.Add(time.Hour)
	_, found, err = cache.Get(ctx, "nl:1234AB:10:")
	require.NoError(t, err)
	assert.False(t, found)

	stats, err := cache.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalHits)
	assert.Equal(t, int64(1), stats.TotalMiss)
	assert.Equal(t, int64(0), stats.TotalItems)
}

func TestCacheService_InvalidatePostcode(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(0)

	notFound, ok := models.NewCachedLookup(lookup.NotFound())
	require.True(t, ok)

	require.NoError(t, cache.Set(ctx, "nl:1234AB:10:", validEntry(t)))
	require.NoError(t, cache.Set(ctx, "nl:1234AB:99:", notFound))
	require.NoError(t, cache.Set(ctx, "nl:1234AC:10:", validEntry(t)))

	require.NoError(t, cache.InvalidatePostcode(ctx, "1234ab"))

	exists, _ := cache.Exists(ctx, "nl:1234AB:10:")
	assert.False(t, exists)
	exists, _ = cache.Exists(ctx, "nl:1234AB:99:")
	assert.False(t, exists)
	exists, _ = cache.Exists(ctx, "nl:1234AC:10:")
	assert.True(t, exists)
}

func TestKeyPostcode(t *testing.T) {
	assert.Equal(t, "1234AB", keyPostcode("nl:1234AB:10:A"))
	assert.Equal(t, "1234AB", keyPostcode(postcodePrefix("1234 ab")))
	assert.Equal(t, "", keyPostcode("invalid"))
}
