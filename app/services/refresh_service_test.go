package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/internal/lookup"
)

type staticKeys []string

func (s staticKeys) HotKeys(ctx context.Context, limit int) ([]string, error) {
	return s[:min(limit, len(s))], nil
}

func TestCacheRefresher_RunOnce(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(time.Hour)

	renamed := dorpsstraat10
	renamed.Street = "Oude Dorpsstraat"
	stale, ok := models.NewCachedLookup(lookup.Valid(renamed))
	require.True(t, ok)
	require.NoError(t, cache.Set(ctx, "nl:1234AB:10:", stale))

	current, ok := models.NewCachedLookup(lookup.AdditionAmbiguous(dorpsstraat12, []string{"", "A", "B"}))
	require.True(t, ok)
	require.NoError(t, cache.Set(ctx, "nl:1234AB:12:", current))

	api := newFakeAPI()
	refresher := NewCacheRefresher(staticKeys{"nl:1234AB:10:", "nl:1234AB:12:", "garbage"}, api, cache, zaptest.NewLogger(t))

	stats, err := refresher.RunOnce(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, RefreshStats{Checked: 2, Changed: 1, Skipped: 1}, stats)

	got, found, err := cache.Get(ctx, "nl:1234AB:10:")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Dorpsstraat", got.Address.Street)
}

func TestCacheRefresher_KeepsEntryOnFailure(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(time.Hour)
	require.NoError(t, cache.Set(ctx, "nl:1234AB:10:", validEntry(t)))

	api := newFakeAPI()
	api.err = errors.New("503 service unavailable")
	refresher := NewCacheRefresher(staticKeys{"nl:1234AB:10:"}, api, cache, zaptest.NewLogger(t))

	stats, err := refresher.RunOnce(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	exists, err := cache.Exists(ctx, "nl:1234AB:10:")
	require.NoError(t, err)
	assert.True(t, exists)
}
