package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/internal/lookup"
	"github.com/address-lookup/internal/parser"
	"github.com/address-lookup/internal/search"
)

var (
	// ErrInvalidInput is returned for a postcode, house number or query that
	// does not parse.
	ErrInvalidInput = errors.New("invalid address input")
	// ErrSearchUnavailable is returned when no search index is configured.
	ErrSearchUnavailable = errors.New("address search unavailable")
)

// Searcher is the free-text side of the address index.
type Searcher interface {
	Search(q parser.Query, filter string, limit int) ([]search.Hit, error)
}

// AddressService resolves canonical keys through the cache and the external
// API. Identical concurrent lookups share one upstream request.
type AddressService struct {
	client    lookup.AddressAPI
	cache     ICacheService
	searcher  Searcher
	parser    *parser.Parser
	timeout   time.Duration
	logger    *zap.Logger
	startTime time.Time

	group singleflight.Group

	lookups   atomic.Int64
	upstream  atomic.Int64
	failures  atomic.Int64
	coalesced atomic.Int64
}

var _ lookup.AddressAPI = (*AddressService)(nil)

// NewAddressService tạo mới AddressService. searcher may be nil.
func NewAddressService(client lookup.AddressAPI, cache ICacheService, searcher Searcher, locale parser.Locale, timeout time.Duration, logger *zap.Logger) *AddressService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AddressService{
		client:    client,
		cache:     cache,
		searcher:  searcher,
		parser:    parser.New(locale),
		timeout:   timeout,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Lookup answers key from the cache or the external API. Transport failures
// are returned as errors and never cached.
func (as *AddressService) Lookup(ctx context.Context, key parser.CanonicalKey) (lookup.Result, error) {
	if !key.Valid() {
		return lookup.Result{}, ErrInvalidInput
	}
	as.lookups.Add(1)
	cacheKey := key.String()

	if as.cache != nil {
		entry, found, err := as.cache.Get(ctx, cacheKey)
		if err != nil {
			as.logger.Warn("cache read failed", zap.Error(err), zap.String("key", cacheKey))
		} else if found {
			res, err := entry.Result()
			if err == nil {
				return res, nil
			}
			as.logger.Warn("dropping unreadable cache entry", zap.Error(err), zap.String("key", cacheKey))
			_ = as.cache.Delete(ctx, cacheKey)
		}
	}

	// The shared call outlives any single caller; each caller still honours
	// its own ctx.
	ch := as.group.DoChan(cacheKey, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), as.timeout)
		defer cancel()
		return as.fetch(callCtx, key)
	})

	select {
	case <-ctx.Done():
		return lookup.Result{}, ctx.Err()
	case r := <-ch:
		if r.Shared {
			as.coalesced.Add(1)
		}
		if r.Err != nil {
			return lookup.Result{}, r.Err
		}
		return r.Val.(lookup.Result), nil
	}
}

func (as *AddressService) fetch(ctx context.Context, key parser.CanonicalKey) (lookup.Result, error) {
	as.upstream.Add(1)
	start := time.Now()

	res, err := as.client.Lookup(ctx, key)
	if err == nil && res.Kind == lookup.ResultError {
		err = res.Err
	}
	if err != nil {
		as.failures.Add(1)
		as.logger.Warn("address lookup failed",
			zap.String("key", key.String()),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return lookup.Result{}, fmt.Errorf("lookup %s: %w", key, err)
	}

	as.logger.Debug("address lookup",
		zap.String("key", key.String()),
		zap.String("result", res.Kind.String()),
		zap.Duration("took", time.Since(start)))

	if as.cache != nil {
		if entry, ok := models.NewCachedLookup(res); ok {
			if err := as.cache.Set(ctx, key.String(), entry); err != nil {
				as.logger.Warn("cache write failed", zap.Error(err), zap.String("key", key.String()))
			}
		}
	}
	return res, nil
}

// LookupInput parses raw form values and looks the address up.
func (as *AddressService) LookupInput(ctx context.Context, postcode, houseNumber string) (parser.CanonicalKey, lookup.Result, error) {
	parsed := as.parser.Parse(parser.Input{Postcode: postcode, HouseNumber: houseNumber})
	if !parsed.Key.Valid() {
		return parser.Invalid, lookup.Result{}, fmt.Errorf("%w: postcode valid=%t, house number valid=%t",
			ErrInvalidInput, parsed.PostcodeValid, parsed.HouseNumberValid)
	}
	res, err := as.Lookup(ctx, parsed.Key)
	return parsed.Key, res, err
}

// Search runs a free-text query against the address index. postcode
// optionally narrows the results.
func (as *AddressService) Search(ctx context.Context, raw, postcode string, limit int) ([]search.Hit, error) {
	if as.searcher == nil {
		return nil, ErrSearchUnavailable
	}
	q, ok := parser.ParseQuery(raw)
	if !ok {
		return nil, fmt.Errorf("%w: query too short", ErrInvalidInput)
	}

	var filter string
	if postcode != "" {
		pc, ok := as.parser.ParsePostcode(postcode)
		if !ok {
			return nil, fmt.Errorf("%w: postcode %q", ErrInvalidInput, postcode)
		}
		filter = search.FilterPostcode(pc)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return as.searcher.Search(q, filter, limit)
}

// SearchEnabled reports whether a search index is configured.
func (as *AddressService) SearchEnabled() bool {
	return as.searcher != nil
}

// Locale returns the postcode locale used by LookupInput.
func (as *AddressService) Locale() parser.Locale {
	return as.parser.Locale()
}

// GetStartTime lấy thời gian khởi động service
func (as *AddressService) GetStartTime() time.Time {
	return as.startTime
}

// GetStats lấy thống kê service
func (as *AddressService) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"uptime_seconds":    int64(time.Since(as.startTime).Seconds()),
		"start_time":        as.startTime.Format(time.RFC3339),
		"lookups":           as.lookups.Load(),
		"upstream_requests": as.upstream.Load(),
		"upstream_failures": as.failures.Load(),
		"coalesced":         as.coalesced.Load(),
		"search_enabled":    as.SearchEnabled(),
	}
}
