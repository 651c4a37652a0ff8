package services

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/address-lookup/internal/lookup"
	"github.com/address-lookup/internal/search"
)

// IndexAdmin manages the free-text address index.
type IndexAdmin interface {
	BuildIndex() error
	Seed(docs []search.Document, batchSize int) error
}

// AdminService service quản lý admin functions
type AdminService struct {
	addresses *AddressService
	cache     ICacheService
	sessions  *SessionService
	mappings  *MappingService
	index     IndexAdmin
	logger    *zap.Logger
}

// SeedResult kết quả seed search index
type SeedResult struct {
	DocumentsIndexed int   `json:"documents_indexed"`
	Skipped          int   `json:"skipped"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// SystemStats thống kê hệ thống
type SystemStats struct {
	Uptime       string                 `json:"uptime"`
	MemoryUsage  map[string]interface{} `json:"memory_usage"`
	Cache        *CacheStats            `json:"cache,omitempty"`
	Lookups      map[string]interface{} `json:"lookups"`
	OpenSessions int                    `json:"open_sessions"`
	Profiles     []string               `json:"profiles"`
}

// NewAdminService tạo mới AdminService. index may be nil.
func NewAdminService(addresses *AddressService, cache ICacheService, sessions *SessionService, mappings *MappingService, index IndexAdmin, logger *zap.Logger) *AdminService {
	return &AdminService{
		addresses: addresses,
		cache:     cache,
		sessions:  sessions,
		mappings:  mappings,
		index:     index,
		logger:    logger,
	}
}

// InvalidatePostcode drops cached answers of one postcode, or everything
// when postcode is empty.
func (as *AdminService) InvalidatePostcode(ctx context.Context, postcode string) error {
	if postcode == "" {
		as.logger.Info("clearing lookup cache")
		return as.cache.Clear(ctx)
	}
	return as.cache.InvalidatePostcode(ctx, postcode)
}

// SeedAddresses indexes addresses for free-text search.
func (as *AdminService) SeedAddresses(addrs []lookup.Address, rebuildIndex bool) (*SeedResult, error) {
	if as.index == nil {
		return nil, ErrSearchUnavailable
	}
	start := time.Now()

	if rebuildIndex {
		if err := as.index.BuildIndex(); err != nil {
			return nil, fmt.Errorf("build index: %w", err)
		}
	}

	docs := make([]search.Document, 0, len(addrs))
	skipped := 0
	for _, a := range addrs {
		if a.Postcode == "" || a.HouseNumber <= 0 {
			skipped++
			continue
		}
		docs = append(docs, search.NewDocument(a))
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no valid addresses to index", ErrInvalidInput)
	}

	if err := as.index.Seed(docs, 1000); err != nil {
		return nil, fmt.Errorf("seed index: %w", err)
	}

	res := &SeedResult{
		DocumentsIndexed: len(docs),
		Skipped:          skipped,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	as.logger.Info("address index seeded",
		zap.Int("documents", res.DocumentsIndexed),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// GetSystemStats lấy thống kê hệ thống
func (as *AdminService) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := &SystemStats{
		Uptime: time.Since(as.addresses.GetStartTime()).Round(time.Second).String(),
		MemoryUsage: map[string]interface{}{
			"alloc_mb":       bToMb(m.Alloc),
			"total_alloc_mb": bToMb(m.TotalAlloc),
			"sys_mb":         bToMb(m.Sys),
			"num_gc":         m.NumGC,
			"goroutines":     runtime.NumGoroutine(),
		},
		Lookups:      as.addresses.GetStats(),
		OpenSessions: as.sessions.Count(),
	}

	cacheStats, err := as.cache.GetStats(ctx)
	if err != nil {
		as.logger.Warn("cache stats unavailable", zap.Error(err))
	} else {
		stats.Cache = cacheStats
	}

	profiles, err := as.mappings.Profiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mapping profiles: %w", err)
	}
	stats.Profiles = profiles

	return stats, nil
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
