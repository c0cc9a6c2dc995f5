package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"optionscan/internal/domain/models"
	domrepo "optionscan/internal/domain/repository"
	"optionscan/pkg/cache"
)

const (
	benchKeyPrefix  = "bench"
	defaultBenchTTL = 30 * 24 * time.Hour
)

// staticBenchmarks are coarse sector medians used until a fresher set is
// written through UpsertBenchmark. Unknown sectors get no benchmark, which
// drops the relative half of the valuation sub-score.
var staticBenchmarks = map[string]models.SectorBenchmark{
	"technology":             {PEMedian: 28, FCFYieldMedian: 0.035},
	"communication services": {PEMedian: 18, FCFYieldMedian: 0.050},
	"consumer cyclical":      {PEMedian: 20, FCFYieldMedian: 0.045},
	"consumer defensive":     {PEMedian: 21, FCFYieldMedian: 0.040},
	"healthcare":             {PEMedian: 22, FCFYieldMedian: 0.040},
	"financial services":     {PEMedian: 13, FCFYieldMedian: 0.060},
	"industrials":            {PEMedian: 19, FCFYieldMedian: 0.045},
	"energy":                 {PEMedian: 11, FCFYieldMedian: 0.080},
	"utilities":              {PEMedian: 17, FCFYieldMedian: 0.055},
	"basic materials":        {PEMedian: 14, FCFYieldMedian: 0.060},
	"real estate":            {PEMedian: 35, FCFYieldMedian: 0.050},
}

// RedisBenchmarkStore serves per-sector valuation medians from Redis with a
// built-in static fallback.
type RedisBenchmarkStore struct {
	cache cache.Service
	ttl   time.Duration
}

var _ domrepo.BenchmarkStore = (*RedisBenchmarkStore)(nil)

func NewRedisBenchmarkStore(c cache.Service) *RedisBenchmarkStore {
	return &RedisBenchmarkStore{cache: c, ttl: defaultBenchTTL}
}

func (s *RedisBenchmarkStore) SectorBenchmark(ctx context.Context, sector string) (*models.SectorBenchmark, error) {
	norm := normalizeSector(sector)
	if norm == "" {
		return nil, nil
	}

	var b models.SectorBenchmark
	err := s.cache.Get(ctx, benchKey(norm), &b)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("benchmark store: get %s: %w", norm, err)
	}

	if fallback, ok := staticBenchmarks[norm]; ok {
		fallback.Sector = sector
		return &fallback, nil
	}
	return nil, nil
}

// UpsertBenchmark writes a refreshed median set for a sector.
func (s *RedisBenchmarkStore) UpsertBenchmark(ctx context.Context, b models.SectorBenchmark) error {
	norm := normalizeSector(b.Sector)
	if norm == "" {
		return fmt.Errorf("benchmark store: empty sector")
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now().UTC()
	}
	if err := s.cache.Set(ctx, benchKey(norm), b, s.ttl); err != nil {
		return fmt.Errorf("benchmark store: upsert %s: %w", norm, err)
	}
	return nil
}

func benchKey(norm string) string {
	return cache.GenerateKeyWithParams(benchKeyPrefix, norm)
}

func normalizeSector(sector string) string {
	return strings.ToLower(strings.TrimSpace(sector))
}
