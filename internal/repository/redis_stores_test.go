package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionscan/internal/domain/models"
	"optionscan/pkg/cache"
)

func f64(v float64) *float64 { return &v }

func newVolStore(t *testing.T, now time.Time) *RedisVolatilityStore {
	t.Helper()
	mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(4096))
	t.Cleanup(func() { _ = mc.Close() })

	s := NewRedisVolatilityStore(mc)
	s.now = func() time.Time { return now }
	return s
}

func TestVolatilityHistoryReturnsOldestFirst(t *testing.T) {
	now := time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC)
	s := newVolStore(t, now)
	ctx := context.Background()

	for i, v := range []float64{31, 28, 35} {
		obs := models.VolatilityObservation{
			Symbol:     "AAPL",
			Date:       now.AddDate(0, 0, -(2 - i)),
			ImpliedVol: f64(v),
		}
		require.NoError(t, s.SaveObservation(ctx, obs))
	}

	hist, err := s.History(ctx, "AAPL", 252)
	require.NoError(t, err)
	require.Len(t, hist, 3)

	assert.Equal(t, *hist[0].ImpliedVol, 31.0)
	assert.Equal(t, *hist[2].ImpliedVol, 35.0)
	assert.True(t, hist[0].Date.Before(hist[1].Date))
}

func TestVolatilitySameDayOverwrites(t *testing.T) {
	now := time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC)
	s := newVolStore(t, now)
	ctx := context.Background()

	first := models.VolatilityObservation{Symbol: "MSFT", Date: now, ImpliedVol: f64(20)}
	second := models.VolatilityObservation{Symbol: "MSFT", Date: now, ImpliedVol: f64(22)}
	require.NoError(t, s.SaveObservation(ctx, first))
	require.NoError(t, s.SaveObservation(ctx, second))

	hist, err := s.History(ctx, "MSFT", 252)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 22.0, *hist[0].ImpliedVol)
}

func TestVolatilityHistoryTrimsToRequestedDays(t *testing.T) {
	now := time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC)
	s := newVolStore(t, now)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		obs := models.VolatilityObservation{
			Symbol:      "SPY",
			Date:        now.AddDate(0, 0, -i),
			RealizedVol: f64(float64(10 + i)),
		}
		require.NoError(t, s.SaveObservation(ctx, obs))
	}

	hist, err := s.History(ctx, "SPY", 5)
	require.NoError(t, err)
	require.Len(t, hist, 5)

	// Most recent five readings survive the trim.
	assert.Equal(t, 14.0, *hist[0].RealizedVol)
	assert.Equal(t, 10.0, *hist[4].RealizedVol)

	v, proxy := hist[4].Value()
	assert.Equal(t, 10.0, v)
	assert.True(t, proxy)
}

func TestVolatilitySymbolsAreIsolated(t *testing.T) {
	now := time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC)
	s := newVolStore(t, now)
	ctx := context.Background()

	require.NoError(t, s.SaveObservation(ctx, models.VolatilityObservation{
		Symbol: "AAPL", Date: now, ImpliedVol: f64(30),
	}))

	hist, err := s.History(ctx, "TSLA", 252)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestBenchmarkStaticFallback(t *testing.T) {
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	s := NewRedisBenchmarkStore(mc)
	ctx := context.Background()

	b, err := s.SectorBenchmark(ctx, "Technology")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 28.0, b.PEMedian)
	assert.Equal(t, "Technology", b.Sector)

	// Sectors outside the table yield no benchmark, not an error.
	b, err = s.SectorBenchmark(ctx, "Shipping Containers")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestBenchmarkUpsertOverridesFallback(t *testing.T) {
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	s := NewRedisBenchmarkStore(mc)
	ctx := context.Background()

	require.NoError(t, s.UpsertBenchmark(ctx, models.SectorBenchmark{
		Sector:         "Energy",
		PEMedian:       12.5,
		FCFYieldMedian: 0.09,
	}))

	b, err := s.SectorBenchmark(ctx, "energy")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 12.5, b.PEMedian)
	assert.False(t, b.UpdatedAt.IsZero())
}
