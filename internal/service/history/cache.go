// Package history maintains the in-memory daily price series per symbol,
// refreshing it with a full load on first access and short incremental
// loads afterwards.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"optionscan/internal/domain/models"
	"optionscan/pkg/logger"
)

const (
	// FullLookbackDays is one trading year of daily bars.
	FullLookbackDays = 252
	// IncrementalDays covers a long weekend plus slack.
	IncrementalDays = 5
)

// BarSource fetches daily bars from the gateway.
type BarSource interface {
	DailyBars(ctx context.Context, symbol string, days int) ([]models.Bar, error)
}

// Cache holds one merged PriceSeries per symbol.
type Cache struct {
	mu     sync.Mutex
	source BarSource
	log    *logger.Logger
	maxAge time.Duration
	series map[string]*models.PriceSeries
	now    func() time.Time
}

// NewCache creates a bar cache; series older than maxAge trigger an
// incremental refresh on access.
func NewCache(source BarSource, log *logger.Logger, maxAge time.Duration) *Cache {
	return &Cache{
		source: source,
		log:    log,
		maxAge: maxAge,
		series: make(map[string]*models.PriceSeries),
		now:    time.Now,
	}
}

// EnsureFresh returns an up-to-date series for symbol, fetching a full year
// on first access and a short incremental batch when the cached series has
// gone stale. The cached series is only replaced after a successful fetch;
// a fetch error surfaces alongside the previous series untouched.
func (c *Cache) EnsureFresh(ctx context.Context, symbol string) (*models.PriceSeries, error) {
	c.mu.Lock()
	s, ok := c.series[symbol]
	c.mu.Unlock()

	days := FullLookbackDays
	if ok && !s.Empty() {
		if c.now().Sub(s.UpdatedAt) < c.maxAge {
			return s, nil
		}
		days = IncrementalDays
	}

	bars, err := c.source.DailyBars(ctx, symbol, days)
	if err != nil {
		return s, fmt.Errorf("history refresh %s: %w", symbol, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok = c.series[symbol]
	if !ok {
		s = &models.PriceSeries{Symbol: symbol}
		c.series[symbol] = s
	}
	s.Merge(bars)
	s.UpdatedAt = c.now()

	c.log.Debug("history refreshed",
		logger.String("symbol", symbol),
		logger.Int("fetched", len(bars)),
		logger.Int("total", s.Len()))
	return s, nil
}

// Peek returns the cached series without refreshing, or nil.
func (c *Cache) Peek(symbol string) *models.PriceSeries {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.series[symbol]
}
