package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"optionscan/internal/domain/models"
	domrepo "optionscan/internal/domain/repository"
	"optionscan/pkg/cache"
)

const (
	volKeyPrefix = "vol"
	dateLayout   = "2006-01-02"

	// Observations outlive the trailing rank window so a restarted
	// scanner does not begin from an empty history.
	defaultVolTTL = 400 * 24 * time.Hour
)

// RedisVolatilityStore keeps one volatility observation per (symbol, date)
// under date-stamped keys, so re-scanning the same day overwrites in place.
type RedisVolatilityStore struct {
	cache cache.Service
	ttl   time.Duration
	now   func() time.Time
}

var _ domrepo.VolatilityStore = (*RedisVolatilityStore)(nil)

func NewRedisVolatilityStore(c cache.Service) *RedisVolatilityStore {
	return &RedisVolatilityStore{
		cache: c,
		ttl:   defaultVolTTL,
		now:   time.Now,
	}
}

func (s *RedisVolatilityStore) SaveObservation(ctx context.Context, obs models.VolatilityObservation) error {
	if obs.Symbol == "" {
		return fmt.Errorf("volatility store: empty symbol")
	}
	key := volKey(obs.Symbol, obs.Date)
	if err := s.cache.Set(ctx, key, obs, s.ttl); err != nil {
		return fmt.Errorf("volatility store: save %s: %w", key, err)
	}
	return nil
}

// History returns up to the last `days` observations for symbol, oldest
// first. Keys are date-addressed, so the lookup fans a bounded calendar
// span out as one MGET; gaps (weekends, holidays, missed scans) simply
// produce no entry.
func (s *RedisVolatilityStore) History(ctx context.Context, symbol string, days int) ([]models.VolatilityObservation, error) {
	if days <= 0 {
		return nil, nil
	}

	// Trading days to calendar days, with slack for holidays.
	span := days*7/5 + 14
	today := s.now().UTC().Truncate(24 * time.Hour)

	keys := make([]string, 0, span)
	for i := 0; i < span; i++ {
		keys = append(keys, volKey(symbol, today.AddDate(0, 0, -i)))
	}

	found, err := cache.MGetTyped[models.VolatilityObservation](ctx, s.cache, keys...)
	if err != nil {
		return nil, fmt.Errorf("volatility store: history %s: %w", symbol, err)
	}

	obs := make([]models.VolatilityObservation, 0, len(found))
	for _, o := range found {
		obs = append(obs, o)
	}
	sort.Slice(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })

	if len(obs) > days {
		obs = obs[len(obs)-days:]
	}
	return obs, nil
}

func volKey(symbol string, date time.Time) string {
	return cache.GenerateKeyWithParams(volKeyPrefix, symbol, date.UTC().Format(dateLayout))
}
