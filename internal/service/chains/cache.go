// Package chains caches option chain parameters per symbol and passes quote
// requests straight through to the gateway.
package chains

import (
	"context"
	"fmt"
	"sync"
	"time"

	"optionscan/internal/domain/models"
	"optionscan/pkg/logger"
)

// Source is the gateway surface the chain service needs.
type Source interface {
	ChainParams(ctx context.Context, symbol string) (models.ChainParams, error)
	OptionQuote(ctx context.Context, c models.OptionContract) (models.OptionQuote, error)
}

// Provider is what contract selection consumes.
type Provider interface {
	Chain(ctx context.Context, symbol string) (models.ChainParams, error)
	Quote(ctx context.Context, c models.OptionContract) (models.OptionQuote, error)
}

// Service caches chain parameters for maxAge; quotes are never cached.
type Service struct {
	mu     sync.Mutex
	source Source
	log    *logger.Logger
	maxAge time.Duration
	chains map[string]models.ChainParams
	now    func() time.Time
}

var _ Provider = (*Service)(nil)

func NewService(source Source, log *logger.Logger, maxAge time.Duration) *Service {
	return &Service{
		source: source,
		log:    log,
		maxAge: maxAge,
		chains: make(map[string]models.ChainParams),
		now:    time.Now,
	}
}

// Chain returns chain parameters for symbol, refetching past maxAge.
// Expirations and strikes move rarely intraday, so a stale-but-present chain
// is served when the refetch fails.
func (s *Service) Chain(ctx context.Context, symbol string) (models.ChainParams, error) {
	s.mu.Lock()
	cached, ok := s.chains[symbol]
	s.mu.Unlock()
	if ok && s.now().Sub(cached.FetchedAt) < s.maxAge {
		return cached, nil
	}

	chain, err := s.source.ChainParams(ctx, symbol)
	if err != nil {
		if ok {
			s.log.Warn("chain refetch failed, serving stale",
				logger.String("symbol", symbol), logger.Error(err))
			return cached, nil
		}
		return models.ChainParams{}, fmt.Errorf("chain %s: %w", symbol, err)
	}
	if len(chain.Expirations) == 0 || len(chain.Strikes) == 0 {
		return models.ChainParams{}, fmt.Errorf("chain %s: empty chain", symbol)
	}

	s.mu.Lock()
	s.chains[symbol] = chain
	s.mu.Unlock()
	return chain, nil
}

// Quote fetches a live quote for one contract.
func (s *Service) Quote(ctx context.Context, c models.OptionContract) (models.OptionQuote, error) {
	return s.source.OptionQuote(ctx, c)
}
