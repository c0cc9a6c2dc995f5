// Package marketdata wraps the correlation engine in blocking per-kind fetch
// calls, with one shared rate limiter pacing all outbound requests.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"optionscan/internal/domain/models"
	"optionscan/internal/service/corr"
	"optionscan/pkg/config"
)

// ErrTimeout is returned when a request is not finalized within its window.
var ErrTimeout = fmt.Errorf("marketdata: request timed out")

// Fetcher is the blocking fetch surface used by the scan driver.
type Fetcher struct {
	engine   *corr.Engine
	timeouts config.TimeoutConfig
	limiter  *rate.Limiter
}

// NewFetcher paces requests at rps with a burst of 1 so request spacing
// stays even across a scan cycle.
func NewFetcher(engine *corr.Engine, timeouts config.TimeoutConfig, rps float64) *Fetcher {
	if rps <= 0 {
		rps = 1
	}
	return &Fetcher{
		engine:   engine,
		timeouts: timeouts,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (f *Fetcher) await(ctx context.Context, id int64, timeout time.Duration) (corr.Result, error) {
	if !f.engine.AwaitCompletion(ctx, id, timeout) {
		return corr.Result{}, ErrTimeout
	}
	res, err := f.engine.TakeResult(id)
	if err != nil {
		return corr.Result{}, err
	}
	if res.Failed {
		return corr.Result{}, fmt.Errorf("marketdata: %s failed: code %d: %s", res.Kind, res.Code, res.ErrMsg)
	}
	return res, nil
}

// DailyBars fetches days of daily bars for symbol.
func (f *Fetcher) DailyBars(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	id, err := f.engine.IssueHistoricalBars(symbol, days)
	if err != nil {
		return nil, err
	}
	res, err := f.await(ctx, id, f.timeouts.Bars)
	if err != nil {
		return nil, fmt.Errorf("bars %s: %w", symbol, err)
	}
	return res.Bars, nil
}

// Fundamentals fetches the raw fundamentals field map for symbol.
func (f *Fetcher) Fundamentals(ctx context.Context, symbol string) (map[string]string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	id, err := f.engine.IssueFundamentals(symbol)
	if err != nil {
		return nil, err
	}
	res, err := f.await(ctx, id, f.timeouts.Fundamentals)
	if err != nil {
		return nil, fmt.Errorf("fundamentals %s: %w", symbol, err)
	}
	return res.Fields, nil
}

// ContractDetails resolves contracts matching a partial spec.
func (f *Fetcher) ContractDetails(ctx context.Context, spec models.ContractSpec) ([]models.OptionContract, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	id, err := f.engine.IssueContractDetails(spec)
	if err != nil {
		return nil, err
	}
	res, err := f.await(ctx, id, f.timeouts.Chain)
	if err != nil {
		return nil, fmt.Errorf("contract details %s: %w", spec.Symbol, err)
	}
	return res.Contracts, nil
}

// ChainParams fetches available expirations and strikes for symbol.
func (f *Fetcher) ChainParams(ctx context.Context, symbol string) (models.ChainParams, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return models.ChainParams{}, err
	}
	id, err := f.engine.IssueChainParams(symbol)
	if err != nil {
		return models.ChainParams{}, err
	}
	res, err := f.await(ctx, id, f.timeouts.Chain)
	if err != nil {
		return models.ChainParams{}, fmt.Errorf("chain params %s: %w", symbol, err)
	}
	return res.Chain, nil
}

// OptionQuote accumulates ticks for a fixed window, then finalizes and
// drains the buffer. Quotes have no terminal event, so the window is the
// protocol, not a deadline.
func (f *Fetcher) OptionQuote(ctx context.Context, c models.OptionContract) (models.OptionQuote, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return models.OptionQuote{}, err
	}
	id, err := f.engine.IssueOptionQuote(c)
	if err != nil {
		return models.OptionQuote{}, err
	}

	select {
	case <-ctx.Done():
		_ = f.engine.Finalize(id)
		_, _ = f.engine.TakeResult(id)
		return models.OptionQuote{}, ctx.Err()
	case <-time.After(f.timeouts.QuoteWindow):
	}

	if !f.engine.Finalize(id) {
		return models.OptionQuote{}, corr.ErrNotFound
	}
	res, err := f.engine.TakeResult(id)
	if err != nil {
		return models.OptionQuote{}, err
	}
	if res.Failed {
		return models.OptionQuote{}, fmt.Errorf("quote %s: code %d: %s", c.Symbol, res.Code, res.ErrMsg)
	}
	q := res.Quote
	q.Contract = c
	return q, nil
}

// AccountSummary fetches the account tag map.
func (f *Fetcher) AccountSummary(ctx context.Context) (map[string]float64, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	id, err := f.engine.IssueAccountSummary()
	if err != nil {
		return nil, err
	}
	res, err := f.await(ctx, id, f.timeouts.Account)
	if err != nil {
		return nil, fmt.Errorf("account summary: %w", err)
	}
	return res.Account, nil
}

// Positions fetches the open position list.
func (f *Fetcher) Positions(ctx context.Context) ([]models.Position, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	id, err := f.engine.IssuePositions()
	if err != nil {
		return nil, err
	}
	res, err := f.await(ctx, id, f.timeouts.Account)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	return res.Positions, nil
}
