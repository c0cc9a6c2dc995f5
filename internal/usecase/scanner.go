// Package usecase drives scan cycles: it walks the watchlist, freshens the
// caches through the gateway, runs every strategy variant through the
// screening pipeline, and fans accepted signals out to storage, push
// notification, and the message topic.
package usecase

import (
	"context"
	"errors"
	"time"

	"optionscan/internal/domain/models"
	"optionscan/internal/domain/repository"
	"optionscan/internal/pipeline"
	"optionscan/internal/service/corr"
	"optionscan/pkg/config"
	"optionscan/pkg/logger"
	"optionscan/pkg/util"
)

// HistoryCache freshens and serves per-symbol price series.
type HistoryCache interface {
	EnsureFresh(ctx context.Context, symbol string) (*models.PriceSeries, error)
}

// FundamentalsGetter serves cached fundamentals.
type FundamentalsGetter interface {
	Get(ctx context.Context, symbol string) (*models.FundamentalsRecord, error)
}

// VolRanker records and ranks volatility observations.
type VolRanker interface {
	Observe(ctx context.Context, symbol string, impliedVol *float64, series *models.PriceSeries) (models.VolatilityObservation, error)
	Rank(ctx context.Context, symbol string, current models.VolatilityObservation) (float64, bool, error)
}

// SnapshotProvider pulls the current portfolio snapshot.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) models.PortfolioSnapshot
}

// Evaluator runs one symbol x variant through the gate sequence.
type Evaluator interface {
	Evaluate(ctx context.Context, v pipeline.Variant, in pipeline.Input) models.Outcome
}

// Scanner owns the scan loop. Store, benchmarks, notifier, and publisher are
// optional; nil disables that sink.
type Scanner struct {
	cfg       config.ScannerConfig
	history   HistoryCache
	funds     FundamentalsGetter
	vol       VolRanker
	snapshots SnapshotProvider
	eval      Evaluator
	variants  []pipeline.Variant

	store     repository.SignalStore
	bench     repository.BenchmarkStore
	notifier  repository.Notifier
	publisher repository.Publisher

	metrics repository.Metrics
	log     *logger.Logger
	now     func() time.Time
}

func NewScanner(
	cfg config.ScannerConfig,
	history HistoryCache,
	funds FundamentalsGetter,
	vol VolRanker,
	snapshots SnapshotProvider,
	eval Evaluator,
	variants []pipeline.Variant,
	store repository.SignalStore,
	bench repository.BenchmarkStore,
	notifier repository.Notifier,
	publisher repository.Publisher,
	metrics repository.Metrics,
	log *logger.Logger,
) *Scanner {
	return &Scanner{
		cfg:       cfg,
		history:   history,
		funds:     funds,
		vol:       vol,
		snapshots: snapshots,
		eval:      eval,
		variants:  variants,
		store:     store,
		bench:     bench,
		notifier:  notifier,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// Run scans immediately, then on every interval tick, until the context is
// cancelled or the gateway connection is permanently lost.
func (s *Scanner) Run(ctx context.Context) error {
	if err := s.RunCycle(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				return err
			}
		}
	}
}

// RunCycle evaluates the full watchlist once. It returns a non-nil error
// only for fatal conditions (gateway permanently lost, context cancelled);
// per-symbol failures are logged and skipped.
func (s *Scanner) RunCycle(ctx context.Context) error {
	start := s.now()

	if s.cfg.EnforceTradingHours && !util.InTradingHours(start) {
		s.log.Debug("outside trading hours, skipping cycle")
		return nil
	}

	regime := s.computeRegime(ctx)
	snapshot := s.snapshots.Snapshot(ctx)
	s.log.Info("scan cycle started",
		logger.Int("symbols", len(s.cfg.Watchlist)),
		logger.String("regime", string(regime.Level)),
		logger.Bool("portfolio_known", snapshot.Known))

	accepted := 0
	for _, symbol := range s.cfg.Watchlist {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.scanSymbol(ctx, symbol, snapshot, regime)
		if err != nil {
			if errors.Is(err, corr.ErrFatal) {
				s.log.Error("gateway permanently lost, aborting cycle", logger.Error(err))
				return err
			}
			s.log.Warn("symbol scan failed", logger.String("symbol", symbol), logger.Error(err))
			continue
		}
		accepted += n
	}

	elapsed := s.now().Sub(start)
	s.metrics.RecordScanCycle(elapsed)
	s.log.Info("scan cycle finished",
		logger.Int("accepted", accepted),
		logger.Duration("elapsed", elapsed))
	return nil
}

// computeRegime derives the market risk level from the volatility index's
// latest close. A failed index fetch degrades to NORMAL rather than
// blocking the cycle.
func (s *Scanner) computeRegime(ctx context.Context) models.MarketRegime {
	series, err := s.history.EnsureFresh(ctx, s.cfg.VolatilityIndex)
	if err != nil || series.Empty() {
		if err != nil {
			s.log.Warn("volatility index fetch failed", logger.Error(err))
		}
		return pipeline.ComputeRegime(0, s.now())
	}
	return pipeline.ComputeRegime(series.LastClose(), s.now())
}

func (s *Scanner) scanSymbol(ctx context.Context, symbol string, snapshot models.PortfolioSnapshot, regime models.MarketRegime) (int, error) {
	series, err := s.history.EnsureFresh(ctx, symbol)
	if err != nil {
		if errors.Is(err, corr.ErrFatal) {
			return 0, err
		}
		s.log.Warn("history refresh failed", logger.String("symbol", symbol), logger.Error(err))
	}
	if s.store != nil && series != nil && !series.Empty() {
		if err := s.store.UpsertBars(ctx, symbol, series.Bars); err != nil {
			s.log.Warn("bar upsert failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}

	rec, err := s.funds.Get(ctx, symbol)
	if err != nil {
		if errors.Is(err, corr.ErrFatal) {
			return 0, err
		}
		// rec is still usable (all-nil); downstream gates reject on it.
	} else if s.store != nil {
		if err := s.store.UpsertFundamentals(ctx, rec); err != nil {
			s.log.Warn("fundamentals upsert failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}

	obs, err := s.vol.Observe(ctx, symbol, nil, series)
	if err != nil {
		s.log.Warn("volatility observation failed", logger.String("symbol", symbol), logger.Error(err))
	}
	ivRank, ivProxy, err := s.vol.Rank(ctx, symbol, obs)
	if err != nil {
		s.log.Warn("iv rank lookup failed", logger.String("symbol", symbol), logger.Error(err))
	}

	var bench *models.SectorBenchmark
	if s.bench != nil && rec != nil && rec.Sector != "" {
		if b, err := s.bench.SectorBenchmark(ctx, rec.Sector); err == nil {
			bench = b
		}
	}

	in := pipeline.Input{
		Symbol:       symbol,
		Series:       series,
		Fundamentals: rec,
		Benchmark:    bench,
		IVRank:       ivRank,
		IVRankProxy:  ivProxy,
		Snapshot:     snapshot,
		Regime:       regime,
	}

	accepted := 0
	var quotedIV *float64
	for _, v := range s.variants {
		out := s.eval.Evaluate(ctx, v, in)
		if quotedIV == nil && out.QuotedIV != nil {
			quotedIV = out.QuotedIV
		}
		if out.Rejected() {
			continue
		}
		accepted++
		s.emit(ctx, out.Accepted)
	}

	// Quote-time implied vol overwrites today's proxy observation, so the
	// next cycle ranks against a real reading.
	if quotedIV != nil {
		if _, err := s.vol.Observe(ctx, symbol, quotedIV, series); err != nil {
			s.log.Warn("implied vol observation failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
	return accepted, nil
}

// emit fans one accepted signal out to every configured sink. Sink failures
// are independent: a dead topic does not suppress the push notification.
func (s *Scanner) emit(ctx context.Context, sig *models.SignalCandidate) {
	if s.store != nil {
		if err := s.store.SaveSignal(ctx, sig); err != nil {
			s.log.Error("signal save failed", logger.String("symbol", sig.Symbol), logger.Error(err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifySignal(ctx, sig); err != nil {
			s.log.Error("signal notify failed", logger.String("symbol", sig.Symbol), logger.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishSignal(ctx, sig); err != nil {
			s.log.Error("signal publish failed", logger.String("symbol", sig.Symbol), logger.Error(err))
		}
	}
}
