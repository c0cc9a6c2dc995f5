package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionscan/internal/domain/models"
	"optionscan/internal/pipeline"
	"optionscan/internal/service/corr"
	"optionscan/pkg/config"
	"optionscan/pkg/logger"
)

type nopMetrics struct{ cycles int }

func (m *nopMetrics) RecordScanCycle(time.Duration)               { m.cycles++ }
func (m *nopMetrics) RecordSignal(string, string)                 {}
func (m *nopMetrics) RecordRejection(string, models.RejectReason) {}
func (m *nopMetrics) RecordRequest(string, time.Duration, bool)   {}
func (m *nopMetrics) SetPendingRequests(int)                      {}
func (m *nopMetrics) RecordReconnect()                            {}
func (m *nopMetrics) SetConnected(bool)                           {}

type fakeHistory struct {
	series map[string]*models.PriceSeries
	err    error
}

func (f *fakeHistory) EnsureFresh(_ context.Context, symbol string) (*models.PriceSeries, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.series[symbol], nil
}

type fakeFunds struct{ rec *models.FundamentalsRecord }

func (f *fakeFunds) Get(_ context.Context, symbol string) (*models.FundamentalsRecord, error) {
	if f.rec != nil {
		return f.rec, nil
	}
	return &models.FundamentalsRecord{Symbol: symbol}, nil
}

type fakeVol struct {
	rank     float64
	observed []*float64
}

func (f *fakeVol) Observe(_ context.Context, symbol string, iv *float64, _ *models.PriceSeries) (models.VolatilityObservation, error) {
	f.observed = append(f.observed, iv)
	return models.VolatilityObservation{Symbol: symbol}, nil
}

func (f *fakeVol) Rank(context.Context, string, models.VolatilityObservation) (float64, bool, error) {
	return f.rank, false, nil
}

type fakeSnapshots struct{ snap models.PortfolioSnapshot }

func (f *fakeSnapshots) Snapshot(context.Context) models.PortfolioSnapshot { return f.snap }

type fakeEval struct {
	outcomes map[string]models.Outcome // by symbol
	calls    int
	err      error
}

func (f *fakeEval) Evaluate(_ context.Context, _ pipeline.Variant, in pipeline.Input) models.Outcome {
	f.calls++
	if out, ok := f.outcomes[in.Symbol]; ok {
		return out
	}
	return models.Outcome{Reason: models.RejectNoTrigger}
}

type recordingStore struct {
	signals []string
	bars    int
	funds   int
}

func (r *recordingStore) Init(context.Context) error { return nil }
func (r *recordingStore) SaveSignal(_ context.Context, sig *models.SignalCandidate) error {
	r.signals = append(r.signals, sig.Symbol)
	return nil
}
func (r *recordingStore) UpsertBars(context.Context, string, []models.Bar) error {
	r.bars++
	return nil
}
func (r *recordingStore) UpsertFundamentals(context.Context, *models.FundamentalsRecord) error {
	r.funds++
	return nil
}
func (r *recordingStore) Health(context.Context) error { return nil }
func (r *recordingStore) Close() error                 { return nil }

type recordingNotifier struct{ notified []string }

func (r *recordingNotifier) NotifySignal(_ context.Context, sig *models.SignalCandidate) error {
	r.notified = append(r.notified, sig.Symbol)
	return nil
}

type recordingPublisher struct{ published []string }

func (r *recordingPublisher) PublishSignal(_ context.Context, sig *models.SignalCandidate) error {
	r.published = append(r.published, sig.Symbol)
	return nil
}
func (r *recordingPublisher) Close() error { return nil }

func seriesOf(symbol string, closes ...float64) *models.PriceSeries {
	s := &models.PriceSeries{Symbol: symbol}
	bars := make([]models.Bar, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, models.Bar{
			Date:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Close: c,
		})
	}
	s.Merge(bars)
	s.UpdatedAt = time.Now()
	return s
}

func testScanner(t *testing.T, cfg config.ScannerConfig, hist *fakeHistory, eval *fakeEval, store *recordingStore, notif *recordingNotifier, pub *recordingPublisher, m *nopMetrics) *Scanner {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return NewScanner(cfg,
		hist,
		&fakeFunds{},
		&fakeVol{rank: 50},
		&fakeSnapshots{snap: models.PortfolioSnapshot{Known: true, Equity: 100000, AvailableFunds: 40000, TakenAt: time.Now()}},
		eval,
		[]pipeline.Variant{{Name: "long_put"}, {Name: "long_call"}},
		store, nil, notif, pub, m, log)
}

func TestCycleFansAcceptedSignalToAllSinks(t *testing.T) {
	hist := &fakeHistory{series: map[string]*models.PriceSeries{
		"VIX":  seriesOf("VIX", 18),
		"AAPL": seriesOf("AAPL", 99, 100, 99.8),
		"MSFT": seriesOf("MSFT", 200, 201, 202),
	}}
	eval := &fakeEval{outcomes: map[string]models.Outcome{
		"AAPL": {Accepted: &models.SignalCandidate{Symbol: "AAPL", Variant: "long_put"}},
	}}
	store := &recordingStore{}
	notif := &recordingNotifier{}
	pub := &recordingPublisher{}
	m := &nopMetrics{}

	s := testScanner(t, config.ScannerConfig{
		Watchlist:       []string{"AAPL", "MSFT"},
		Interval:        time.Hour,
		VolatilityIndex: "VIX",
	}, hist, eval, store, notif, pub, m)

	require.NoError(t, s.RunCycle(context.Background()))

	// Two symbols x two variants evaluated.
	assert.Equal(t, 4, eval.calls)
	// AAPL accepted on both variants (fakeEval keys by symbol only).
	assert.Equal(t, []string{"AAPL", "AAPL"}, store.signals)
	assert.Equal(t, []string{"AAPL", "AAPL"}, notif.notified)
	assert.Equal(t, []string{"AAPL", "AAPL"}, pub.published)
	// Bars and fundamentals persisted per watchlist symbol.
	assert.Equal(t, 2, store.bars)
	assert.Equal(t, 2, store.funds)
	assert.Equal(t, 1, m.cycles)
}

func TestCycleFeedsQuotedVolBackToStore(t *testing.T) {
	hist := &fakeHistory{series: map[string]*models.PriceSeries{
		"VIX":  seriesOf("VIX", 18),
		"AAPL": seriesOf("AAPL", 99, 100, 99.8),
	}}
	iv := 0.42
	eval := &fakeEval{outcomes: map[string]models.Outcome{
		"AAPL": {Reason: models.RejectCushionViolation, QuotedIV: &iv},
	}}
	vol := &fakeVol{rank: 50}
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	s := NewScanner(config.ScannerConfig{
		Watchlist:       []string{"AAPL"},
		Interval:        time.Hour,
		VolatilityIndex: "VIX",
	},
		hist,
		&fakeFunds{},
		vol,
		&fakeSnapshots{snap: models.PortfolioSnapshot{Known: true, Equity: 100000, AvailableFunds: 40000, TakenAt: time.Now()}},
		eval,
		[]pipeline.Variant{{Name: "long_put"}},
		nil, nil, nil, nil, &nopMetrics{}, log)

	require.NoError(t, s.RunCycle(context.Background()))

	// The cycle observes twice: the proxy seed before evaluation, then the
	// quote-time implied vol even though the variant was rejected.
	require.Len(t, vol.observed, 2)
	assert.Nil(t, vol.observed[0])
	require.NotNil(t, vol.observed[1])
	assert.InDelta(t, 0.42, *vol.observed[1], 0.0001)
}

func TestCycleSkippedOutsideTradingHours(t *testing.T) {
	hist := &fakeHistory{series: map[string]*models.PriceSeries{}}
	eval := &fakeEval{}
	m := &nopMetrics{}

	s := testScanner(t, config.ScannerConfig{
		Watchlist:           []string{"AAPL"},
		Interval:            time.Hour,
		VolatilityIndex:     "VIX",
		EnforceTradingHours: true,
	}, hist, eval, &recordingStore{}, &recordingNotifier{}, &recordingPublisher{}, m)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 9, 5, 12, 0, 0, 0, ny) } // Saturday

	require.NoError(t, s.RunCycle(context.Background()))
	assert.Equal(t, 0, eval.calls)
	assert.Equal(t, 0, m.cycles)
}

func TestCycleAbortsOnFatalGatewayLoss(t *testing.T) {
	hist := &fakeHistory{err: corr.ErrFatal}
	eval := &fakeEval{}

	s := testScanner(t, config.ScannerConfig{
		Watchlist:       []string{"AAPL", "MSFT"},
		Interval:        time.Hour,
		VolatilityIndex: "VIX",
	}, hist, eval, &recordingStore{}, &recordingNotifier{}, &recordingPublisher{}, &nopMetrics{})

	err := s.RunCycle(context.Background())
	assert.ErrorIs(t, err, corr.ErrFatal)
	assert.Equal(t, 0, eval.calls)
}
