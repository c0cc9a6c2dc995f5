package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionscan/internal/domain/models"
	"optionscan/internal/service/portfolio"
	"optionscan/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordScanCycle(time.Duration)               {}
func (nopMetrics) RecordSignal(string, string)                 {}
func (nopMetrics) RecordRejection(string, models.RejectReason) {}
func (nopMetrics) RecordRequest(string, time.Duration, bool)   {}
func (nopMetrics) SetPendingRequests(int)                      {}
func (nopMetrics) RecordReconnect()                            {}
func (nopMetrics) SetConnected(bool)                           {}

type fakeChains struct {
	chain      models.ChainParams
	chainErr   error
	chainCalls int
	quoteCalls int
	bid, ask   float64
	iv         *float64
}

func (f *fakeChains) Chain(context.Context, string) (models.ChainParams, error) {
	f.chainCalls++
	return f.chain, f.chainErr
}

func (f *fakeChains) Quote(_ context.Context, c models.OptionContract) (models.OptionQuote, error) {
	f.quoteCalls++
	return models.OptionQuote{Contract: c, Bid: f.bid, Ask: f.ask, Greeks: models.Greeks{ImpliedVol: f.iv}}, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func newTestPipeline(t *testing.T, ch *fakeChains) *Pipeline {
	t.Helper()
	log := testLogger(t)
	risk := portfolio.NewProvider(nil, log, 5*time.Minute, 0.20)
	return New(ch, risk, log, nopMetrics{}, Config{
		MinMarketCap:           5e9,
		MinAvgVolume:           5e5,
		EarningsBlackoutBefore: 7,
		EarningsBlackoutAfter:  3,
		CommissionPerOrder:     1.0,
	})
}

// balancedVariant mirrors the long-put setup with a wide 30-80 IV band.
func balancedVariant() Variant {
	return Variant{
		Name:                "balanced_put",
		Right:               "P",
		TriggerAtHigh:       true,
		TriggerProximityPct: 2.0,
		MinHistoryBars:      60,
		Weights:             ScoreWeights{Value: 1, Growth: 1, Quality: 1, Momentum: 1},
		MinSubScore:         0,
		MinComposite:        60,
		IVRankMin:           30,
		IVRankMax:           80,
		MeanReversion:       true,
		ADXCeiling:          100,
		DTEMin:              30,
		DTEMax:              45,
		Strike:              StrikeRule{Kind: StrikeATM},
	}
}

// nearHighSeries ends at 99.80 with a 52-week high close of 100.00.
func nearHighSeries() *models.PriceSeries {
	s := &models.PriceSeries{Symbol: "XYZ"}
	bars := make([]models.Bar, 0, 60)
	for i := 0; i < 58; i++ {
		c := 94.0 + float64(i)*0.09
		if i%2 == 0 {
			c += 0.4
		} else {
			c -= 0.4
		}
		bars = append(bars, models.Bar{
			Date:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:  c, High: c + 0.8, Low: c - 0.8, Close: c, Volume: 1e6,
		})
	}
	bars = append(bars,
		models.Bar{Date: time.Date(2026, 6, 28, 0, 0, 0, 0, time.UTC), Open: 99.5, High: 100.6, Low: 99.2, Close: 100.00, Volume: 1e6},
		models.Bar{Date: time.Date(2026, 6, 29, 0, 0, 0, 0, time.UTC), Open: 100.0, High: 100.2, Low: 99.5, Close: 99.80, Volume: 1e6},
	)
	s.Merge(bars)
	return s
}

func f64(v float64) *float64 { return &v }

func strongFundamentals() *models.FundamentalsRecord {
	return &models.FundamentalsRecord{
		Symbol:        "XYZ",
		MarketCap:     f64(1e11),
		AvgVolume:     f64(2e6),
		PERatio:       f64(15),
		PBRatio:       f64(2),
		FreeCashFlow:  f64(6e9),
		ROE:           f64(0.20),
		ROA:           f64(0.10),
		GrossMargin:   f64(0.50),
		NetMargin:     f64(0.15),
		RevenueGrowth: f64(0.15),
		EPSGrowth:     f64(0.20),
	}
}

func chainWithDTE(days ...int) models.ChainParams {
	exps := make([]string, len(days))
	for i, d := range days {
		exps[i] = time.Now().AddDate(0, 0, d).Format("20060102")
	}
	return models.ChainParams{
		Symbol:      "XYZ",
		Expirations: exps,
		Strikes:     []float64{85, 90, 95, 100, 105, 110, 115},
		Multiplier:  100,
	}
}

func snapshotWithCushion(equity, available float64) models.PortfolioSnapshot {
	return models.PortfolioSnapshot{
		Known:          true,
		Equity:         equity,
		AvailableFunds: available,
		TakenAt:        time.Now(),
	}
}

func baseInput() Input {
	return Input{
		Symbol:       "XYZ",
		Series:       nearHighSeries(),
		Fundamentals: strongFundamentals(),
		IVRank:       55,
		Snapshot:     snapshotWithCushion(3000, 1200), // 40% cushion
		Regime:       models.MarketRegime{Level: models.MarketNormal, Haircut: 1.0},
	}
}

func TestAcceptedLongOptionScenario(t *testing.T) {
	ch := &fakeChains{chain: chainWithDTE(20, 35, 60), bid: 2.4, ask: 2.6, iv: f64(0.42)}
	p := newTestPipeline(t, ch)

	out := p.Evaluate(context.Background(), balancedVariant(), baseInput())
	require.False(t, out.Rejected(), "expected acceptance, got %s: %s", out.Reason, out.Detail)

	sig := out.Accepted
	assert.Equal(t, "XYZ", sig.Symbol)
	assert.Equal(t, 100.0, sig.Contract.Strike) // ATM against 99.80
	assert.Equal(t, "P", sig.Contract.Right)
	assert.Equal(t, 35, sig.DTE) // closest to the 30-45 midpoint
	assert.GreaterOrEqual(t, sig.Scores.Composite, 60.0)
	assert.InDelta(t, 0.2, sig.Trigger.ProximityPct, 0.001) // 99.80 vs 100.00
	assert.False(t, sig.Economics.PremiumIsEstimate)
	assert.InDelta(t, 2.5, sig.Economics.Premium, 0.001) // live mid

	// Max risk 251 against 40% cushion on 3k equity lands near 32%.
	assert.InDelta(t, 0.316, sig.Risk.NewCushion, 0.01)
	assert.True(t, sig.Risk.Acceptable)
	assert.Contains(t, []models.RiskLevel{models.RiskLow, models.RiskModerate}, sig.Risk.Level)

	// The quoted implied vol rides on the outcome.
	require.NotNil(t, out.QuotedIV)
	assert.InDelta(t, 0.42, *out.QuotedIV, 0.0001)
}

func TestRejectedOnCushion(t *testing.T) {
	ch := &fakeChains{chain: chainWithDTE(35), bid: 2.4, ask: 2.6, iv: f64(0.55)}
	p := newTestPipeline(t, ch)

	in := baseInput()
	in.Snapshot = snapshotWithCushion(3000, 660) // 22% cushion, trade lands ~14%

	out := p.Evaluate(context.Background(), balancedVariant(), in)
	require.True(t, out.Rejected())
	assert.Equal(t, models.RejectCushionViolation, out.Reason)

	// The evaluation got as far as quoting, so the implied vol still
	// surfaces for persistence despite the rejection.
	require.NotNil(t, out.QuotedIV)
	assert.InDelta(t, 0.55, *out.QuotedIV, 0.0001)
}

func TestCushionFailsClosedOnUnknownSnapshot(t *testing.T) {
	ch := &fakeChains{chain: chainWithDTE(35), bid: 2.4, ask: 2.6}
	p := newTestPipeline(t, ch)

	in := baseInput()
	in.Snapshot = models.PortfolioSnapshot{Known: false}

	out := p.Evaluate(context.Background(), balancedVariant(), in)
	require.True(t, out.Rejected())
	assert.Equal(t, models.RejectCushionViolation, out.Reason)
}

func TestShortCircuitSkipsChainRequest(t *testing.T) {
	ch := &fakeChains{chain: chainWithDTE(35), bid: 2.4, ask: 2.6}
	p := newTestPipeline(t, ch)

	in := baseInput()
	in.Fundamentals.MarketCap = f64(1e9) // under the $5B floor

	out := p.Evaluate(context.Background(), balancedVariant(), in)
	require.True(t, out.Rejected())
	assert.Equal(t, models.RejectUniverseFilter, out.Reason)
	assert.Equal(t, 0, ch.chainCalls, "universe rejection must not issue a chain request")
	assert.Equal(t, 0, ch.quoteCalls)
}

func TestRejectionLadder(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Input, *Variant)
		want   models.RejectReason
	}{
		{
			name:   "empty series",
			mutate: func(in *Input, _ *Variant) { in.Series = &models.PriceSeries{} },
			want:   models.RejectInsufficientData,
		},
		{
			name:   "short history",
			mutate: func(_ *Input, v *Variant) { v.MinHistoryBars = 252 },
			want:   models.RejectInsufficientData,
		},
		{
			name: "earnings in window",
			mutate: func(in *Input, _ *Variant) {
				d := time.Now().AddDate(0, 0, 3)
				in.Fundamentals.NextEarningsDate = &d
			},
			want: models.RejectEarningsWindow,
		},
		{
			name:   "missing volume excludes",
			mutate: func(in *Input, _ *Variant) { in.Fundamentals.AvgVolume = nil },
			want:   models.RejectUniverseFilter,
		},
		{
			name: "price too far from high",
			mutate: func(in *Input, _ *Variant) {
				in.Series.Bars[len(in.Series.Bars)-1].Close = 90
			},
			want: models.RejectNoTrigger,
		},
		{
			name:   "composite too low",
			mutate: func(_ *Input, v *Variant) { v.MinComposite = 95 },
			want:   models.RejectScoreTooLow,
		},
		{
			name:   "iv rank above band",
			mutate: func(in *Input, _ *Variant) { in.IVRank = 85 },
			want:   models.RejectIVRankOutOfRange,
		},
		{
			name:   "trend too strong",
			mutate: func(_ *Input, v *Variant) { v.ADXCeiling = 0 },
			want:   models.RejectTrendTooStrong,
		},
		{
			name:   "extreme regime",
			mutate: func(in *Input, _ *Variant) { in.Regime = ComputeRegime(40, time.Now()) },
			want:   models.RejectMarketRegime,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := &fakeChains{chain: chainWithDTE(35), bid: 2.4, ask: 2.6}
			p := newTestPipeline(t, ch)
			in := baseInput()
			v := balancedVariant()
			tc.mutate(&in, &v)

			out := p.Evaluate(context.Background(), v, in)
			require.True(t, out.Rejected())
			assert.Equal(t, tc.want, out.Reason)
		})
	}
}

func TestNoExpiryInBand(t *testing.T) {
	ch := &fakeChains{chain: chainWithDTE(10, 90), bid: 2.4, ask: 2.6}
	p := newTestPipeline(t, ch)

	out := p.Evaluate(context.Background(), balancedVariant(), baseInput())
	require.True(t, out.Rejected())
	assert.Equal(t, models.RejectNoSuitableContract, out.Reason)
}

func TestElevatedRegimeHaircutsMaxRisk(t *testing.T) {
	ch := &fakeChains{chain: chainWithDTE(35), bid: 2.4, ask: 2.6}
	p := newTestPipeline(t, ch)

	in := baseInput()
	full := p.Evaluate(context.Background(), balancedVariant(), in)
	require.False(t, full.Rejected())

	in = baseInput()
	in.Regime = ComputeRegime(30, time.Now()) // ELEVATED, 0.5 haircut
	halved := p.Evaluate(context.Background(), balancedVariant(), in)
	require.False(t, halved.Rejected())

	assert.InDelta(t, full.Accepted.Economics.MaxRisk/2, halved.Accepted.Economics.MaxRisk, 0.001)
}

func TestSpreadVariantSelectsBothLegs(t *testing.T) {
	ch := &fakeChains{chain: chainWithDTE(38), bid: 2.4, ask: 2.6}
	p := newTestPipeline(t, ch)

	v := balancedVariant()
	v.Name = "bear_call_spread"
	v.Right = "C"
	v.Strike = StrikeRule{Kind: StrikeOTMPct, OTMPct: 10, MinOTMPct: 5, SpreadWidth: 5}
	v.ShortPremium = true

	out := p.Evaluate(context.Background(), v, baseInput())
	require.False(t, out.Rejected(), "got %s: %s", out.Reason, out.Detail)

	sig := out.Accepted
	assert.Equal(t, 110.0, sig.Contract.Strike) // ~10% above 99.80
	require.NotNil(t, sig.SpreadLong)
	assert.Equal(t, 115.0, sig.SpreadLong.Strike)
	assert.Equal(t, 2, ch.quoteCalls)
	// Identical quotes on both legs yield no credit: heuristic kicks in.
	assert.True(t, sig.Economics.PremiumIsEstimate)
	assert.InDelta(t, 1.0, sig.Economics.Premium, 0.001) // 20% of the $5 width
	// Credit is 25% of max risk net of commission effects.
	assert.InDelta(t, 100.0, sig.Economics.MaxProfit, 0.001)
}

func TestHeuristicPremiumWhenQuoteMissing(t *testing.T) {
	ch := &fakeChains{chain: chainWithDTE(35), bid: 0, ask: 0}
	p := newTestPipeline(t, ch)

	out := p.Evaluate(context.Background(), balancedVariant(), baseInput())
	require.False(t, out.Rejected(), "got %s: %s", out.Reason, out.Detail)
	assert.True(t, out.Accepted.Economics.PremiumIsEstimate)
	assert.InDelta(t, 5.0, out.Accepted.Economics.Premium, 0.001) // 5% of the 100 strike
}

func TestComputeRegimeBands(t *testing.T) {
	cases := []struct {
		level float64
		want  models.MarketRiskLevel
	}{
		{12, models.MarketCalm},
		{20, models.MarketNormal},
		{30, models.MarketElevated},
		{40, models.MarketExtreme},
		{0, models.MarketNormal}, // missing reading
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("index_%.0f", tc.level), func(t *testing.T) {
			r := ComputeRegime(tc.level, time.Now())
			assert.Equal(t, tc.want, r.Level)
		})
	}
}
