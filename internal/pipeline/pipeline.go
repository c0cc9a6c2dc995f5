// Package pipeline evaluates one symbol against one strategy variant through
// a fixed sequence of short-circuiting gates. A gate either advances with a
// computed value or terminates the evaluation with a typed rejection; side
// effects of later gates (chain and quote requests) never fire once an
// earlier gate has rejected.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"optionscan/internal/domain/models"
	"optionscan/internal/domain/repository"
	"optionscan/internal/service/chains"
	"optionscan/pkg/logger"
	"optionscan/pkg/ta"
)

// RiskAssessor simulates committing a trade's max risk against a snapshot.
type RiskAssessor interface {
	ImpactOf(snap models.PortfolioSnapshot, maxRisk float64) models.RiskImpact
}

// Config carries the gate thresholds that are not variant-specific.
type Config struct {
	MinMarketCap           float64
	MinAvgVolume           float64
	EarningsBlackoutBefore int // days ahead of earnings that block
	EarningsBlackoutAfter  int // days after earnings that block
	CommissionPerOrder     float64
}

// Input is everything the caller resolved before evaluation. The pipeline
// itself only reaches out for chain data and quotes, and only after every
// earlier gate has passed.
type Input struct {
	Symbol       string
	Series       *models.PriceSeries
	Fundamentals *models.FundamentalsRecord
	Benchmark    *models.SectorBenchmark
	IVRank       float64
	IVRankProxy  bool
	Snapshot     models.PortfolioSnapshot
	Regime       models.MarketRegime
}

type Pipeline struct {
	chains  chains.Provider
	risk    RiskAssessor
	log     *logger.Logger
	metrics repository.Metrics
	cfg     Config
	now     func() time.Time
}

func New(ch chains.Provider, risk RiskAssessor, log *logger.Logger, m repository.Metrics, cfg Config) *Pipeline {
	return &Pipeline{chains: ch, risk: risk, log: log, metrics: m, cfg: cfg, now: time.Now}
}

func (p *Pipeline) reject(v Variant, symbol string, reason models.RejectReason, detail string) models.Outcome {
	p.metrics.RecordRejection(v.Name, reason)
	p.log.Info("rejected",
		logger.String("symbol", symbol),
		logger.String("variant", v.Name),
		logger.String("reason", string(reason)),
		logger.String("detail", detail))
	return models.Outcome{Reason: reason, Detail: detail}
}

// Evaluate runs the full gate sequence for one symbol x variant.
func (p *Pipeline) Evaluate(ctx context.Context, v Variant, in Input) models.Outcome {
	// 1. Data availability.
	if in.Series.Empty() || in.Fundamentals == nil {
		return p.reject(v, in.Symbol, models.RejectInsufficientData, "missing price series or fundamentals")
	}
	if in.Series.Len() < v.MinHistoryBars {
		return p.reject(v, in.Symbol, models.RejectInsufficientData,
			fmt.Sprintf("%d bars, need %d", in.Series.Len(), v.MinHistoryBars))
	}

	// 2. Earnings blackout. Missing earnings date does not block.
	if d := in.Fundamentals.NextEarningsDate; d != nil {
		now := p.now()
		from := d.AddDate(0, 0, -p.cfg.EarningsBlackoutBefore)
		to := d.AddDate(0, 0, p.cfg.EarningsBlackoutAfter)
		if !now.Before(from) && !now.After(to) {
			return p.reject(v, in.Symbol, models.RejectEarningsWindow,
				fmt.Sprintf("earnings %s", d.Format("2006-01-02")))
		}
	}

	// 3. Universe filter. A missing metric cannot evaluate, so it excludes.
	f := in.Fundamentals
	if f.MarketCap == nil || *f.MarketCap < p.cfg.MinMarketCap {
		return p.reject(v, in.Symbol, models.RejectUniverseFilter, "market cap below minimum or unknown")
	}
	if f.AvgVolume == nil || *f.AvgVolume < p.cfg.MinAvgVolume {
		return p.reject(v, in.Symbol, models.RejectUniverseFilter, "avg volume below minimum or unknown")
	}

	// 4. Technical trigger against the 52-week extreme.
	price := in.Series.LastClose()
	high, low := ta.Extremes52W(in.Series.Bars)
	trigger := models.TriggerSnapshot{Price: price, AtHigh: v.TriggerAtHigh}
	if v.TriggerAtHigh {
		trigger.Extreme52W = high
		if high <= 0 || price < high*(1-v.TriggerProximityPct/100) {
			return p.reject(v, in.Symbol, models.RejectNoTrigger,
				fmt.Sprintf("price %.2f vs 52w high %.2f", price, high))
		}
		trigger.ProximityPct = (high - price) / high * 100
	} else {
		trigger.Extreme52W = low
		if low <= 0 || price > low*(1+v.TriggerProximityPct/100) {
			return p.reject(v, in.Symbol, models.RejectNoTrigger,
				fmt.Sprintf("price %.2f vs 52w low %.2f", price, low))
		}
		trigger.ProximityPct = (price - low) / low * 100
	}

	// 5. Fundamental score gate.
	scores := computeScores(v, f, in.Benchmark, in.Series)
	if scores.Composite < v.MinComposite ||
		scores.Value < v.MinSubScore || scores.Growth < v.MinSubScore ||
		scores.Quality < v.MinSubScore || scores.Momentum < v.MinSubScore {
		return p.reject(v, in.Symbol, models.RejectScoreTooLow,
			fmt.Sprintf("composite %.1f (min %.1f)", scores.Composite, v.MinComposite))
	}

	// 6. Volatility regime band.
	if in.IVRank < v.IVRankMin || in.IVRank > v.IVRankMax {
		return p.reject(v, in.Symbol, models.RejectIVRankOutOfRange,
			fmt.Sprintf("iv rank %.1f outside [%.0f, %.0f]", in.IVRank, v.IVRankMin, v.IVRankMax))
	}

	// 7. Trend regime: mean-reversion entries are unsafe in strong trends.
	if v.MeanReversion {
		if adx := ta.ADX(in.Series.Bars, 14); adx >= v.ADXCeiling {
			return p.reject(v, in.Symbol, models.RejectTrendTooStrong,
				fmt.Sprintf("adx %.1f >= %.1f", adx, v.ADXCeiling))
		}
	}

	// 8. Contract selection. First gate with side effects.
	chain, err := p.chains.Chain(ctx, in.Symbol)
	if err != nil {
		return p.reject(v, in.Symbol, models.RejectNoSuitableContract, err.Error())
	}
	expiry, dte, ok := selectExpiry(chain.Expirations, p.now(), v.DTEMin, v.DTEMax)
	if !ok {
		return p.reject(v, in.Symbol, models.RejectNoSuitableContract,
			fmt.Sprintf("no expiry in %d-%d dte", v.DTEMin, v.DTEMax))
	}
	strike, ok := selectStrike(v.Strike, v.Right, price, chain.Strikes)
	if !ok {
		return p.reject(v, in.Symbol, models.RejectNoSuitableContract, "no strike satisfies offset rule")
	}
	contract := models.OptionContract{
		Symbol:     in.Symbol,
		Strike:     strike,
		Right:      v.Right,
		Expiry:     expiry,
		Multiplier: chain.Multiplier,
	}

	var spreadLong *models.OptionContract
	if v.Strike.SpreadWidth > 0 {
		longStrike, ok := spreadLongStrike(strike, v.Strike.SpreadWidth, chain.Strikes)
		if !ok {
			return p.reject(v, in.Symbol, models.RejectNoSuitableContract, "no protective strike above short leg")
		}
		leg := contract
		leg.Strike = longStrike
		spreadLong = &leg
	}

	// 9. Economics: prefer the live mid, fall back to the heuristic. The
	// implied vol seen while quoting rides on the outcome from here on,
	// rejection or not, so the caller can persist it.
	econ, quotedIV := p.priceTrade(ctx, v, contract, spreadLong)
	if econ.MaxRisk <= 0 || econ.Profitability <= 0 {
		out := p.reject(v, in.Symbol, models.RejectUnprofitable,
			fmt.Sprintf("profitability %.2f, max risk %.2f", econ.Profitability, econ.MaxRisk))
		out.QuotedIV = quotedIV
		return out
	}

	// 10. Portfolio-cushion veto. Unknown snapshots fail closed.
	impact := p.risk.ImpactOf(in.Snapshot, econ.MaxRisk)
	if !impact.Acceptable {
		out := p.reject(v, in.Symbol, models.RejectCushionViolation,
			fmt.Sprintf("cushion %.0f%% -> %.0f%%", impact.OldCushion*100, impact.NewCushion*100))
		out.QuotedIV = quotedIV
		return out
	}

	// 11. Market-regime override, applied last: it adjusts the already
	// computed economics, never replaces them.
	if in.Regime.Level == models.MarketExtreme {
		out := p.reject(v, in.Symbol, models.RejectMarketRegime,
			fmt.Sprintf("volatility index %.1f", in.Regime.IndexLevel))
		out.QuotedIV = quotedIV
		return out
	}
	if in.Regime.Haircut > 0 && in.Regime.Haircut < 1 {
		econ.MaxRisk *= in.Regime.Haircut
		impact.MaxRisk = econ.MaxRisk
	}

	sig := &models.SignalCandidate{
		Variant:     v.Name,
		Symbol:      in.Symbol,
		Trigger:     trigger,
		Scores:      scores,
		IVRank:      in.IVRank,
		IVRankProxy: in.IVRankProxy,
		Contract:    contract,
		SpreadLong:  spreadLong,
		DTE:         dte,
		Economics:   econ,
		Risk:        impact,
		Regime:      in.Regime,
		Confidence:  confidence(scores.Composite, in.IVRankProxy, econ.PremiumIsEstimate),
		CreatedAt:   p.now(),
	}
	p.metrics.RecordSignal(v.Name, in.Symbol)
	p.log.Info("accepted",
		logger.String("symbol", in.Symbol),
		logger.String("variant", v.Name),
		logger.Float64("strike", strike),
		logger.String("expiry", expiry),
		logger.Float64("confidence", sig.Confidence))
	return models.Outcome{Accepted: sig, QuotedIV: quotedIV}
}

// priceTrade fetches live quotes best-effort and computes the cost model.
// Quote failures degrade to the heuristic rather than failing the gate. The
// second result is the implied vol of the primary leg's quote, when present.
func (p *Pipeline) priceTrade(ctx context.Context, v Variant, contract models.OptionContract, spreadLong *models.OptionContract) (models.Economics, *float64) {
	if spreadLong != nil {
		credit := 0.0
		var iv *float64
		shortQ, errS := p.chains.Quote(ctx, contract)
		longQ, errL := p.chains.Quote(ctx, *spreadLong)
		if errS == nil {
			iv = shortQ.Greeks.ImpliedVol
		}
		if errS == nil && errL == nil {
			credit = shortQ.Mid() - longQ.Mid()
		}
		// Two legs, two orders.
		return spreadEconomics(contract.Strike, spreadLong.Strike, credit, 2*p.cfg.CommissionPerOrder, contract.Multiplier), iv
	}

	premium := 0.0
	var iv *float64
	if q, err := p.chains.Quote(ctx, contract); err == nil {
		premium = q.Mid()
		iv = q.Greeks.ImpliedVol
	}
	return longEconomics(contract.Right, contract.Strike, premium, p.cfg.CommissionPerOrder, contract.Multiplier), iv
}

// confidence folds the composite score and data-quality degradations into a
// single 0-1 figure attached to the signal.
func confidence(composite float64, ivProxy, premiumEstimate bool) float64 {
	c := composite / 100
	if ivProxy {
		c *= 0.85
	}
	if premiumEstimate {
		c *= 0.9
	}
	return ta.Clamp(c, 0, 1)
}
