package pipeline

import (
	"optionscan/internal/domain/models"
	"optionscan/pkg/ta"
)

// neutralScore is used whenever a metric needed by a sub-score is missing,
// so missing data degrades confidence instead of failing the gate outright.
const neutralScore = 50.0

// scaleDown maps v linearly to 100..0 over [best, worst] (lower is better).
func scaleDown(v, best, worst float64) float64 {
	if worst == best {
		return neutralScore
	}
	return ta.Clamp((worst-v)/(worst-best)*100, 0, 100)
}

// scaleUp maps v linearly to 0..100 over [worst, best] (higher is better).
func scaleUp(v, worst, best float64) float64 {
	if worst == best {
		return neutralScore
	}
	return ta.Clamp((v-worst)/(best-worst)*100, 0, 100)
}

func avg(vals []float64) float64 {
	if len(vals) == 0 {
		return neutralScore
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// valueScore rewards cheap valuation. When a sector benchmark is available
// the P/E component is judged against the sector median instead of absolute
// bands.
func valueScore(rec *models.FundamentalsRecord, bench *models.SectorBenchmark) float64 {
	var parts []float64
	if rec.PERatio != nil && *rec.PERatio > 0 {
		if bench != nil && bench.PEMedian > 0 {
			// 100 at half the sector median, 0 at double.
			parts = append(parts, scaleDown(*rec.PERatio/bench.PEMedian, 0.5, 2.0))
		} else {
			parts = append(parts, scaleDown(*rec.PERatio, 10, 40))
		}
	}
	if rec.PBRatio != nil && *rec.PBRatio > 0 {
		parts = append(parts, scaleDown(*rec.PBRatio, 1, 8))
	}
	if fy := rec.FCFYield(); fy != nil {
		parts = append(parts, scaleUp(*fy, 0, 0.08))
	}
	if rec.EVEBITDA != nil && *rec.EVEBITDA > 0 {
		parts = append(parts, scaleDown(*rec.EVEBITDA, 6, 20))
	}
	return avg(parts)
}

func growthScore(rec *models.FundamentalsRecord) float64 {
	var parts []float64
	if rec.RevenueGrowth != nil {
		parts = append(parts, scaleUp(*rec.RevenueGrowth, -0.05, 0.25))
	}
	if rec.EPSGrowth != nil {
		parts = append(parts, scaleUp(*rec.EPSGrowth, -0.05, 0.30))
	}
	return avg(parts)
}

func qualityScore(rec *models.FundamentalsRecord) float64 {
	var parts []float64
	if rec.ROE != nil {
		parts = append(parts, scaleUp(*rec.ROE, 0, 0.25))
	}
	if rec.ROA != nil {
		parts = append(parts, scaleUp(*rec.ROA, 0, 0.12))
	}
	if rec.GrossMargin != nil {
		parts = append(parts, scaleUp(*rec.GrossMargin, 0.15, 0.60))
	}
	if rec.NetMargin != nil {
		parts = append(parts, scaleUp(*rec.NetMargin, 0, 0.20))
	}
	return avg(parts)
}

// momentumScore is contrarian: an overbought RSI and a price pinned at the
// top of its yearly range score high for near-high variants, and the mirror
// holds for near-low variants.
func momentumScore(series *models.PriceSeries, atHigh bool) float64 {
	if series.Empty() {
		return neutralScore
	}
	closes := series.Closes()
	rsi := ta.RSI(closes, 14)
	high, low := ta.Extremes52W(series.Bars)
	pos := ta.RangePosition(series.LastClose(), low, high) * 100

	if atHigh {
		return avg([]float64{scaleUp(rsi, 50, 80), scaleUp(pos, 50, 100)})
	}
	return avg([]float64{scaleDown(rsi, 20, 50), scaleDown(pos, 0, 50)})
}

// computeScores evaluates the four sub-scores and the weighted composite.
func computeScores(v Variant, rec *models.FundamentalsRecord, bench *models.SectorBenchmark, series *models.PriceSeries) models.FundamentalScores {
	s := models.FundamentalScores{
		Value:    valueScore(rec, bench),
		Growth:   growthScore(rec),
		Quality:  qualityScore(rec),
		Momentum: momentumScore(series, v.TriggerAtHigh),
	}
	total := v.Weights.Value + v.Weights.Growth + v.Weights.Quality + v.Weights.Momentum
	if total <= 0 {
		s.Composite = (s.Value + s.Growth + s.Quality + s.Momentum) / 4
		return s
	}
	s.Composite = (s.Value*v.Weights.Value +
		s.Growth*v.Weights.Growth +
		s.Quality*v.Weights.Quality +
		s.Momentum*v.Weights.Momentum) / total
	return s
}
