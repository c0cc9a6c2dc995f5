package pipeline

import (
	"math"
	"sort"
	"time"

	"optionscan/internal/domain/models"
	"optionscan/pkg/util"
)

const defaultMultiplier = 100

// selectExpiry picks the listed expiration whose DTE falls inside
// [dteMin, dteMax], preferring the one closest to the band midpoint.
func selectExpiry(expirations []string, now time.Time, dteMin, dteMax int) (string, int, bool) {
	mid := float64(dteMin+dteMax) / 2
	best := ""
	bestDTE := 0
	bestDist := math.MaxFloat64

	for _, exp := range expirations {
		d, err := util.ParseExpiry(exp)
		if err != nil {
			continue
		}
		dte := util.DTE(d, now)
		if dte < dteMin || dte > dteMax {
			continue
		}
		if dist := math.Abs(float64(dte) - mid); dist < bestDist {
			best, bestDTE, bestDist = exp, dte, dist
		}
	}
	return best, bestDTE, best != ""
}

// selectStrike applies the variant's strike rule against the listed strikes.
// OTM means above the price for calls and below it for puts.
func selectStrike(rule StrikeRule, right string, price float64, strikes []float64) (float64, bool) {
	if len(strikes) == 0 || price <= 0 {
		return 0, false
	}

	switch rule.Kind {
	case StrikeATM:
		best := strikes[0]
		for _, s := range strikes[1:] {
			if math.Abs(s-price) < math.Abs(best-price) {
				best = s
			}
		}
		return best, true

	case StrikeOTMPct:
		var target, floor float64
		if right == "C" {
			target = price * (1 + rule.OTMPct/100)
			floor = price * (1 + rule.MinOTMPct/100)
		} else {
			target = price * (1 - rule.OTMPct/100)
			floor = price * (1 - rule.MinOTMPct/100)
		}
		best := 0.0
		bestDist := math.MaxFloat64
		for _, s := range strikes {
			if right == "C" && s < floor {
				continue
			}
			if right == "P" && s > floor {
				continue
			}
			if dist := math.Abs(s - target); dist < bestDist {
				best, bestDist = s, dist
			}
		}
		return best, best > 0
	}
	return 0, false
}

// spreadLongStrike finds the protective leg: shortStrike + width when
// listed, else the next higher listed strike.
func spreadLongStrike(shortStrike, width float64, strikes []float64) (float64, bool) {
	sorted := append([]float64(nil), strikes...)
	sort.Float64s(sorted)

	exact := shortStrike + width
	for _, s := range sorted {
		if s == exact {
			return s, true
		}
	}
	// No exact width: fall back to the smallest listed strike beyond it.
	for _, s := range sorted {
		if s > exact {
			return s, true
		}
	}
	return 0, false
}

// Premium heuristics used when no live quote is available.
const (
	// longPremiumPctOfStrike estimates a long option's premium as a
	// percentage of strike.
	longPremiumPctOfStrike = 0.05
	// spreadCreditPctOfWidth yields a credit equal to 25% of the resulting
	// max risk (credit = width/5 ⇒ credit / (width - credit) = 0.25).
	spreadCreditPctOfWidth = 0.20
)

// longEconomics prices a debit (long option) trade. premium <= 0 triggers
// the percentage-of-strike fallback, flagged as an estimate.
func longEconomics(right string, strike, premium, commission float64, multiplier int) models.Economics {
	e := models.Economics{Premium: premium, Commission: commission}
	if multiplier <= 0 {
		multiplier = defaultMultiplier
	}
	if e.Premium <= 0 {
		e.Premium = strike * longPremiumPctOfStrike
		e.PremiumIsEstimate = true
	}

	m := float64(multiplier)
	e.MaxRisk = e.Premium*m + commission
	if right == "P" {
		// Underlying at zero bounds a long put's profit.
		e.MaxProfit = (strike - e.Premium) * m
	} else {
		// A long call is unbounded above; use a doubling target so the
		// profitability ratio stays comparable across variants.
		e.MaxProfit = e.Premium * 2 * m
	}
	if e.MaxRisk > 0 {
		e.Profitability = (e.MaxProfit - commission) / e.MaxRisk
	}
	return e
}

// spreadEconomics prices a net-credit vertical. credit <= 0 triggers the
// width-fraction fallback, flagged as an estimate.
func spreadEconomics(shortStrike, longStrike, credit, commission float64, multiplier int) models.Economics {
	e := models.Economics{Premium: credit, Commission: commission}
	if multiplier <= 0 {
		multiplier = defaultMultiplier
	}
	width := longStrike - shortStrike
	if width <= 0 {
		return e
	}
	if e.Premium <= 0 {
		e.Premium = width * spreadCreditPctOfWidth
		e.PremiumIsEstimate = true
	}

	m := float64(multiplier)
	e.MaxRisk = (width-e.Premium)*m + commission
	e.MaxProfit = e.Premium * m
	if e.MaxRisk > 0 {
		e.Profitability = (e.MaxProfit - commission) / e.MaxRisk
	}
	return e
}
