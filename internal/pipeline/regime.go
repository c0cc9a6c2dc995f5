package pipeline

import (
	"time"

	"optionscan/internal/domain/models"
)

// Volatility index bands classifying the market regime.
const (
	regimeCalmBelow     = 15.0
	regimeNormalBelow   = 25.0
	regimeElevatedBelow = 35.0

	elevatedHaircut = 0.5
)

// ComputeRegime maps a volatility index level to a market risk level and the
// max-risk haircut it imposes. EXTREME regimes reject outright; the haircut
// there is zero only for completeness.
func ComputeRegime(indexLevel float64, now time.Time) models.MarketRegime {
	r := models.MarketRegime{IndexLevel: indexLevel, Haircut: 1.0, ComputedAt: now}
	switch {
	case indexLevel <= 0:
		// No index reading: treat as NORMAL rather than blocking every scan.
		r.Level = models.MarketNormal
	case indexLevel < regimeCalmBelow:
		r.Level = models.MarketCalm
	case indexLevel < regimeNormalBelow:
		r.Level = models.MarketNormal
	case indexLevel < regimeElevatedBelow:
		r.Level = models.MarketElevated
		r.Haircut = elevatedHaircut
	default:
		r.Level = models.MarketExtreme
		r.Haircut = 0
	}
	return r
}
