// Package portfolio turns account summary pulls into a cushion-aware risk
// check. State is fail-closed: when no usable snapshot exists, every trade
// is unacceptable.
package portfolio

import (
	"context"
	"sync"
	"time"

	"optionscan/internal/domain/models"
	"optionscan/pkg/logger"
)

// Account summary tags delivered by the gateway.
const (
	tagNetLiquidation = "NetLiquidation"
	tagTotalCash      = "TotalCashValue"
	tagBuyingPower    = "BuyingPower"
	tagAvailableFunds = "AvailableFunds"
)

// A post-trade cushion at or above cushionLow is comfortable. Between the
// critical floor and cushionLow the trade is acceptable but tight; below the
// floor the level splits into HIGH and CRITICAL at half the floor.
const cushionLow = 0.30

// AccountSource is the gateway surface the provider needs.
type AccountSource interface {
	AccountSummary(ctx context.Context) (map[string]float64, error)
	Positions(ctx context.Context) ([]models.Position, error)
}

// Provider serves portfolio snapshots with a bounded last-good fallback.
type Provider struct {
	mu              sync.Mutex
	source          AccountSource
	log             *logger.Logger
	maxAge          time.Duration
	criticalCushion float64
	last            models.PortfolioSnapshot
	now             func() time.Time
}

func NewProvider(source AccountSource, log *logger.Logger, maxAge time.Duration, criticalCushion float64) *Provider {
	return &Provider{
		source:          source,
		log:             log,
		maxAge:          maxAge,
		criticalCushion: criticalCushion,
		now:             time.Now,
	}
}

// Snapshot pulls fresh account state. On fetch failure the last good
// snapshot is reused while younger than maxAge; past that the returned
// snapshot has Known=false and all cushion checks reject.
func (p *Provider) Snapshot(ctx context.Context) models.PortfolioSnapshot {
	summary, err := p.source.AccountSummary(ctx)
	if err == nil {
		positions, perr := p.source.Positions(ctx)
		if perr != nil {
			p.log.Warn("positions fetch failed", logger.Error(perr))
			positions = nil
		}
		snap := models.PortfolioSnapshot{
			Known:          true,
			Equity:         summary[tagNetLiquidation],
			Cash:           summary[tagTotalCash],
			BuyingPower:    summary[tagBuyingPower],
			AvailableFunds: summary[tagAvailableFunds],
			Positions:      positions,
			TakenAt:        p.now(),
		}
		if snap.Equity <= 0 {
			p.log.Warn("account summary missing equity tag")
			snap.Known = false
		}
		p.mu.Lock()
		p.last = snap
		p.mu.Unlock()
		return snap
	}

	p.log.Warn("account summary fetch failed", logger.Error(err))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last.Known && p.now().Sub(p.last.TakenAt) < p.maxAge {
		return p.last
	}
	return models.PortfolioSnapshot{Known: false, TakenAt: p.now()}
}

// ImpactOf simulates committing maxRisk against the snapshot. An unknown
// snapshot or a post-trade cushion under the critical floor is unacceptable.
func (p *Provider) ImpactOf(snap models.PortfolioSnapshot, maxRisk float64) models.RiskImpact {
	impact := models.RiskImpact{MaxRisk: maxRisk, Level: models.RiskCritical}
	if !snap.Known || snap.Equity <= 0 {
		return impact
	}

	impact.OldCushion = snap.Cushion()
	impact.NewCushion = (snap.AvailableFunds - maxRisk) / snap.Equity

	switch {
	case impact.NewCushion >= cushionLow:
		impact.Level = models.RiskLow
	case impact.NewCushion >= p.criticalCushion:
		impact.Level = models.RiskModerate
	case impact.NewCushion >= p.criticalCushion/2:
		impact.Level = models.RiskHigh
	default:
		impact.Level = models.RiskCritical
	}
	impact.Acceptable = impact.NewCushion >= p.criticalCushion
	return impact
}
