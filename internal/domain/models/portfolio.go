package models

import "time"

// RiskLevel classifies the margin-safety impact of taking a trade.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Position is one open position reported by the broker.
type Position struct {
	Symbol        string  `json:"symbol"`
	SecType       string  `json:"sec_type"`
	Quantity      float64 `json:"quantity"`
	AvgCost       float64 `json:"avg_cost"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// PortfolioSnapshot is a pull-based snapshot of account state. Consumers
// must tolerate a snapshot that is seconds-to-minutes stale; Known=false is
// the fail-closed "state unknown" marker that makes every cushion gate reject.
type PortfolioSnapshot struct {
	Known          bool       `json:"known"`
	Equity         float64    `json:"equity"`
	Cash           float64    `json:"cash"`
	BuyingPower    float64    `json:"buying_power"`
	AvailableFunds float64    `json:"available_funds"`
	Positions      []Position `json:"positions"`
	TakenAt        time.Time  `json:"taken_at"`
}

// Cushion is available funds over equity, the broker-style margin-safety ratio.
func (p *PortfolioSnapshot) Cushion() float64 {
	if !p.Known || p.Equity <= 0 {
		return 0
	}
	return p.AvailableFunds / p.Equity
}

// RiskImpact is the result of simulating a trade's max risk against a snapshot.
type RiskImpact struct {
	MaxRisk    float64   `json:"max_risk"`
	OldCushion float64   `json:"old_cushion"`
	NewCushion float64   `json:"new_cushion"`
	Level      RiskLevel `json:"level"`
	Acceptable bool      `json:"acceptable"`
}
