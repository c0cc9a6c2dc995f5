package models

import "time"

// RejectReason is a stable code attached to every pipeline rejection.
type RejectReason string

const (
	RejectInsufficientData   RejectReason = "INSUFFICIENT_DATA"
	RejectEarningsWindow     RejectReason = "EARNINGS_WINDOW"
	RejectUniverseFilter     RejectReason = "UNIVERSE_FILTER"
	RejectNoTrigger          RejectReason = "NO_TECHNICAL_TRIGGER"
	RejectScoreTooLow        RejectReason = "FUNDAMENTAL_SCORE_TOO_LOW"
	RejectIVRankOutOfRange   RejectReason = "IV_RANK_OUT_OF_RANGE"
	RejectTrendTooStrong     RejectReason = "TREND_TOO_STRONG"
	RejectNoSuitableContract RejectReason = "NO_SUITABLE_CONTRACT"
	RejectUnprofitable       RejectReason = "UNPROFITABLE"
	RejectCushionViolation   RejectReason = "CUSHION_VIOLATION"
	RejectMarketRegime       RejectReason = "MARKET_REGIME"
)

// MarketRiskLevel is the volatility-index-derived market regime, computed
// independently of any symbol.
type MarketRiskLevel string

const (
	MarketCalm     MarketRiskLevel = "CALM"
	MarketNormal   MarketRiskLevel = "NORMAL"
	MarketElevated MarketRiskLevel = "ELEVATED"
	MarketExtreme  MarketRiskLevel = "EXTREME"
)

// MarketRegime carries the current market risk level and the max-risk haircut
// it applies to accepted signals.
type MarketRegime struct {
	Level      MarketRiskLevel `json:"level"`
	IndexLevel float64         `json:"index_level"`
	Haircut    float64         `json:"haircut"` // multiplier applied to max risk, 1.0 = none
	ComputedAt time.Time       `json:"computed_at"`
}

// TriggerSnapshot records the technical trigger state at evaluation time.
type TriggerSnapshot struct {
	Price        float64 `json:"price"`
	Extreme52W   float64 `json:"extreme_52w"`
	AtHigh       bool    `json:"at_high"` // false = triggered at the 52-week low
	ProximityPct float64 `json:"proximity_pct"`
}

// FundamentalScores is the 0-100 sub-score breakdown behind the composite.
type FundamentalScores struct {
	Value     float64 `json:"value"`
	Growth    float64 `json:"growth"`
	Quality   float64 `json:"quality"`
	Momentum  float64 `json:"momentum"`
	Composite float64 `json:"composite"`
}

// Economics holds the commission-adjusted cost model of the proposed trade.
type Economics struct {
	Premium           float64 `json:"premium"`
	PremiumIsEstimate bool    `json:"premium_is_estimate"`
	MaxRisk           float64 `json:"max_risk"`
	MaxProfit         float64 `json:"max_profit"`
	Commission        float64 `json:"commission"`
	Profitability     float64 `json:"profitability"` // (max profit - commission) / max risk
}

// SignalCandidate is the pipeline's output unit: one accepted trade proposal
// with the full chain of values that led to acceptance. Immutable after
// creation.
type SignalCandidate struct {
	Variant     string            `json:"variant"`
	Symbol      string            `json:"symbol"`
	Trigger     TriggerSnapshot   `json:"trigger"`
	Scores      FundamentalScores `json:"scores"`
	IVRank      float64           `json:"iv_rank"`
	IVRankProxy bool              `json:"iv_rank_proxy"`
	Contract    OptionContract    `json:"contract"`
	// SpreadLong is set only for spread variants (the protective leg).
	SpreadLong *OptionContract `json:"spread_long,omitempty"`
	DTE        int             `json:"dte"`
	Economics  Economics       `json:"economics"`
	Risk       RiskImpact      `json:"risk"`
	Regime     MarketRegime    `json:"regime"`
	Confidence float64         `json:"confidence"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Outcome is the terminal state of one symbol x variant evaluation.
type Outcome struct {
	Accepted *SignalCandidate `json:"accepted,omitempty"`
	Reason   RejectReason     `json:"reason,omitempty"`
	Detail   string           `json:"detail,omitempty"`

	// QuotedIV is the implied volatility delivered alongside the contract
	// quote, present whenever the evaluation got as far as pricing a leg,
	// even if a later gate rejected. Callers persist it so the volatility
	// history accumulates real readings instead of the realized-vol proxy.
	QuotedIV *float64 `json:"quoted_iv,omitempty"`
}

// Rejected reports whether the evaluation terminated in a rejection.
func (o Outcome) Rejected() bool { return o.Accepted == nil }
