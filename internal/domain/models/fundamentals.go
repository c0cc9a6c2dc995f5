package models

import "time"

// FundamentalsRecord is a per-symbol fundamentals snapshot.
// Every metric is a pointer: nil means the gateway payload did not carry a
// parseable value for that field. Downstream filters treat nil as
// "cannot evaluate", never as a pass.
type FundamentalsRecord struct {
	Symbol string `json:"symbol"`

	// Valuation
	PERatio      *float64 `json:"pe_ratio,omitempty"`
	PBRatio      *float64 `json:"pb_ratio,omitempty"`
	PSRatio      *float64 `json:"ps_ratio,omitempty"`
	EVEBITDA     *float64 `json:"ev_ebitda,omitempty"`
	FreeCashFlow *float64 `json:"free_cash_flow,omitempty"`

	// Profitability
	ROE           *float64 `json:"roe,omitempty"`
	ROA           *float64 `json:"roa,omitempty"`
	GrossMargin   *float64 `json:"gross_margin,omitempty"`
	NetMargin     *float64 `json:"net_margin,omitempty"`
	RevenueGrowth *float64 `json:"revenue_growth,omitempty"`
	EPSGrowth     *float64 `json:"eps_growth,omitempty"`

	// Cash flow / payout
	DividendYield *float64 `json:"dividend_yield,omitempty"`
	PayoutRatio   *float64 `json:"payout_ratio,omitempty"`

	// Size and liquidity
	MarketCap *float64 `json:"market_cap,omitempty"`
	AvgVolume *float64 `json:"avg_volume,omitempty"`
	Beta      *float64 `json:"beta,omitempty"`

	// Classification
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`

	NextEarningsDate *time.Time `json:"next_earnings_date,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
}

// FCFYield returns free cash flow over market cap, or nil when either is missing.
func (f *FundamentalsRecord) FCFYield() *float64 {
	if f.FreeCashFlow == nil || f.MarketCap == nil || *f.MarketCap <= 0 {
		return nil
	}
	y := *f.FreeCashFlow / *f.MarketCap
	return &y
}

// VolatilityObservation is one (symbol, date) volatility reading used for
// IV rank. Exactly one of ImpliedVol/RealizedVol is expected to be set;
// IsProxy marks a realized-vol stand-in recorded when no implied vol existed.
type VolatilityObservation struct {
	Symbol      string    `json:"symbol"`
	Date        time.Time `json:"date"`
	ImpliedVol  *float64  `json:"implied_vol,omitempty"`
	RealizedVol *float64  `json:"realized_vol,omitempty"`
}

// Value returns the usable volatility reading and whether it is a proxy.
func (o VolatilityObservation) Value() (float64, bool) {
	if o.ImpliedVol != nil {
		return *o.ImpliedVol, false
	}
	if o.RealizedVol != nil {
		return *o.RealizedVol, true
	}
	return 0, false
}

// SectorBenchmark carries per-sector valuation medians used by the
// overvaluation sub-score.
type SectorBenchmark struct {
	Sector         string    `json:"sector"`
	PEMedian       float64   `json:"pe_median"`
	FCFYieldMedian float64   `json:"fcf_yield_median"`
	UpdatedAt      time.Time `json:"updated_at"`
}
