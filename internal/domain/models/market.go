package models

import (
	"sort"
	"time"
)

// Bar is a single daily OHLCV record.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries is an ascending-by-date series of daily bars for one symbol.
// Bars are unique per date; Merge keeps the newest value on a date collision.
type PriceSeries struct {
	Symbol    string    `json:"symbol"`
	Bars      []Bar     `json:"bars"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Empty reports whether the series has no bars.
func (s *PriceSeries) Empty() bool {
	return s == nil || len(s.Bars) == 0
}

// Len returns number of bars.
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// LastClose returns the most recent close, or 0 for an empty series.
func (s *PriceSeries) LastClose() float64 {
	if s.Empty() {
		return 0
	}
	return s.Bars[len(s.Bars)-1].Close
}

// Closes returns the close column in date order.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Merge upserts incoming bars by date (keep-latest) and re-sorts ascending.
// Merging the same batch twice yields the same series as merging it once.
func (s *PriceSeries) Merge(incoming []Bar) {
	byDate := make(map[time.Time]Bar, len(s.Bars)+len(incoming))
	for _, b := range s.Bars {
		byDate[b.Date] = b
	}
	for _, b := range incoming {
		byDate[b.Date] = b
	}

	merged := make([]Bar, 0, len(byDate))
	for _, b := range byDate {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })
	s.Bars = merged
}

// ContractSpec is a partial contract description for a details lookup.
type ContractSpec struct {
	Symbol  string  `json:"symbol"`
	SecType string  `json:"sec_type"` // "STK" or "OPT"
	Strike  float64 `json:"strike,omitempty"`
	Right   string  `json:"right,omitempty"`  // "C" or "P"
	Expiry  string  `json:"expiry,omitempty"` // YYYYMMDD
}

// OptionContract is a fully resolved option contract.
type OptionContract struct {
	Symbol     string  `json:"symbol"`
	Strike     float64 `json:"strike"`
	Right      string  `json:"right"`
	Expiry     string  `json:"expiry"` // YYYYMMDD
	Multiplier int     `json:"multiplier"`
	ConID      int64   `json:"con_id,omitempty"`
}

// ChainParams holds the available expirations and strikes for an underlying.
type ChainParams struct {
	Symbol      string    `json:"symbol"`
	Expirations []string  `json:"expirations"` // YYYYMMDD, sorted
	Strikes     []float64 `json:"strikes"`     // sorted ascending
	Multiplier  int       `json:"multiplier"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Greeks holds option sensitivities plus implied volatility.
// Nil pointer means the gateway did not deliver that field.
type Greeks struct {
	ImpliedVol *float64 `json:"implied_vol,omitempty"`
	Delta      *float64 `json:"delta,omitempty"`
	Gamma      *float64 `json:"gamma,omitempty"`
	Theta      *float64 `json:"theta,omitempty"`
	Vega       *float64 `json:"vega,omitempty"`
}

// OptionQuote is the accumulated live quote for one option contract.
type OptionQuote struct {
	Contract OptionContract `json:"contract"`
	Bid      float64        `json:"bid"`
	Ask      float64        `json:"ask"`
	Last     float64        `json:"last"`
	Greeks   Greeks         `json:"greeks"`
}

// Mid returns the bid/ask midpoint, falling back to last when one side is missing.
func (q *OptionQuote) Mid() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.Last
}
