package pipeline

// StrikeRuleKind selects how the pipeline picks a strike from the chain.
type StrikeRuleKind int

const (
	// StrikeATM picks the strike nearest the current price.
	StrikeATM StrikeRuleKind = iota
	// StrikeOTMPct picks the strike nearest a fixed percentage out of the
	// money, never closer than MinOTMPct.
	StrikeOTMPct
)

// StrikeRule parameterizes strike selection. SpreadWidth > 0 makes the
// variant a vertical spread: the second leg sits SpreadWidth dollars beyond
// the short strike, falling back to the next higher listed strike when the
// exact width is not listed.
type StrikeRule struct {
	Kind        StrikeRuleKind
	OTMPct      float64
	MinOTMPct   float64
	SpreadWidth float64
}

// ScoreWeights weight the four fundamental sub-scores into the composite.
// They are normalized at evaluation time, so any positive scale works.
type ScoreWeights struct {
	Value    float64
	Growth   float64
	Quality  float64
	Momentum float64
}

// Variant is one data-driven strategy configuration. All variants share the
// same gate sequence; only these parameters differ.
type Variant struct {
	Name  string
	Right string // "P" or "C" (the primary / short leg for spreads)

	// Trigger
	TriggerAtHigh       bool // true: near 52-week high; false: near low
	TriggerProximityPct float64

	// History required before 52-week extremes are meaningful.
	MinHistoryBars int

	// Fundamental gate
	Weights      ScoreWeights
	MinSubScore  float64
	MinComposite float64

	// Volatility regime band, inclusive.
	IVRankMin float64
	IVRankMax float64

	// Trend regime (mean-reversion entries only).
	MeanReversion bool
	ADXCeiling    float64

	// Contract selection
	DTEMin int
	DTEMax int
	Strike StrikeRule

	// ShortPremium marks net-credit variants (spreads).
	ShortPremium bool
}

// DefaultVariants returns the three built-in contrarian strategies.
func DefaultVariants() []Variant {
	return []Variant{
		{
			// Stock stretched to its 52-week high in a rich-vol regime:
			// buy a put and wait for mean reversion.
			Name:                "long_put",
			Right:               "P",
			TriggerAtHigh:       true,
			TriggerProximityPct: 2.0,
			MinHistoryBars:      252,
			Weights:             ScoreWeights{Value: 0.35, Growth: 0.15, Quality: 0.25, Momentum: 0.25},
			MinSubScore:         30,
			MinComposite:        60,
			IVRankMin:           70,
			IVRankMax:           100,
			MeanReversion:       true,
			ADXCeiling:          30,
			DTEMin:              60,
			DTEMax:              90,
			Strike:              StrikeRule{Kind: StrikeATM},
		},
		{
			// Quality name beaten down to its 52-week low with cheap vol:
			// buy a call.
			Name:                "long_call",
			Right:               "C",
			TriggerAtHigh:       false,
			TriggerProximityPct: 2.0,
			MinHistoryBars:      252,
			Weights:             ScoreWeights{Value: 0.30, Growth: 0.25, Quality: 0.30, Momentum: 0.15},
			MinSubScore:         30,
			MinComposite:        60,
			IVRankMin:           0,
			IVRankMax:           30,
			MeanReversion:       true,
			ADXCeiling:          30,
			DTEMin:              90,
			DTEMax:              120,
			Strike:              StrikeRule{Kind: StrikeOTMPct, OTMPct: 5, MinOTMPct: 2},
		},
		{
			// Same stretched-high setup but harvesting the rich premium
			// with a defined-risk bear call spread.
			Name:                "bear_call_spread",
			Right:               "C",
			TriggerAtHigh:       true,
			TriggerProximityPct: 2.0,
			MinHistoryBars:      252,
			Weights:             ScoreWeights{Value: 0.40, Growth: 0.10, Quality: 0.25, Momentum: 0.25},
			MinSubScore:         30,
			MinComposite:        55,
			IVRankMin:           70,
			IVRankMax:           100,
			MeanReversion:       true,
			ADXCeiling:          30,
			DTEMin:              30,
			DTEMax:              45,
			Strike:              StrikeRule{Kind: StrikeOTMPct, OTMPct: 10, MinOTMPct: 5, SpreadWidth: 5},
			ShortPremium:        true,
		},
	}
}
