package gateway

import "optionscan/internal/domain/models"

// Outbound operations.
const (
	opHello           = "hello"
	opHistoricalBars  = "historicalBars"
	opFundamentals    = "fundamentals"
	opContractDetails = "contractDetails"
	opChainParams     = "chainParams"
	opOptionQuote     = "optionQuote"
	opAccountSummary  = "accountSummary"
	opPositions       = "positions"
	opCancel          = "cancel"
)

// Inbound events.
const (
	evNextValidID  = "nextValidId"
	evBar          = "bar"
	evBarsEnd      = "barsEnd"
	evFundamentals = "fundamentals"
	evContract     = "contract"
	evContractsEnd = "contractsEnd"
	evChainParams  = "chainParams"
	evPriceTick    = "priceTick"
	evGreeksTick   = "greeksTick"
	evAccountValue = "accountValue"
	evAccountEnd   = "accountEnd"
	evPosition     = "position"
	evPositionsEnd = "positionsEnd"
	evError        = "error"
)

type contractFrame struct {
	Symbol     string  `json:"symbol"`
	SecType    string  `json:"secType,omitempty"`
	Strike     float64 `json:"strike,omitempty"`
	Right      string  `json:"right,omitempty"`
	Expiry     string  `json:"expiry,omitempty"`
	Multiplier int     `json:"multiplier,omitempty"`
	ConID      int64   `json:"conId,omitempty"`
}

// requestFrame is the single outbound frame shape; unused fields are omitted.
type requestFrame struct {
	Op           string         `json:"op"`
	ReqID        int64          `json:"reqId,omitempty"`
	ClientID     int            `json:"clientId,omitempty"`
	Symbol       string         `json:"symbol,omitempty"`
	DurationDays int            `json:"durationDays,omitempty"`
	Kind         string         `json:"kind,omitempty"`
	Contract     *contractFrame `json:"contract,omitempty"`
}

// eventFrame is the single inbound frame shape.
type eventFrame struct {
	Event  string `json:"event"`
	ReqID  int64  `json:"reqId,omitempty"`
	Symbol string `json:"symbol,omitempty"`

	// bar
	Date   string  `json:"date,omitempty"` // YYYY-MM-DD
	Open   float64 `json:"open,omitempty"`
	High   float64 `json:"high,omitempty"`
	Low    float64 `json:"low,omitempty"`
	Close  float64 `json:"close,omitempty"`
	Volume float64 `json:"volume,omitempty"`

	// fundamentals
	Fields map[string]string `json:"fields,omitempty"`

	// contract / quote subject
	Contract *contractFrame `json:"contract,omitempty"`

	// chainParams
	Expirations []string  `json:"expirations,omitempty"`
	Strikes     []float64 `json:"strikes,omitempty"`
	Multiplier  int       `json:"multiplier,omitempty"`

	// priceTick
	TickType int     `json:"tickType,omitempty"`
	Price    float64 `json:"price,omitempty"`

	// greeksTick
	ImpliedVol *float64 `json:"impliedVol,omitempty"`
	Delta      *float64 `json:"delta,omitempty"`
	Gamma      *float64 `json:"gamma,omitempty"`
	Theta      *float64 `json:"theta,omitempty"`
	Vega       *float64 `json:"vega,omitempty"`

	// accountValue
	Tag   string  `json:"tag,omitempty"`
	Value float64 `json:"value,omitempty"`

	// position
	SecType       string  `json:"secType,omitempty"`
	Quantity      float64 `json:"quantity,omitempty"`
	AvgCost       float64 `json:"avgCost,omitempty"`
	UnrealizedPnL float64 `json:"unrealizedPnl,omitempty"`

	// error / nextValidId
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	OrderID int64  `json:"orderId,omitempty"`
}

func (f *eventFrame) contract() models.OptionContract {
	if f.Contract == nil {
		return models.OptionContract{}
	}
	return models.OptionContract{
		Symbol:     f.Contract.Symbol,
		Strike:     f.Contract.Strike,
		Right:      f.Contract.Right,
		Expiry:     f.Contract.Expiry,
		Multiplier: f.Contract.Multiplier,
		ConID:      f.Contract.ConID,
	}
}
