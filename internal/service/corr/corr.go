// Package corr turns the gateway's fire-and-forget callback protocol into a
// synchronous-looking "issue, await, take result" interface. The table keyed
// by request id is the only synchronization point between the gateway's
// delivery goroutine and the scan driver.
package corr

import (
	"errors"

	"optionscan/internal/domain/models"
)

var (
	// ErrNotReady is returned by TakeResult for a request that has not been
	// finalized by an end or error callback yet.
	ErrNotReady = errors.New("corr: request not completed")
	// ErrNotFound is returned for an id that is absent from the table.
	ErrNotFound = errors.New("corr: request not found")
	// ErrDisconnected is returned by Issue while the gateway link is down.
	ErrDisconnected = errors.New("corr: gateway disconnected")
	// ErrFatal is returned by Issue after reconnect attempts are exhausted.
	ErrFatal = errors.New("corr: gateway connection permanently lost")
)

// Kind identifies the request type and selects the buffer merge rules.
type Kind int

const (
	KindHistoricalBars Kind = iota
	KindFundamentals
	KindContractDetails
	KindChainParams
	KindOptionQuote
	KindAccountSummary
	KindPositions
)

func (k Kind) String() string {
	switch k {
	case KindHistoricalBars:
		return "historical_bars"
	case KindFundamentals:
		return "fundamentals"
	case KindContractDetails:
		return "contract_details"
	case KindChainParams:
		return "chain_params"
	case KindOptionQuote:
		return "option_quote"
	case KindAccountSummary:
		return "account_summary"
	case KindPositions:
		return "positions"
	}
	return "unknown"
}

// Subject is what a request concerns: a symbol, plus strike/right/expiry for
// option requests.
type Subject struct {
	Symbol string
	Strike float64
	Right  string
	Expiry string
}

// Result is the finalized buffer of one request. Only the field matching
// Kind is populated.
type Result struct {
	Kind   Kind
	Failed bool
	Code   int
	ErrMsg string

	Bars      []models.Bar
	Fields    map[string]string
	Contracts []models.OptionContract
	Chain     models.ChainParams
	Quote     models.OptionQuote
	Account   map[string]float64
	Positions []models.Position
}

// Transport is the outbound half of the gateway link. Each Request* call
// fires the wire request for an already-allocated id and returns without
// waiting for any callback.
type Transport interface {
	Connect() error
	Close() error

	RequestHistoricalBars(id int64, symbol string, durationDays int) error
	RequestFundamentals(id int64, symbol string) error
	RequestContractDetails(id int64, spec models.ContractSpec) error
	RequestChainParams(id int64, symbol string) error
	RequestOptionQuote(id int64, contract models.OptionContract) error
	RequestAccountSummary(id int64) error
	RequestPositions(id int64) error

	// Cancel is best-effort; the table slot is reclaimed regardless.
	Cancel(id int64, kind Kind) error
}
