package corr

import (
	"context"
	"sync"
	"time"

	"optionscan/internal/domain/models"
	"optionscan/internal/domain/repository"
	"optionscan/pkg/logger"
)

// Informational gateway error codes (connectivity heartbeats). These never
// finalize a request.
var infoCodes = map[int]bool{2104: true, 2106: true, 2158: true}

// Hard error codes that finalize the referenced request as failed.
var hardCodes = map[int]bool{162: true, 200: true, 354: true, 502: true}

type pending struct {
	id        int64
	kind      Kind
	subject   Subject
	createdAt time.Time
	completed bool
	result    Result
}

// BackoffConfig bounds the reconnect schedule.
type BackoffConfig struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// Engine owns id allocation, the pending-request table, and the blocking
// wait protocol. Inserts happen on the scan-driver goroutine; mutations
// arrive from the gateway delivery goroutine.
type Engine struct {
	mu        sync.Mutex
	transport Transport
	log       *logger.Logger
	metrics   repository.Metrics

	nextID       int64
	table        map[int64]*pending
	connected    bool
	fatal        bool
	reconnecting bool

	backoff      BackoffConfig
	pollInterval time.Duration
}

// NewEngine creates a correlation engine over the given transport. Request
// ids start at 1000 to stay clear of any gateway-reserved range.
func NewEngine(t Transport, log *logger.Logger, m repository.Metrics, backoff BackoffConfig) *Engine {
	if backoff.BaseDelay <= 0 {
		backoff.BaseDelay = time.Second
	}
	if backoff.MaxDelay <= 0 {
		backoff.MaxDelay = time.Minute
	}
	if backoff.MaxAttempts <= 0 {
		backoff.MaxAttempts = 8
	}
	return &Engine{
		transport:    t,
		log:          log,
		metrics:      m,
		nextID:       1000,
		table:        make(map[int64]*pending),
		backoff:      backoff,
		pollInterval: 100 * time.Millisecond,
	}
}

// Connected reports the current gateway link state.
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

// Pending returns the number of in-flight requests.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.table)
}

func (e *Engine) issue(kind Kind, sub Subject, fire func(id int64) error) (int64, error) {
	e.mu.Lock()
	if e.fatal {
		e.mu.Unlock()
		return 0, ErrFatal
	}
	if !e.connected {
		e.mu.Unlock()
		return 0, ErrDisconnected
	}
	id := e.nextID
	e.nextID++
	p := &pending{id: id, kind: kind, subject: sub, createdAt: time.Now()}
	p.result.Kind = kind
	e.table[id] = p
	e.metrics.SetPendingRequests(len(e.table))
	e.mu.Unlock()

	if err := fire(id); err != nil {
		e.release(id)
		return 0, err
	}
	return id, nil
}

// IssueHistoricalBars requests durationDays of daily bars for symbol.
func (e *Engine) IssueHistoricalBars(symbol string, durationDays int) (int64, error) {
	return e.issue(KindHistoricalBars, Subject{Symbol: symbol}, func(id int64) error {
		return e.transport.RequestHistoricalBars(id, symbol, durationDays)
	})
}

// IssueFundamentals requests a fundamentals snapshot for symbol.
func (e *Engine) IssueFundamentals(symbol string) (int64, error) {
	return e.issue(KindFundamentals, Subject{Symbol: symbol}, func(id int64) error {
		return e.transport.RequestFundamentals(id, symbol)
	})
}

// IssueContractDetails requests contracts matching a partial spec.
func (e *Engine) IssueContractDetails(spec models.ContractSpec) (int64, error) {
	sub := Subject{Symbol: spec.Symbol, Strike: spec.Strike, Right: spec.Right, Expiry: spec.Expiry}
	return e.issue(KindContractDetails, sub, func(id int64) error {
		return e.transport.RequestContractDetails(id, spec)
	})
}

// IssueChainParams requests option chain parameters for symbol.
func (e *Engine) IssueChainParams(symbol string) (int64, error) {
	return e.issue(KindChainParams, Subject{Symbol: symbol}, func(id int64) error {
		return e.transport.RequestChainParams(id, symbol)
	})
}

// IssueOptionQuote requests a live quote with greeks for one contract.
// This kind has no terminal callback; callers wait a fixed window and then
// call Finalize before taking the result.
func (e *Engine) IssueOptionQuote(c models.OptionContract) (int64, error) {
	sub := Subject{Symbol: c.Symbol, Strike: c.Strike, Right: c.Right, Expiry: c.Expiry}
	return e.issue(KindOptionQuote, sub, func(id int64) error {
		return e.transport.RequestOptionQuote(id, c)
	})
}

// IssueAccountSummary requests the account summary tags.
func (e *Engine) IssueAccountSummary() (int64, error) {
	return e.issue(KindAccountSummary, Subject{}, func(id int64) error {
		return e.transport.RequestAccountSummary(id)
	})
}

// IssuePositions requests the open position list.
func (e *Engine) IssuePositions() (int64, error) {
	return e.issue(KindPositions, Subject{}, func(id int64) error {
		return e.transport.RequestPositions(id)
	})
}

// AwaitCompletion blocks in short polling intervals until the request is
// finalized or the timeout elapses. On timeout the slot is reclaimed and a
// best-effort cancel is sent; the return value reports whether completion
// was observed.
func (e *Engine) AwaitCompletion(ctx context.Context, id int64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	start := time.Now()

	var kind Kind
	e.mu.Lock()
	if p, ok := e.table[id]; ok {
		kind = p.kind
	} else {
		e.mu.Unlock()
		return false
	}
	e.mu.Unlock()

	for {
		e.mu.Lock()
		p, ok := e.table[id]
		if !ok {
			e.mu.Unlock()
			return false
		}
		if p.completed {
			e.mu.Unlock()
			e.metrics.RecordRequest(kind.String(), time.Since(start), true)
			return true
		}
		e.mu.Unlock()

		if time.Now().After(deadline) {
			e.log.Warn("request timed out",
				logger.Int64("req_id", id),
				logger.String("kind", kind.String()),
				logger.Duration("timeout", timeout))
			_ = e.transport.Cancel(id, kind)
			e.release(id)
			e.metrics.RecordRequest(kind.String(), time.Since(start), false)
			return false
		}

		select {
		case <-ctx.Done():
			_ = e.transport.Cancel(id, kind)
			e.release(id)
			e.metrics.RecordRequest(kind.String(), time.Since(start), false)
			return false
		case <-time.After(e.pollInterval):
		}
	}
}

// Finalize marks a request completed without a terminal callback. Used for
// quote requests, which deliver ticks but no end event.
func (e *Engine) Finalize(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.table[id]
	if !ok {
		return false
	}
	p.completed = true
	return true
}

// TakeResult removes and returns the finalized buffer for id. Calling it on
// an absent id yields ErrNotFound; on a non-completed one, ErrNotReady.
func (e *Engine) TakeResult(id int64) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.table[id]
	if !ok {
		return Result{}, ErrNotFound
	}
	if !p.completed {
		return Result{}, ErrNotReady
	}
	delete(e.table, id)
	e.metrics.SetPendingRequests(len(e.table))
	return p.result, nil
}

func (e *Engine) release(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.table, id)
	e.metrics.SetPendingRequests(len(e.table))
}

// lookup runs fn on the pending entry for id under the table lock.
// A callback referencing an unknown id is dropped: the request was already
// consumed, timed out, or never valid.
func (e *Engine) lookup(id int64, fn func(p *pending)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.table[id]
	if !ok {
		return
	}
	fn(p)
}

// --- delivery-side callbacks (gateway goroutine) ---

// OnBar appends one historical bar to the request buffer.
func (e *Engine) OnBar(id int64, bar models.Bar) {
	e.lookup(id, func(p *pending) {
		p.result.Bars = append(p.result.Bars, bar)
	})
}

// OnBarsEnd finalizes a historical bars request.
func (e *Engine) OnBarsEnd(id int64) {
	e.lookup(id, func(p *pending) { p.completed = true })
}

// OnFundamentals stores the raw field map and finalizes the request.
func (e *Engine) OnFundamentals(id int64, fields map[string]string) {
	e.lookup(id, func(p *pending) {
		p.result.Fields = fields
		p.completed = true
	})
}

// OnContract appends one matching contract descriptor.
func (e *Engine) OnContract(id int64, c models.OptionContract) {
	e.lookup(id, func(p *pending) {
		p.result.Contracts = append(p.result.Contracts, c)
	})
}

// OnContractsEnd finalizes a contract details request.
func (e *Engine) OnContractsEnd(id int64) {
	e.lookup(id, func(p *pending) { p.completed = true })
}

// OnChainParams stores chain parameters; this event is immediately terminal.
func (e *Engine) OnChainParams(id int64, chain models.ChainParams) {
	e.lookup(id, func(p *pending) {
		p.result.Chain = chain
		p.completed = true
	})
}

// Price tick types delivered by the gateway.
const (
	TickBid  = 1
	TickAsk  = 2
	TickLast = 4
)

// OnPriceTick overwrites the matching quote field.
func (e *Engine) OnPriceTick(id int64, tickType int, price float64) {
	e.lookup(id, func(p *pending) {
		switch tickType {
		case TickBid:
			p.result.Quote.Bid = price
		case TickAsk:
			p.result.Quote.Ask = price
		case TickLast:
			p.result.Quote.Last = price
		}
	})
}

// OnGreeksTick overwrites the delivered greek fields; nil fields are kept.
func (e *Engine) OnGreeksTick(id int64, g models.Greeks) {
	e.lookup(id, func(p *pending) {
		if g.ImpliedVol != nil {
			p.result.Quote.Greeks.ImpliedVol = g.ImpliedVol
		}
		if g.Delta != nil {
			p.result.Quote.Greeks.Delta = g.Delta
		}
		if g.Gamma != nil {
			p.result.Quote.Greeks.Gamma = g.Gamma
		}
		if g.Theta != nil {
			p.result.Quote.Greeks.Theta = g.Theta
		}
		if g.Vega != nil {
			p.result.Quote.Greeks.Vega = g.Vega
		}
	})
}

// OnAccountValue records one account summary tag.
func (e *Engine) OnAccountValue(id int64, tag string, value float64) {
	e.lookup(id, func(p *pending) {
		if p.result.Account == nil {
			p.result.Account = make(map[string]float64)
		}
		p.result.Account[tag] = value
	})
}

// OnAccountEnd finalizes an account summary request.
func (e *Engine) OnAccountEnd(id int64) {
	e.lookup(id, func(p *pending) { p.completed = true })
}

// OnPosition appends one open position.
func (e *Engine) OnPosition(id int64, pos models.Position) {
	e.lookup(id, func(p *pending) {
		p.result.Positions = append(p.result.Positions, pos)
	})
}

// OnPositionsEnd finalizes a positions request.
func (e *Engine) OnPositionsEnd(id int64) {
	e.lookup(id, func(p *pending) { p.completed = true })
}

// OnError classifies a gateway error event. Informational codes are logged
// and dropped; hard codes finalize the referenced request as failed; other
// codes are logged without touching the table.
func (e *Engine) OnError(id int64, code int, msg string) {
	if infoCodes[code] {
		e.log.Debug("gateway info", logger.Int("code", code), logger.String("msg", msg))
		return
	}
	if !hardCodes[code] {
		e.log.Warn("gateway error",
			logger.Int64("req_id", id),
			logger.Int("code", code),
			logger.String("msg", msg))
		return
	}
	e.lookup(id, func(p *pending) {
		p.completed = true
		p.result.Failed = true
		p.result.Code = code
		p.result.ErrMsg = msg
	})
}

// OnConnected marks the link ready for requests. Delivered after the
// gateway's next-valid-id handshake.
func (e *Engine) OnConnected() {
	e.mu.Lock()
	e.connected = true
	e.reconnecting = false
	e.mu.Unlock()
	e.metrics.SetConnected(true)
	e.log.Info("gateway connected")
}

// OnDisconnected flips the connection flag and schedules a reconnect with
// exponential backoff. Requests in flight are abandoned; their slots are
// reclaimed by await timeouts.
func (e *Engine) OnDisconnected(err error) {
	e.mu.Lock()
	wasReconnecting := e.reconnecting
	e.connected = false
	e.reconnecting = true
	e.mu.Unlock()
	e.metrics.SetConnected(false)

	if err != nil {
		e.log.Warn("gateway disconnected", logger.Error(err))
	}
	if !wasReconnecting {
		go e.reconnectLoop()
	}
}

func (e *Engine) reconnectLoop() {
	delay := e.backoff.BaseDelay
	for attempt := 1; attempt <= e.backoff.MaxAttempts; attempt++ {
		time.Sleep(delay)
		e.metrics.RecordReconnect()
		e.log.Info("reconnecting to gateway",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay))

		if err := e.transport.Connect(); err == nil {
			// OnConnected fires via the handshake; nothing else to do here.
			return
		} else {
			e.log.Warn("reconnect failed", logger.Int("attempt", attempt), logger.Error(err))
		}

		delay *= 2
		if delay > e.backoff.MaxDelay {
			delay = e.backoff.MaxDelay
		}
	}

	e.mu.Lock()
	e.fatal = true
	e.reconnecting = false
	e.mu.Unlock()
	e.log.Error("gateway reconnect attempts exhausted; giving up")
}

// NextReconnectDelays returns the schedule the engine would use, mainly for
// diagnostics.
func (e *Engine) NextReconnectDelays() []time.Duration {
	out := make([]time.Duration, 0, e.backoff.MaxAttempts)
	d := e.backoff.BaseDelay
	for i := 0; i < e.backoff.MaxAttempts; i++ {
		out = append(out, d)
		d *= 2
		if d > e.backoff.MaxDelay {
			d = e.backoff.MaxDelay
		}
	}
	return out
}
