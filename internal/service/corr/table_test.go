package corr

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionscan/internal/domain/models"
	"optionscan/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordScanCycle(time.Duration)                         {}
func (nopMetrics) RecordSignal(string, string)                           {}
func (nopMetrics) RecordRejection(string, models.RejectReason)           {}
func (nopMetrics) RecordRequest(string, time.Duration, bool)             {}
func (nopMetrics) SetPendingRequests(int)                                {}
func (nopMetrics) RecordReconnect()                                      {}
func (nopMetrics) SetConnected(bool)                                     {}

type fakeTransport struct {
	mu         sync.Mutex
	connectErr error
	connects   int
	cancelled  []int64
	requested  []int64
}

func (f *fakeTransport) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) record(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, id)
	return nil
}

func (f *fakeTransport) RequestHistoricalBars(id int64, symbol string, durationDays int) error {
	return f.record(id)
}
func (f *fakeTransport) RequestFundamentals(id int64, symbol string) error { return f.record(id) }
func (f *fakeTransport) RequestContractDetails(id int64, spec models.ContractSpec) error {
	return f.record(id)
}
func (f *fakeTransport) RequestChainParams(id int64, symbol string) error { return f.record(id) }
func (f *fakeTransport) RequestOptionQuote(id int64, c models.OptionContract) error {
	return f.record(id)
}
func (f *fakeTransport) RequestAccountSummary(id int64) error { return f.record(id) }
func (f *fakeTransport) RequestPositions(id int64) error      { return f.record(id) }

func (f *fakeTransport) Cancel(id int64, kind Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeTransport) cancelledIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.cancelled...)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func newTestEngine(t *testing.T) (*Engine, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	e := NewEngine(tr, testLogger(t), nopMetrics{}, BackoffConfig{
		BaseDelay:   time.Millisecond,
		MaxDelay:    8 * time.Millisecond,
		MaxAttempts: 3,
	})
	e.pollInterval = time.Millisecond
	e.OnConnected()
	return e, tr
}

func TestAwaitCompletesOnlyAfterTerminalEvent(t *testing.T) {
	e, _ := newTestEngine(t)

	id, err := e.IssueHistoricalBars("AAPL", 252)
	require.NoError(t, err)

	// Not completed yet: TakeResult must refuse.
	_, err = e.TakeResult(id)
	assert.ErrorIs(t, err, ErrNotReady)

	bar := models.Bar{Date: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), Close: 101.5}
	e.OnBar(id, bar)
	e.OnBar(id, models.Bar{Date: bar.Date.AddDate(0, 0, 1), Close: 102.0})
	e.OnBarsEnd(id)

	ok := e.AwaitCompletion(context.Background(), id, time.Second)
	require.True(t, ok)

	res, err := e.TakeResult(id)
	require.NoError(t, err)
	assert.Equal(t, KindHistoricalBars, res.Kind)
	assert.False(t, res.Failed)
	require.Len(t, res.Bars, 2)
	assert.Equal(t, 101.5, res.Bars[0].Close)

	// The slot is gone after TakeResult.
	_, err = e.TakeResult(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, e.Pending())
}

func TestUnknownIDCallbacksAreDropped(t *testing.T) {
	e, _ := newTestEngine(t)

	e.OnBar(9999, models.Bar{Close: 1})
	e.OnBarsEnd(9999)
	e.OnFundamentals(9999, map[string]string{"MKTCAP": "1"})
	e.OnError(9999, 200, "No security definition found")

	assert.Equal(t, 0, e.Pending())
	_, err := e.TakeResult(9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTimeoutCancelsAndReclaimsSlot(t *testing.T) {
	e, tr := newTestEngine(t)

	id, err := e.IssueFundamentals("MSFT")
	require.NoError(t, err)

	ok := e.AwaitCompletion(context.Background(), id, 5*time.Millisecond)
	assert.False(t, ok)
	assert.Contains(t, tr.cancelledIDs(), id)
	assert.Equal(t, 0, e.Pending())

	// A straggler callback for the reclaimed id is a silent no-op.
	e.OnFundamentals(id, map[string]string{"MKTCAP": "6e9"})
	_, err = e.TakeResult(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHardErrorFinalizesAsFailed(t *testing.T) {
	e, _ := newTestEngine(t)

	id, err := e.IssueHistoricalBars("BADSYM", 252)
	require.NoError(t, err)

	e.OnError(id, 200, "No security definition has been found")

	ok := e.AwaitCompletion(context.Background(), id, time.Second)
	require.True(t, ok)

	res, err := e.TakeResult(id)
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Equal(t, 200, res.Code)
	assert.Contains(t, res.ErrMsg, "No security definition")
}

func TestInformationalCodesDoNotFinalize(t *testing.T) {
	e, _ := newTestEngine(t)

	id, err := e.IssueHistoricalBars("AAPL", 5)
	require.NoError(t, err)

	for _, code := range []int{2104, 2106, 2158} {
		e.OnError(id, code, "data farm connection is OK")
	}

	_, err = e.TakeResult(id)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, 1, e.Pending())
}

func TestQuoteAccumulatesTicksUntilFinalize(t *testing.T) {
	e, _ := newTestEngine(t)

	c := models.OptionContract{Symbol: "AAPL", Strike: 100, Right: "P", Expiry: "20261120", Multiplier: 100}
	id, err := e.IssueOptionQuote(c)
	require.NoError(t, err)

	e.OnPriceTick(id, TickBid, 2.4)
	e.OnPriceTick(id, TickAsk, 2.6)
	iv := 0.45
	delta := -0.48
	e.OnGreeksTick(id, models.Greeks{ImpliedVol: &iv, Delta: &delta})
	// Later ticks overwrite earlier ones.
	e.OnPriceTick(id, TickBid, 2.45)

	// No terminal event exists for quotes; the caller finalizes.
	require.True(t, e.Finalize(id))

	res, err := e.TakeResult(id)
	require.NoError(t, err)
	assert.Equal(t, 2.45, res.Quote.Bid)
	assert.Equal(t, 2.6, res.Quote.Ask)
	require.NotNil(t, res.Quote.Greeks.ImpliedVol)
	assert.Equal(t, 0.45, *res.Quote.Greeks.ImpliedVol)
	require.NotNil(t, res.Quote.Greeks.Delta)
	assert.Equal(t, -0.48, *res.Quote.Greeks.Delta)
}

func TestAccountSummaryAndPositions(t *testing.T) {
	e, _ := newTestEngine(t)

	aid, err := e.IssueAccountSummary()
	require.NoError(t, err)
	e.OnAccountValue(aid, "NetLiquidation", 100000)
	e.OnAccountValue(aid, "AvailableFunds", 22000)
	e.OnAccountEnd(aid)

	res, err := e.TakeResult(aid)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, res.Account["NetLiquidation"])
	assert.Equal(t, 22000.0, res.Account["AvailableFunds"])

	pid, err := e.IssuePositions()
	require.NoError(t, err)
	e.OnPosition(pid, models.Position{Symbol: "AAPL", Quantity: 100, AvgCost: 95})
	e.OnPositionsEnd(pid)

	res, err = e.TakeResult(pid)
	require.NoError(t, err)
	require.Len(t, res.Positions, 1)
	assert.Equal(t, "AAPL", res.Positions[0].Symbol)
}

func TestIssueWhileDisconnected(t *testing.T) {
	e, _ := newTestEngine(t)

	// Hold the reconnect loop off by marking it already running.
	e.mu.Lock()
	e.connected = false
	e.reconnecting = true
	e.mu.Unlock()

	_, err := e.IssueHistoricalBars("AAPL", 252)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestReconnectBackoffDoublesAndCaps(t *testing.T) {
	tr := &fakeTransport{}
	e := NewEngine(tr, testLogger(t), nopMetrics{}, BackoffConfig{
		BaseDelay:   time.Second,
		MaxDelay:    8 * time.Second,
		MaxAttempts: 6,
	})

	delays := e.NextReconnectDelays()
	want := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second,
		8 * time.Second, 8 * time.Second, 8 * time.Second,
	}
	assert.Equal(t, want, delays)
}

func TestExhaustedReconnectGoesFatal(t *testing.T) {
	e, tr := newTestEngine(t)
	tr.mu.Lock()
	tr.connectErr = assert.AnError
	tr.mu.Unlock()

	e.OnDisconnected(assert.AnError)

	require.Eventually(t, func() bool {
		_, err := e.IssueHistoricalBars("AAPL", 252)
		return err == ErrFatal
	}, time.Second, 5*time.Millisecond)

	tr.mu.Lock()
	attempts := tr.connects
	tr.mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestIDsAreMonotonic(t *testing.T) {
	e, _ := newTestEngine(t)

	a, err := e.IssueHistoricalBars("AAPL", 252)
	require.NoError(t, err)
	b, err := e.IssueFundamentals("AAPL")
	require.NoError(t, err)
	c, err := e.IssueChainParams("AAPL")
	require.NoError(t, err)

	assert.Less(t, a, b)
	assert.Less(t, b, c)
}
