// Package gateway speaks the broker gateway's JSON-over-WebSocket protocol.
// Outbound request frames carry a caller-allocated request id; inbound event
// frames are decoded and dispatched, one at a time, to an Events handler.
package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"optionscan/internal/domain/models"
	"optionscan/internal/service/corr"
	"optionscan/pkg/config"
	"optionscan/pkg/logger"
)

// Events receives decoded gateway events on the read-loop goroutine.
// Handlers must not block; the read loop delivers strictly in arrival order.
type Events interface {
	OnConnected()
	OnDisconnected(err error)
	OnBar(id int64, bar models.Bar)
	OnBarsEnd(id int64)
	OnFundamentals(id int64, fields map[string]string)
	OnContract(id int64, c models.OptionContract)
	OnContractsEnd(id int64)
	OnChainParams(id int64, chain models.ChainParams)
	OnPriceTick(id int64, tickType int, price float64)
	OnGreeksTick(id int64, g models.Greeks)
	OnAccountValue(id int64, tag string, value float64)
	OnAccountEnd(id int64)
	OnPosition(id int64, pos models.Position)
	OnPositionsEnd(id int64)
	OnError(id int64, code int, msg string)
}

// Client implements corr.Transport over a single WebSocket connection.
type Client struct {
	cfg *config.GatewayConfig
	log *logger.Logger

	mu      sync.Mutex // guards conn and writes
	conn    *websocket.Conn
	handler Events
	closed  bool
}

var _ corr.Transport = (*Client)(nil)

// NewClient creates a disconnected gateway client. SetHandler must be called
// before Connect.
func NewClient(cfg *config.GatewayConfig, log *logger.Logger) *Client {
	return &Client{cfg: cfg, log: log}
}

// SetHandler wires the event consumer. Called once during assembly.
func (c *Client) SetHandler(h Events) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Connect dials the gateway, sends the hello frame, and starts the read and
// ping loops. The handler's OnConnected fires when the gateway answers with
// its next-valid-id frame.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handler == nil {
		return fmt.Errorf("gateway: no event handler set")
	}
	if c.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.ConnectTimeout}
	conn, _, err := dialer.Dial(c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("gateway dial %s: %w", c.cfg.URL, err)
	}
	c.conn = conn
	c.closed = false

	if err := conn.WriteJSON(requestFrame{Op: opHello, ClientID: c.cfg.ClientID}); err != nil {
		conn.Close()
		c.conn = nil
		return fmt.Errorf("gateway hello: %w", err)
	}

	go c.readLoop(conn)
	go c.pingLoop(conn)
	return nil
}

// Close tears the connection down without triggering a reconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) write(frame requestFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return corr.ErrDisconnected
	}
	if err := c.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("gateway write %s: %w", frame.Op, err)
	}
	return nil
}

func (c *Client) RequestHistoricalBars(id int64, symbol string, durationDays int) error {
	return c.write(requestFrame{Op: opHistoricalBars, ReqID: id, Symbol: symbol, DurationDays: durationDays})
}

func (c *Client) RequestFundamentals(id int64, symbol string) error {
	return c.write(requestFrame{Op: opFundamentals, ReqID: id, Symbol: symbol})
}

func (c *Client) RequestContractDetails(id int64, spec models.ContractSpec) error {
	return c.write(requestFrame{Op: opContractDetails, ReqID: id, Contract: &contractFrame{
		Symbol:  spec.Symbol,
		SecType: spec.SecType,
		Strike:  spec.Strike,
		Right:   spec.Right,
		Expiry:  spec.Expiry,
	}})
}

func (c *Client) RequestChainParams(id int64, symbol string) error {
	return c.write(requestFrame{Op: opChainParams, ReqID: id, Symbol: symbol})
}

func (c *Client) RequestOptionQuote(id int64, contract models.OptionContract) error {
	return c.write(requestFrame{Op: opOptionQuote, ReqID: id, Contract: &contractFrame{
		Symbol:     contract.Symbol,
		SecType:    "OPT",
		Strike:     contract.Strike,
		Right:      contract.Right,
		Expiry:     contract.Expiry,
		Multiplier: contract.Multiplier,
		ConID:      contract.ConID,
	}})
}

func (c *Client) RequestAccountSummary(id int64) error {
	return c.write(requestFrame{Op: opAccountSummary, ReqID: id})
}

func (c *Client) RequestPositions(id int64) error {
	return c.write(requestFrame{Op: opPositions, ReqID: id})
}

// Cancel tells the gateway to stop streaming for id. Failures are the
// caller's to ignore; the request slot is reclaimed either way.
func (c *Client) Cancel(id int64, kind corr.Kind) error {
	return c.write(requestFrame{Op: opCancel, ReqID: id, Kind: kind.String()})
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		live := c.conn == conn
		if live {
			_ = conn.WriteMessage(websocket.PingMessage, nil)
		}
		c.mu.Unlock()
		if !live {
			return
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var f eventFrame
		if err := conn.ReadJSON(&f); err != nil {
			c.mu.Lock()
			closed := c.closed
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			conn.Close()
			if !closed {
				c.handler.OnDisconnected(fmt.Errorf("gateway read: %w", err))
			}
			return
		}
		c.dispatch(&f)
	}
}

func (c *Client) dispatch(f *eventFrame) {
	switch f.Event {
	case evNextValidID:
		c.handler.OnConnected()
	case evBar:
		date, err := time.Parse("2006-01-02", f.Date)
		if err != nil {
			c.log.Warn("bad bar date", logger.String("date", f.Date), logger.Error(err))
			return
		}
		c.handler.OnBar(f.ReqID, models.Bar{
			Date: date, Open: f.Open, High: f.High, Low: f.Low, Close: f.Close, Volume: f.Volume,
		})
	case evBarsEnd:
		c.handler.OnBarsEnd(f.ReqID)
	case evFundamentals:
		c.handler.OnFundamentals(f.ReqID, f.Fields)
	case evContract:
		c.handler.OnContract(f.ReqID, f.contract())
	case evContractsEnd:
		c.handler.OnContractsEnd(f.ReqID)
	case evChainParams:
		c.handler.OnChainParams(f.ReqID, models.ChainParams{
			Symbol:      f.Symbol,
			Expirations: f.Expirations,
			Strikes:     f.Strikes,
			Multiplier:  f.Multiplier,
			FetchedAt:   time.Now(),
		})
	case evPriceTick:
		c.handler.OnPriceTick(f.ReqID, f.TickType, f.Price)
	case evGreeksTick:
		c.handler.OnGreeksTick(f.ReqID, models.Greeks{
			ImpliedVol: f.ImpliedVol,
			Delta:      f.Delta,
			Gamma:      f.Gamma,
			Theta:      f.Theta,
			Vega:       f.Vega,
		})
	case evAccountValue:
		c.handler.OnAccountValue(f.ReqID, f.Tag, f.Value)
	case evAccountEnd:
		c.handler.OnAccountEnd(f.ReqID)
	case evPosition:
		c.handler.OnPosition(f.ReqID, models.Position{
			Symbol:        f.Symbol,
			SecType:       f.SecType,
			Quantity:      f.Quantity,
			AvgCost:       f.AvgCost,
			UnrealizedPnL: f.UnrealizedPnL,
		})
	case evPositionsEnd:
		c.handler.OnPositionsEnd(f.ReqID)
	case evError:
		c.handler.OnError(f.ReqID, f.Code, f.Message)
	default:
		c.log.Debug("unknown gateway event", logger.String("event", f.Event))
	}
}
