// Package paper is an in-memory exchange used for dry runs. It simulates
// an inverse perpetual margined in the base coin: q contracts at price p
// with leverage L lock q/(p*L) of margin.
//
// Market orders fill immediately at the current price. Limit orders fill
// immediately when marketable and otherwise rest until the price crosses
// them or they are cancelled. The price only moves through SetPrice, or
// through Follow when a dry run tracks the live ticker; with a fixed price
// backtraced limit entries and ladder rungs never fill. Openings that
// exceed the free margin are clamped to what the margin allows, so the
// sizing overshoots used for exits and reversals behave the way they do
// on a live account.
package paper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/joelsfoster/gizmo/internal/exchange"

	"github.com/google/uuid"
)

const epsilon = 1e-9

var (
	ErrInsufficientMargin = errors.New("insufficient available balance")
	ErrNothingToReduce    = errors.New("reduce-only order has no position to reduce")
	ErrNoPosition         = errors.New("no open position")
)

type Config struct {
	Free     float64
	Price    float64
	Leverage float64
}

type restingOrder struct {
	id         string
	side       exchange.Side
	qty        float64
	price      float64
	reduceOnly bool
	reserved   float64
}

// Exchange keeps a single one-way position and the resting orders against it.
type Exchange struct {
	mu          sync.Mutex
	free        float64
	posMargin   float64
	orderMargin float64
	pos         float64 // signed contracts, positive is long
	price       float64
	leverage    float64
	orders      []*restingOrder
	trailing    *exchange.TrailingStopRequest
}

var _ exchange.Client = (*Exchange)(nil)

func New(c Config) *Exchange {
	if c.Leverage <= 0 {
		c.Leverage = 1
	}
	return &Exchange{
		free:     c.Free,
		price:    c.Price,
		leverage: c.Leverage,
	}
}

func (e *Exchange) FetchBalance(_ context.Context, coin string) (exchange.Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return exchange.Balance{Coin: coin, Free: e.free, Used: e.posMargin + e.orderMargin}, nil
}

func (e *Exchange) FetchTicker(_ context.Context, symbol string) (exchange.Ticker, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.price <= 0 {
		return exchange.Ticker{}, fmt.Errorf("no price for %s", symbol)
	}
	return exchange.Ticker{Symbol: symbol, LastPrice: e.price}, nil
}

func (e *Exchange) CreateOrder(_ context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	qty, err := strconv.ParseFloat(req.Qty, 64)
	if err != nil || qty <= 0 {
		return nil, fmt.Errorf("invalid qty %q", req.Qty)
	}
	if req.Side != exchange.Buy && req.Side != exchange.Sell {
		return nil, fmt.Errorf("invalid side %q", req.Side)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := uuid.New().String()
	switch req.Type {
	case exchange.Market:
		if err := e.fill(req.Side, qty, req.ReduceOnly, e.price); err != nil {
			return nil, err
		}
	case exchange.Limit:
		price, err := strconv.ParseFloat(req.Price, 64)
		if err != nil || price <= 0 {
			return nil, fmt.Errorf("invalid price %q", req.Price)
		}
		if marketable(req.Side, price, e.price) {
			if err := e.fill(req.Side, qty, req.ReduceOnly, price); err != nil {
				return nil, err
			}
			break
		}
		o := &restingOrder{id: id, side: req.Side, qty: qty, price: price, reduceOnly: req.ReduceOnly}
		if !req.ReduceOnly {
			need := qty / (price * e.leverage)
			if need > e.free+epsilon {
				return nil, ErrInsufficientMargin
			}
			o.reserved = need
			e.free -= need
			e.orderMargin += need
		}
		e.orders = append(e.orders, o)
	default:
		return nil, fmt.Errorf("invalid order type %q", req.Type)
	}

	return &exchange.OrderResult{OrderID: id, ClientOrderID: req.ClientOrderID}, nil
}

func (e *Exchange) CancelAllOrders(_ context.Context, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range e.orders {
		e.release(o)
	}
	e.orders = nil
	return nil
}

func (e *Exchange) SetTrailingStop(_ context.Context, req exchange.TrailingStopRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if math.Abs(e.pos) < epsilon {
		return ErrNoPosition
	}
	r := req
	e.trailing = &r
	return nil
}

// SetPrice moves the market and fills every resting order the new price
// crosses.
func (e *Exchange) SetPrice(price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.price = price

	remaining := e.orders[:0]
	for _, o := range e.orders {
		if !marketable(o.side, o.price, price) {
			remaining = append(remaining, o)
			continue
		}
		e.release(o)
		// A resting reduce-only order whose position is gone simply expires.
		_ = e.fill(o.side, o.qty, o.reduceOnly, o.price)
	}
	e.orders = remaining
}

// Position returns the signed open contracts.
func (e *Exchange) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

// OpenOrders returns the number of resting orders.
func (e *Exchange) OpenOrders() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.orders)
}

// TrailingStop returns the last armed trailing stop, if any.
func (e *Exchange) TrailingStop() (exchange.TrailingStopRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.trailing == nil {
		return exchange.TrailingStopRequest{}, false
	}
	return *e.trailing, true
}

func marketable(side exchange.Side, limit, market float64) bool {
	if side == exchange.Buy {
		return limit >= market
	}
	return limit <= market
}

func (e *Exchange) release(o *restingOrder) {
	e.free += o.reserved
	e.orderMargin -= o.reserved
	o.reserved = 0
}

// fill applies qty contracts at price: first reducing any opposite
// position, then opening with what is left unless reduceOnly.
// Callers hold e.mu.
func (e *Exchange) fill(side exchange.Side, qty float64, reduceOnly bool, price float64) error {
	dir := 1.0
	if side == exchange.Sell {
		dir = -1
	}

	closed := 0.0
	if e.pos*dir < 0 {
		closed = math.Min(qty, math.Abs(e.pos))
		released := e.posMargin * closed / math.Abs(e.pos)
		e.posMargin -= released
		e.free += released
		e.pos += dir * closed
		qty -= closed
		if math.Abs(e.pos) < epsilon {
			e.pos = 0
			e.free += e.posMargin
			e.posMargin = 0
			e.trailing = nil
		}
	}

	if reduceOnly {
		if closed == 0 {
			return ErrNothingToReduce
		}
		return nil
	}
	if qty <= 0 {
		return nil
	}

	need := qty / (price * e.leverage)
	if need > e.free {
		qty = math.Floor(e.free * price * e.leverage)
		need = qty / (price * e.leverage)
	}
	if qty <= 0 {
		if closed == 0 {
			return ErrInsufficientMargin
		}
		return nil
	}
	e.free -= need
	e.posMargin += need
	e.pos += dir * qty
	return nil
}
