// Package exchange defines the capability interface the execution engine
// uses to talk to a derivatives exchange, together with the request and
// response types shared by every implementation.
//
// The engine never knows which exchange it is driving: Bybit, the paper
// simulator and the tracking decorator all satisfy Client.
package exchange

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned (wrapped) when an exchange request exceeds the
// configured REST timeout.
var ErrTimeout = errors.New("exchange request timed out")

// Side is the order side.
type Side string

const (
	Buy  Side = "Buy"
	Sell Side = "Sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType is market or limit.
type OrderType string

const (
	Market OrderType = "Market"
	Limit  OrderType = "Limit"
)

// Balance is the free and used amount of a single coin.
type Balance struct {
	Coin string
	Free float64
	Used float64
}

// Ticker is the latest trade price for a symbol.
type Ticker struct {
	Symbol    string
	LastPrice float64
}

// OrderRequest describes a single order. Zero TakeProfit/StopLoss mean
// "not attached".
type OrderRequest struct {
	Symbol         string
	Side           Side
	Type           OrderType
	Qty            string
	Price          string
	TakeProfit     string
	StopLoss       string
	ReduceOnly     bool
	CloseOnTrigger bool
	ClientOrderID  string
}

// OrderResult is the exchange acknowledgement of a placed order.
type OrderResult struct {
	OrderID       string
	ClientOrderID string
}

// TrailingStopRequest arms an exchange-native trailing stop on the open
// position. Distance is in price units.
type TrailingStopRequest struct {
	Symbol   string
	Side     Side
	Distance string
}

// Client is everything the engine needs from an exchange.
type Client interface {
	FetchBalance(ctx context.Context, coin string) (Balance, error)
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	CancelAllOrders(ctx context.Context, symbol string) error
	SetTrailingStop(ctx context.Context, req TrailingStopRequest) error
}

// OrderRecord is a placed or rejected order as seen by the Tracker.
type OrderRecord struct {
	ClientOrderID string        `json:"clientOrderId"`
	OrderID       string        `json:"orderId,omitempty"`
	Symbol        string        `json:"symbol"`
	Side          Side          `json:"side"`
	Type          OrderType     `json:"type"`
	Qty           string        `json:"qty"`
	Price         string        `json:"price,omitempty"`
	ReduceOnly    bool          `json:"reduceOnly"`
	Status        OrderStatus   `json:"status"`
	Error         string        `json:"error,omitempty"`
	SubmittedAt   time.Time     `json:"submittedAt"`
	Latency       time.Duration `json:"latency"`
}
