package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MetricsInterface defines the metrics methods needed by the order tracker
type MetricsInterface interface {
	ExchangeRequestObserve(op string, seconds float64)
	ExchangeTimeoutsInc()
	OrderPlacedInc(side, orderType string)
	OrderRejectedInc()
}

// OrderStatus represents the status of a tracked order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusTimeout   OrderStatus = "TIMEOUT"
)

const defaultHistoryLimit = 50

// Tracker wraps a Client, tagging every order with a client order ID,
// timing every request and keeping a bounded history of recent orders.
type Tracker struct {
	mu      sync.RWMutex
	client  Client
	orders  []*OrderRecord
	limit   int
	metrics MetricsInterface
}

var _ Client = (*Tracker)(nil)

// NewTracker creates a tracker around client.
func NewTracker(client Client, historyLimit int) *Tracker {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Tracker{
		client: client,
		limit:  historyLimit,
	}
}

// SetMetrics sets the metrics interface for reporting
func (t *Tracker) SetMetrics(metrics MetricsInterface) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics = metrics
}

func (t *Tracker) observe(op string, start time.Time, err error) {
	t.mu.RLock()
	metrics := t.metrics
	t.mu.RUnlock()
	if metrics == nil {
		return
	}
	metrics.ExchangeRequestObserve(op, time.Since(start).Seconds())
	if errors.Is(err, ErrTimeout) {
		metrics.ExchangeTimeoutsInc()
	}
}

func (t *Tracker) FetchBalance(ctx context.Context, coin string) (Balance, error) {
	start := time.Now()
	b, err := t.client.FetchBalance(ctx, coin)
	t.observe("fetch_balance", start, err)
	return b, err
}

func (t *Tracker) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	start := time.Now()
	tk, err := t.client.FetchTicker(ctx, symbol)
	t.observe("fetch_ticker", start, err)
	return tk, err
}

// CreateOrder places the order and records its outcome.
func (t *Tracker) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.New().String()
	}

	start := time.Now()
	rec := &OrderRecord{
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Qty:           req.Qty,
		Price:         req.Price,
		ReduceOnly:    req.ReduceOnly,
		Status:        OrderStatusPending,
		SubmittedAt:   start,
	}
	t.append(rec)

	res, err := t.client.CreateOrder(ctx, req)
	t.observe("create_order", start, err)

	t.mu.Lock()
	rec.Latency = time.Since(start)
	metrics := t.metrics
	switch {
	case errors.Is(err, ErrTimeout):
		rec.Status = OrderStatusTimeout
		rec.Error = err.Error()
	case err != nil:
		rec.Status = OrderStatusRejected
		rec.Error = err.Error()
	default:
		rec.Status = OrderStatusOpen
		rec.OrderID = res.OrderID
	}
	t.mu.Unlock()

	if err != nil {
		if metrics != nil {
			metrics.OrderRejectedInc()
		}
		return nil, fmt.Errorf("place %s %s %s: %w", req.Type, req.Side, req.Qty, err)
	}
	if metrics != nil {
		metrics.OrderPlacedInc(string(req.Side), string(req.Type))
	}

	log.Debug().
		Str("client_order_id", req.ClientOrderID).
		Str("order_id", res.OrderID).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Str("type", string(req.Type)).
		Str("qty", req.Qty).
		Dur("latency", rec.Latency).
		Msg("order placed")

	return res, nil
}

// CancelAllOrders cancels every open order for symbol. Resting limit orders
// known to the tracker are marked cancelled on success.
func (t *Tracker) CancelAllOrders(ctx context.Context, symbol string) error {
	start := time.Now()
	err := t.client.CancelAllOrders(ctx, symbol)
	t.observe("cancel_all", start, err)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, o := range t.orders {
		if o.Symbol == symbol && o.Type == Limit && o.Status == OrderStatusOpen {
			o.Status = OrderStatusCancelled
		}
	}
	return nil
}

func (t *Tracker) SetTrailingStop(ctx context.Context, req TrailingStopRequest) error {
	start := time.Now()
	err := t.client.SetTrailingStop(ctx, req)
	t.observe("trailing_stop", start, err)
	return err
}

func (t *Tracker) append(rec *OrderRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orders = append(t.orders, rec)
	if len(t.orders) > t.limit {
		t.orders = t.orders[len(t.orders)-t.limit:]
	}
}

// RecentOrders returns a copy of the tracked orders, oldest first.
func (t *Tracker) RecentOrders() []OrderRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]OrderRecord, len(t.orders))
	for i, o := range t.orders {
		out[i] = *o
	}
	return out
}

// OpenOrders returns tracked orders still believed to be resting.
func (t *Tracker) OpenOrders() []OrderRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	open := make([]OrderRecord, 0)
	for _, o := range t.orders {
		if o.Status == OrderStatusOpen && o.Type == Limit {
			open = append(open, *o)
		}
	}
	return open
}
