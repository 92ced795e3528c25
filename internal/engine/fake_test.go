package engine

import (
	"context"
	"sync"
	"time"

	"github.com/joelsfoster/gizmo/internal/cfg"
	"github.com/joelsfoster/gizmo/internal/exchange"
)

// fakeExchange serves fixed balances and records every request.
type fakeExchange struct {
	mu       sync.Mutex
	free     float64
	used     float64
	price    float64
	orders   []exchange.OrderRequest
	cancels  int
	trailing []exchange.TrailingStopRequest

	balanceErr error
	tickerErr  error
	cancelErr  error
	trailErr   error
	createErr  func(req exchange.OrderRequest) error
	// onCreate runs with the lock held after an order is accepted.
	onCreate func(f *fakeExchange, req exchange.OrderRequest)
}

func (f *fakeExchange) FetchBalance(_ context.Context, coin string) (exchange.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return exchange.Balance{}, f.balanceErr
	}
	return exchange.Balance{Coin: coin, Free: f.free, Used: f.used}, nil
}

func (f *fakeExchange) FetchTicker(_ context.Context, symbol string) (exchange.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tickerErr != nil {
		return exchange.Ticker{}, f.tickerErr
	}
	return exchange.Ticker{Symbol: symbol, LastPrice: f.price}, nil
}

func (f *fakeExchange) CreateOrder(_ context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		if err := f.createErr(req); err != nil {
			return nil, err
		}
	}
	f.orders = append(f.orders, req)
	if f.onCreate != nil {
		f.onCreate(f, req)
	}
	return &exchange.OrderResult{OrderID: "fake"}, nil
}

func (f *fakeExchange) CancelAllOrders(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return f.cancelErr
}

func (f *fakeExchange) SetTrailingStop(_ context.Context, req exchange.TrailingStopRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.trailErr != nil {
		return f.trailErr
	}
	f.trailing = append(f.trailing, req)
	return nil
}

func (f *fakeExchange) set(free, used float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.free = free
	f.used = used
}

func (f *fakeExchange) placed() []exchange.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]exchange.OrderRequest(nil), f.orders...)
}

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu         sync.Mutex
	outcomes   map[string]int
	protective map[string]int
	dropped    int
	open       bool
	phase      string
}

func (m *MockMetrics) ActionObserve(_, outcome string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string]int)
	}
	m.outcomes[outcome]++
}

func (m *MockMetrics) ProtectiveFailureInc(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.protective == nil {
		m.protective = make(map[string]int)
	}
	m.protective[kind]++
}

func (m *MockMetrics) PositionOpenSet(open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = open
}

func (m *MockMetrics) GateStateSet(phase string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = phase
}

func (m *MockMetrics) SignalDroppedInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped++
}

func (m *MockMetrics) droppedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

func testSizing() cfg.Sizing {
	return cfg.Sizing{
		EntryHaircut:      0.95,
		ExitOvershoot:     1.05,
		ReversalOvershoot: 1.05,
		QtyStep:           1,
		FillRatio:         0.9,
		PriceDecimals:     2,
	}
}

// newTestEngine returns an engine over f whose fill waits return at once
// after running onWait, if set.
func newTestEngine(f *fakeExchange, onWait func(d time.Duration)) (*Engine, *MockMetrics) {
	e := New(f, Config{Symbol: "BTCUSD", MarginCoin: "BTC", Sizing: testSizing()})
	m := &MockMetrics{}
	e.SetMetrics(m)
	e.sleep = func(ctx context.Context, d time.Duration) error {
		if onWait != nil {
			onWait(d)
		}
		return ctx.Err()
	}
	return e, m
}
