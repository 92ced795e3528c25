package paper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joelsfoster/gizmo/internal/exchange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedTicker struct {
	mu     sync.Mutex
	prices []float64
	calls  int
}

func (s *scriptedTicker) FetchTicker(_ context.Context, symbol string) (exchange.Ticker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.prices) == 0 {
		return exchange.Ticker{}, errors.New("no price")
	}
	p := s.prices[0]
	if len(s.prices) > 1 {
		s.prices = s.prices[1:]
	}
	return exchange.Ticker{Symbol: symbol, LastPrice: p}, nil
}

func (s *scriptedTicker) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestFollowFillsRestingOrders(t *testing.T) {
	ex := newExchange()
	_, err := ex.CreateOrder(context.Background(), exchange.OrderRequest{
		Symbol: "BTCUSD", Side: exchange.Buy, Type: exchange.Limit, Qty: "2970", Price: "29700",
	})
	require.NoError(t, err)

	src := &scriptedTicker{prices: []float64{29800, 29600}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ex.Follow(ctx, src, "BTCUSD", 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return ex.Position() == 2970 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, ex.OpenOrders())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}

func TestFollowKeepsPriceOnFailedPoll(t *testing.T) {
	ex := newExchange()
	src := &scriptedTicker{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ex.Follow(ctx, src, "BTCUSD", 10*time.Millisecond)

	assert.Eventually(t, func() bool { return src.count() >= 2 }, time.Second, 5*time.Millisecond)
	tk, err := ex.FetchTicker(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, 30000.0, tk.LastPrice)
}
