package engine

import (
	"context"
	"time"
)

// Snapshot is one consistent read of balances and price. Balances are in
// base units. Snapshots are never reused across decisions.
type Snapshot struct {
	FreeQty float64   `json:"freeQty"`
	UsedQty float64   `json:"usedQty"`
	Price   float64   `json:"price"`
	TakenAt time.Time `json:"takenAt"`
}

// Open reports whether the exchange shows margin in use.
func (s Snapshot) Open() bool {
	return s.UsedQty > 0
}

// Snapshot reads balance and last price from the exchange.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	bal, err := e.client.FetchBalance(ctx, e.config.MarginCoin)
	if err != nil {
		return Snapshot{}, readError("fetch balance", err)
	}
	tk, err := e.client.FetchTicker(ctx, e.config.Symbol)
	if err != nil {
		return Snapshot{}, readError("fetch ticker", err)
	}

	s := Snapshot{
		FreeQty: bal.Free,
		UsedQty: bal.Used,
		Price:   tk.LastPrice,
		TakenAt: time.Now(),
	}
	if e.config.MarginIsQuote && tk.LastPrice > 0 {
		s.FreeQty /= tk.LastPrice
		s.UsedQty /= tk.LastPrice
	}
	return s, nil
}
