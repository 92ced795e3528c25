package paper

import (
	"context"
	"time"

	"github.com/joelsfoster/gizmo/internal/exchange"

	"github.com/rs/zerolog/log"
)

// TickerSource supplies the market price the paper exchange follows.
type TickerSource interface {
	FetchTicker(ctx context.Context, symbol string) (exchange.Ticker, error)
}

// Follow polls src every interval and moves the paper price to the last
// traded price, filling resting orders the move crosses. It returns when
// ctx is done. Failed polls keep the previous price.
func (e *Exchange) Follow(ctx context.Context, src TickerSource, symbol string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		e.poll(ctx, src, symbol)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *Exchange) poll(ctx context.Context, src TickerSource, symbol string) {
	tk, err := src.FetchTicker(ctx, symbol)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Paper price feed poll failed")
		}
		return
	}
	if tk.LastPrice <= 0 {
		return
	}
	e.SetPrice(tk.LastPrice)
}
