package bybit

import (
	"context"

	"github.com/joelsfoster/gizmo/internal/exchange"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// CancelAllOrders cancels every open order for symbol, including resting
// ladder take-profits.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	payload := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}
	if _, err := c.doRequest(ctx, resty.MethodPost, "/v5/order/cancel-all", nil, payload); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cancel open orders")
		return err
	}
	return nil
}

// SetTrailingStop arms a trailing stop on the whole one-way position.
func (c *Client) SetTrailingStop(ctx context.Context, req exchange.TrailingStopRequest) error {
	payload := map[string]interface{}{
		"category":     c.category,
		"symbol":       req.Symbol,
		"trailingStop": req.Distance,
		"tpslMode":     "Full",
		"positionIdx":  0,
	}
	if _, err := c.doRequest(ctx, resty.MethodPost, "/v5/position/trading-stop", nil, payload); err != nil {
		log.Warn().Err(err).Str("symbol", req.Symbol).Msg("Failed to set trailing stop")
		return err
	}
	return nil
}
