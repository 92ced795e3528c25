package engine

import (
	"context"
	"fmt"

	"github.com/joelsfoster/gizmo/internal/exchange"
	"github.com/joelsfoster/gizmo/internal/signal"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// inlineProtection returns the take-profit and stop-loss prices attached
// to a market entry; empty strings mean not attached.
func (e *Engine) inlineProtection(t signal.Trade, dir signal.Direction, price float64) (tp, sl string) {
	if t.TakeProfitPct > 0 {
		if dir == signal.Long {
			tp = e.sizer.Price(price, above(t.TakeProfitPct))
		} else {
			tp = e.sizer.Price(price, below(t.TakeProfitPct))
		}
	}
	if t.StopLossPct > 0 {
		if dir == signal.Long {
			sl = e.sizer.Price(price, below(t.StopLossPct))
		} else {
			sl = e.sizer.Price(price, above(t.StopLossPct))
		}
	}
	return tp, sl
}

func (e *Engine) protectiveFailure(res *Result, kind string, err error) {
	log.Warn().Err(err).Str("kind", kind).Msg("Protective exit not placed")
	res.fail(kind, err)
	if e.metrics != nil {
		e.metrics.ProtectiveFailureInc(kind)
	}
}

// protect arms the trailing stop and places the ladder after a confirmed
// entry. refPrice is the price the entry was decided at.
func (e *Engine) protect(ctx context.Context, t signal.Trade, dir signal.Direction, refPrice float64, keepLadder bool, res *Result) {
	if t.TrailingStopPct > 0 {
		_, _ = e.armTrailingStop(ctx, t.TrailingStopPct, dir, refPrice, res)
	}
	if len(t.LadderTakeProfitPcts) > 0 {
		e.placeLadder(ctx, t, dir, refPrice, keepLadder, res)
	}
}

// armTrailingStop arms the exchange trailing stop once a snapshot shows an
// open position. The distance is price*pct; a zero refPrice means the
// snapshot price.
func (e *Engine) armTrailingStop(ctx context.Context, pct float64, dir signal.Direction, refPrice float64, res *Result) (bool, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrProtectiveExitFailed, err)
		e.protectiveFailure(res, "trailing_stop", err)
		return false, err
	}
	res.observe(snap)
	if !snap.Open() {
		res.skip("trailing_stop", "no open position")
		return false, nil
	}

	price := refPrice
	if price <= 0 {
		price = snap.Price
	}
	distance := e.sizer.Price(price, decimal.NewFromFloat(pct))

	req := exchange.TrailingStopRequest{
		Symbol:   e.config.Symbol,
		Side:     sideFor(dir),
		Distance: distance,
	}
	if err := e.client.SetTrailingStop(ctx, req); err != nil {
		err = fmt.Errorf("%w: trailing stop: %w", ErrProtectiveExitFailed, err)
		e.protectiveFailure(res, "trailing_stop", err)
		return false, err
	}
	res.ok("trailing_stop", "distance "+distance)
	return true, nil
}

// placeLadder splits the open position over reduce-only limit exits at
// refPrice*(1±rung). When keepLadder is set (a same direction position was
// open before the entry) existing exits are left alone unless the signal
// explicitly asks for replacement.
func (e *Engine) placeLadder(ctx context.Context, t signal.Trade, dir signal.Direction, refPrice float64, keepLadder bool, res *Result) {
	if keepLadder && (t.OverrideLadderReplace == nil || !*t.OverrideLadderReplace) {
		res.skip("ladder", "position already open, keeping existing exits")
		return
	}

	snap, err := e.Snapshot(ctx)
	if err != nil {
		e.protectiveFailure(res, "ladder", fmt.Errorf("%w: %w", ErrProtectiveExitFailed, err))
		return
	}
	res.observe(snap)

	total := e.sizer.PositionContracts(snap.UsedQty, snap.Price, t.Leverage)
	if !total.IsPositive() {
		res.skip("ladder", "no open position")
		return
	}

	rungs := e.sizer.SplitLadder(total, len(t.LadderTakeProfitPcts))
	for i, pct := range t.LadderTakeProfitPcts {
		name := fmt.Sprintf("ladder_%d", i+1)
		if !rungs[i].IsPositive() {
			res.skip(name, "position too small for rung")
			continue
		}

		factor := above(pct)
		if dir == signal.Short {
			factor = below(pct)
		}
		req := exchange.OrderRequest{
			Symbol:         e.config.Symbol,
			Side:           sideFor(dir.Opposite()),
			Type:           exchange.Limit,
			Qty:            rungs[i].String(),
			Price:          e.sizer.Price(refPrice, factor),
			ReduceOnly:     true,
			CloseOnTrigger: true,
		}
		if _, err := e.client.CreateOrder(ctx, req); err != nil {
			e.protectiveFailure(res, name, fmt.Errorf("%w: %w", ErrProtectiveExitFailed, err))
			continue
		}
		res.ok(name, fmt.Sprintf("limit %s %s @ %s", req.Side, req.Qty, req.Price))
	}
}
