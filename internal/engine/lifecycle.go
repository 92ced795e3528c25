package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/joelsfoster/gizmo/internal/exchange"
	"github.com/joelsfoster/gizmo/internal/signal"

	"github.com/rs/zerolog/log"
)

// cancelTimeout bounds the cancel issued after an interrupted fill wait.
const cancelTimeout = 5 * time.Second

func sideFor(dir signal.Direction) exchange.Side {
	if dir == signal.Short {
		return exchange.Sell
	}
	return exchange.Buy
}

// cancelOpen cancels every open order for the instrument. Failure is
// treated as nothing to cancel.
func (e *Engine) cancelOpen(ctx context.Context, res *Result, step string) {
	if err := e.client.CancelAllOrders(ctx, e.config.Symbol); err != nil {
		err = fmt.Errorf("%w: %w", ErrCancelFailed, err)
		log.Debug().Err(err).Str("step", step).Msg("Nothing to cancel")
		res.Steps = append(res.Steps, Step{
			Name:   step,
			Status: StepSkipped,
			Detail: "nothing to cancel",
			Error:  err.Error(),
			Err:    err,
		})
		return
	}
	res.ok(step, "")
}

// marketEntry places a single market order toward dir. A reversal with a
// position open is sized to close and reopen in one order and carries no
// TP/SL. Returns false when nothing was placed.
func (e *Engine) marketEntry(ctx context.Context, t signal.Trade, dir signal.Direction, snap Snapshot, res *Result, reversal bool) bool {
	req := exchange.OrderRequest{
		Symbol: e.config.Symbol,
		Side:   sideFor(dir),
		Type:   exchange.Market,
	}

	qty := e.sizer.SizeEntry(snap.FreeQty, snap.Price, t.Leverage)
	if reversal && snap.Open() {
		qty = e.sizer.SizeReversal(snap.UsedQty, snap.FreeQty, snap.Price, t.Leverage)
	} else {
		req.TakeProfit, req.StopLoss = e.inlineProtection(t, dir, snap.Price)
	}
	if !qty.IsPositive() {
		res.skip("place_entry", "no free margin")
		res.end(OutcomeNoop, nil)
		return false
	}
	req.Qty = qty.String()

	if _, err := e.client.CreateOrder(ctx, req); err != nil {
		err = orderError("place market entry", err)
		log.Error().Err(err).Str("side", string(req.Side)).Str("qty", req.Qty).Msg("Market entry failed, unwinding")
		res.fail("place_entry", err)
		e.unwind(ctx, t, dir, res)
		res.end(OutcomeFailed, err)
		return false
	}

	res.ok("place_entry", fmt.Sprintf("market %s %s tp=%s sl=%s", req.Side, req.Qty, req.TakeProfit, req.StopLoss))
	return true
}

// limitEntry runs place, wait, cancel and classify up to
// t.LimitEntryAttempts times, re-reading the price for every attempt.
// It returns whether the entry filled, the snapshot the filling attempt
// was priced from, and false when the pipeline must stop.
func (e *Engine) limitEntry(ctx context.Context, t signal.Trade, dir signal.Direction, first Snapshot, res *Result) (bool, Snapshot, bool) {
	attempts := t.LimitEntryAttempts
	if attempts < 1 || t.LimitCancelAfter <= 0 {
		attempts = 1
	}

	snap := first
	for i := 1; i <= attempts; i++ {
		if i > 1 {
			s, err := e.Snapshot(ctx)
			if err != nil {
				res.fail("snapshot", err)
				res.end(OutcomeFailed, err)
				return false, snap, false
			}
			snap = s
			res.observe(s)
		}

		qty := e.sizer.SizeEntry(snap.FreeQty, snap.Price, t.Leverage)
		if !qty.IsPositive() {
			res.skip("place_entry", "no free margin")
			if i == 1 {
				res.end(OutcomeNoop, nil)
				return false, snap, false
			}
			return e.sizer.Filled(snap), snap, true
		}

		factor := below(t.LimitBacktracePct)
		if dir == signal.Short {
			factor = above(t.LimitBacktracePct)
		}
		req := exchange.OrderRequest{
			Symbol: e.config.Symbol,
			Side:   sideFor(dir),
			Type:   exchange.Limit,
			Qty:    qty.String(),
			Price:  e.sizer.Price(snap.Price, factor),
		}
		if _, err := e.client.CreateOrder(ctx, req); err != nil {
			err = orderError("place limit entry", err)
			log.Error().Err(err).Int("attempt", i).Msg("Limit entry failed")
			res.fail("place_entry", err)
			res.end(OutcomeFailed, err)
			return false, snap, false
		}
		res.ok("place_entry", fmt.Sprintf("attempt %d: limit %s %s @ %s", i, req.Side, req.Qty, req.Price))

		// Without a fill window the order is left resting. Its reserved
		// margin already counts as used, so the balance cannot tell a fill
		// apart and the entry stays unconfirmed.
		if t.LimitCancelAfter <= 0 {
			res.skip("classify", "resting, no fill window")
			log.Info().Str("price", req.Price).Msg("Limit entry left resting")
			return false, snap, true
		}

		if err := e.sleep(ctx, t.LimitCancelAfter); err != nil {
			res.fail("fill_wait", err)
			// The order must not outlive the aborted wait.
			cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
			e.cancelOpen(cctx, res, "cancel_unfilled")
			cancel()
			res.end(OutcomeFailed, err)
			return false, snap, false
		}
		e.cancelOpen(ctx, res, "cancel_unfilled")

		after, err := e.Snapshot(ctx)
		if err != nil {
			res.fail("classify", err)
			res.end(OutcomeFailed, err)
			return false, snap, false
		}
		res.observe(after)

		if e.sizer.Filled(after) {
			res.ok("classify", "filled")
			return true, snap, true
		}
		res.ok("classify", "unfilled")
		log.Info().Int("attempt", i).Int("attempts", attempts).Msg("Limit entry unfilled")
	}
	return false, snap, true
}

// unwind is the best-effort emergency exit after a failed market entry:
// whatever is left of the opposite position is closed reduce-only.
func (e *Engine) unwind(ctx context.Context, t signal.Trade, dir signal.Direction, res *Result) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		res.fail("emergency_exit", err)
		return
	}
	res.observe(snap)
	if !snap.Open() {
		res.skip("emergency_exit", "no open position")
		return
	}

	req := exchange.OrderRequest{
		Symbol:         e.config.Symbol,
		Side:           sideFor(dir),
		Type:           exchange.Market,
		Qty:            e.sizer.SizeFullExit(snap.UsedQty, snap.Price, t.Leverage).String(),
		ReduceOnly:     true,
		CloseOnTrigger: true,
	}
	if _, err := e.client.CreateOrder(ctx, req); err != nil {
		err = orderError("emergency exit", err)
		log.Error().Err(err).Msg("Emergency exit failed, position may be partially reversed")
		res.fail("emergency_exit", err)
		return
	}
	res.ok("emergency_exit", fmt.Sprintf("market %s %s reduce-only", req.Side, req.Qty))
}

// closePosition closes the whole position in direction closing with a
// reduce-only market order. It reports whether an order was placed and
// false as second value when the pipeline must stop.
func (e *Engine) closePosition(ctx context.Context, t signal.Trade, closing signal.Direction, res *Result) (bool, bool) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		res.fail("snapshot", err)
		res.end(OutcomeFailed, err)
		return false, false
	}
	res.observe(snap)
	if !snap.Open() {
		res.skip("close_position", "no open position")
		return false, true
	}

	req := exchange.OrderRequest{
		Symbol:         e.config.Symbol,
		Side:           sideFor(closing.Opposite()),
		Type:           exchange.Market,
		Qty:            e.sizer.SizeFullExit(snap.UsedQty, snap.Price, t.Leverage).String(),
		ReduceOnly:     true,
		CloseOnTrigger: true,
	}
	if _, err := e.client.CreateOrder(ctx, req); err != nil {
		err = orderError("close position", err)
		log.Error().Err(err).Str("closing", string(closing)).Msg("Exit failed")
		res.fail("close_position", err)
		res.end(OutcomeFailed, err)
		return false, false
	}
	res.ok("close_position", fmt.Sprintf("market %s %s reduce-only", req.Side, req.Qty))

	e.update(func(s *State) { s.LastDirection = signal.None })
	return true, true
}
