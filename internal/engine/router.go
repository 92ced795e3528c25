package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/joelsfoster/gizmo/internal/common"
	"github.com/joelsfoster/gizmo/internal/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Execute runs the pipeline for one trade signal. It never returns an
// error: failures are reported step by step in the Result.
func (e *Engine) Execute(ctx context.Context, t signal.Trade) Result {
	res := Result{
		Action:    t.Action,
		OrderType: t.OrderType,
		StartedAt: time.Now(),
	}
	e.route(ctx, t, &res)
	e.finish(&res)
	return res
}

func (e *Engine) route(ctx context.Context, t signal.Trade, res *Result) {
	switch t.Action {
	case common.ActionSetTrailingStop:
		e.runTrailingStop(ctx, t, res)
		return
	case common.ActionLongEntry, common.ActionShortEntry,
		common.ActionLongExit, common.ActionShortExit,
		common.ActionReverseShortToLong, common.ActionReverseLongToShort:
	default:
		res.end(OutcomeRejected, fmt.Errorf("%w: %q", ErrUnknownAction, t.Action))
		return
	}

	dir := t.Direction()
	var suppressed error
	e.update(func(s *State) {
		if t.CurrentDirection != signal.None {
			s.DirectionLock = t.CurrentDirection
		}
		switch {
		case !s.ShouldExecute(t.Action, t.OverrideRepeat):
			suppressed = fmt.Errorf("%w: %s", ErrRepeatSuppressed, t.Action)
		case s.Locked(dir):
			suppressed = fmt.Errorf("%w to %s", ErrDirectionLocked, s.DirectionLock)
		case dir != signal.None && !s.Gate.Admits(dir):
			suppressed = fmt.Errorf("%w: gate %s", ErrGateSuppressed, s.Gate.Phase())
		default:
			// Recorded before the pipeline so a redelivery cannot run twice.
			s.LastAction = t.Action
		}
	})
	if suppressed != nil {
		res.end(OutcomeSuppressed, suppressed)
		return
	}

	switch t.Action {
	case common.ActionLongEntry:
		e.runEntry(ctx, t, signal.Long, res, false)
	case common.ActionShortEntry:
		e.runEntry(ctx, t, signal.Short, res, false)
	case common.ActionLongExit:
		e.runExit(ctx, t, signal.Long, res)
	case common.ActionShortExit:
		e.runExit(ctx, t, signal.Short, res)
	case common.ActionReverseShortToLong:
		e.runReversal(ctx, t, signal.Long, res)
	case common.ActionReverseLongToShort:
		e.runReversal(ctx, t, signal.Short, res)
	}
}

// runEntry opens dir: [cancel stale] -> snapshot -> size -> place ->
// [wait, cancel, classify] -> trailing stop -> ladder.
func (e *Engine) runEntry(ctx context.Context, t signal.Trade, dir signal.Direction, res *Result, reversal bool) {
	if t.OrderType == signal.Limit && !reversal {
		e.cancelOpen(ctx, res, "cancel_stale_orders")
	}

	snap, err := e.Snapshot(ctx)
	if err != nil {
		res.fail("snapshot", err)
		res.end(OutcomeFailed, err)
		return
	}
	res.observe(snap)
	wasOpen := snap.Open()

	ref := snap
	if t.OrderType == signal.Limit {
		filled, priced, ok := e.limitEntry(ctx, t, dir, snap, res)
		if !ok {
			return
		}
		if !filled {
			res.end(OutcomeUnfilled, nil)
			return
		}
		ref = priced
	} else if !e.marketEntry(ctx, t, dir, snap, res, reversal) {
		return
	}

	// Confirmed: only now is the direction recorded and the gate consumed.
	e.update(func(s *State) {
		s.LastDirection = dir
		s.Gate.Consume(dir)
	})

	e.protect(ctx, t, dir, ref.Price, wasOpen && !reversal, res)
}

// runExit closes the position in direction closing; a flat account is a
// no-op.
func (e *Engine) runExit(ctx context.Context, t signal.Trade, closing signal.Direction, res *Result) {
	if t.OrderType == signal.Limit {
		e.cancelOpen(ctx, res, "cancel_stale_orders")
	}
	closed, ok := e.closePosition(ctx, t, closing, res)
	if ok && !closed {
		res.end(OutcomeNoop, nil)
	}
}

// runReversal flips into dir. Market reversals are one order sized to
// close and reopen. Limit reversals close at market first, then run a
// fresh entry, since a limit fill price is unknown up front.
func (e *Engine) runReversal(ctx context.Context, t signal.Trade, dir signal.Direction, res *Result) {
	if t.OrderType == signal.Limit {
		e.cancelOpen(ctx, res, "cancel_stale_orders")
		if _, ok := e.closePosition(ctx, t, dir.Opposite(), res); !ok {
			return
		}
	}
	e.runEntry(ctx, t, dir, res, true)
}

// runTrailingStop arms a trailing stop on the open position using the last
// confirmed direction. It does not touch the repeat guard.
func (e *Engine) runTrailingStop(ctx context.Context, t signal.Trade, res *Result) {
	if t.TrailingStopPct <= 0 {
		res.skip("trailing_stop", "no trailing stop percent")
		res.end(OutcomeNoop, nil)
		return
	}
	dir := e.State().LastDirection
	if dir == signal.None {
		res.skip("trailing_stop", "no confirmed direction")
		res.end(OutcomeNoop, nil)
		return
	}

	armed, err := e.armTrailingStop(ctx, t.TrailingStopPct, dir, 0, res)
	switch {
	case err != nil:
		res.end(OutcomeFailed, err)
	case !armed:
		res.end(OutcomeNoop, nil)
	}
}

func (e *Engine) finish(res *Result) {
	if res.Outcome == "" {
		if res.HasFailures() {
			res.end(OutcomeDegraded, nil)
		} else {
			res.end(OutcomeExecuted, nil)
		}
	}
	st := e.State()
	res.Direction = st.LastDirection
	res.Duration = time.Since(res.StartedAt)

	var ev *zerolog.Event
	switch res.Outcome {
	case OutcomeFailed:
		ev = log.Error()
	case OutcomeDegraded, OutcomeRejected:
		ev = log.Warn()
	default:
		ev = log.Info()
	}
	ev.Str("action", res.Action).
		Str("order_type", string(res.OrderType)).
		Str("outcome", string(res.Outcome)).
		Str("direction", string(res.Direction)).
		Str("gate", string(st.Gate.Phase())).
		Int("steps", len(res.Steps)).
		Dur("took", res.Duration).
		Err(res.Err).
		Msg("Signal handled")

	if e.metrics != nil {
		e.metrics.ActionObserve(res.Action, string(res.Outcome), res.Duration.Seconds())
		e.metrics.GateStateSet(string(st.Gate.Phase()))
		if res.Snapshot != nil {
			e.metrics.PositionOpenSet(res.Snapshot.Open())
		}
	}
}
