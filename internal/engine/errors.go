package engine

import (
	"errors"
	"fmt"

	"github.com/joelsfoster/gizmo/internal/exchange"
)

var (
	// Fatal to the current pipeline.
	ErrExchangeUnavailable = errors.New("exchange unavailable")
	ErrExchangeTimeout     = errors.New("exchange timeout")
	ErrOrderRejected       = errors.New("order rejected")

	// Logged and recorded; the pipeline continues.
	ErrCancelFailed         = errors.New("cancel failed")
	ErrProtectiveExitFailed = errors.New("protective exit failed")

	// Expected control flow; the pipeline does not run.
	ErrDirectionLocked  = errors.New("direction locked")
	ErrRepeatSuppressed = errors.New("repeat suppressed")
	ErrGateSuppressed   = errors.New("gate suppressed")
	ErrUnknownAction    = errors.New("unknown action")
)

// readError classifies a failed balance or ticker read.
func readError(op string, err error) error {
	if errors.Is(err, exchange.ErrTimeout) {
		return fmt.Errorf("%s: %w: %w", op, ErrExchangeTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrExchangeUnavailable, err)
}

// orderError classifies a failed order placement.
func orderError(op string, err error) error {
	if errors.Is(err, exchange.ErrTimeout) {
		return fmt.Errorf("%s: %w: %w", op, ErrExchangeTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrOrderRejected, err)
}
