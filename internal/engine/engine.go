// Package engine turns authenticated trade signals into exchange orders.
//
// An Engine owns the State of one instrument. It is not safe for
// concurrent pipelines: run it behind a Worker, which serializes every
// signal for the instrument.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/joelsfoster/gizmo/internal/cfg"
	"github.com/joelsfoster/gizmo/internal/exchange"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines the metrics methods needed by the engine
type MetricsInterface interface {
	ActionObserve(action, outcome string, seconds float64)
	ProtectiveFailureInc(kind string)
	PositionOpenSet(open bool)
	GateStateSet(phase string)
	SignalDroppedInc()
}

type Config struct {
	Symbol        string
	MarginCoin    string
	MarginIsQuote bool
	Sizing        cfg.Sizing
}

// ConfigFrom derives the engine configuration from settings.
func ConfigFrom(s cfg.Settings) Config {
	return Config{
		Symbol:        s.Symbol(),
		MarginCoin:    s.MarginCoin(),
		MarginIsQuote: s.MarginAsset == "quote",
		Sizing:        s.Sizing,
	}
}

type Engine struct {
	client  exchange.Client
	config  Config
	sizer   Sizer
	metrics MetricsInterface
	sleep   func(ctx context.Context, d time.Duration) error

	mu    sync.RWMutex
	state State
}

func New(client exchange.Client, c Config) *Engine {
	return &Engine{
		client: client,
		config: c,
		sizer:  NewSizer(c.Sizing),
		sleep:  sleepContext,
	}
}

// SetMetrics sets the metrics interface for reporting
func (e *Engine) SetMetrics(m MetricsInterface) {
	e.metrics = m
}

// State returns a copy of the current engine state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) update(fn func(s *State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.state)
}

// ApplyBand feeds a band signal into the admission gate.
func (e *Engine) ApplyBand(kind string) error {
	var (
		err   error
		phase GatePhase
		gate  Gate
	)
	e.update(func(s *State) {
		err = s.Gate.Apply(kind)
		phase = s.Gate.Phase()
		gate = s.Gate
	})
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring band signal")
		return err
	}

	log.Info().
		Str("signal", kind).
		Str("phase", string(phase)).
		Str("trade", string(gate.Trade)).
		Str("long", string(gate.Long)).
		Str("short", string(gate.Short)).
		Msg("Band gate updated")

	if e.metrics != nil {
		e.metrics.GateStateSet(string(phase))
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
