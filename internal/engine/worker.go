package engine

import (
	"context"
	"time"

	"github.com/joelsfoster/gizmo/internal/common"
	"github.com/joelsfoster/gizmo/internal/signal"

	"github.com/rs/zerolog/log"
)

// ResultHandler receives every executed trade signal and its result.
type ResultHandler func(t signal.Trade, res Result)

type job struct {
	trade *signal.Trade
	band  string
}

// Worker serializes every signal for one instrument onto a single
// goroutine that owns the engine. Submissions never block: a full queue
// drops the signal.
type Worker struct {
	engine   *Engine
	queue    chan job
	grace    time.Duration
	onResult ResultHandler

	quit chan struct{}
	done chan struct{}
}

func NewWorker(e *Engine, queueSize int, grace time.Duration) *Worker {
	if queueSize <= 0 {
		queueSize = common.DefaultQueueSize
	}
	return &Worker{
		engine: e,
		queue:  make(chan job, queueSize),
		grace:  grace,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// OnResult registers the handler called after each trade signal.
func (w *Worker) OnResult(h ResultHandler) {
	w.onResult = h
}

// Engine returns the engine owned by the worker.
func (w *Worker) Engine() *Engine {
	return w.engine
}

// Run processes signals until ctx is cancelled. Cancelling ctx also cuts
// short a fill wait in progress; queued signals are discarded.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	defer close(w.quit)

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-w.queue:
			w.handle(ctx, j)
		}
	}
}

// Done is closed once Run has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) handle(ctx context.Context, j job) {
	if j.trade == nil {
		_ = w.engine.ApplyBand(j.band)
		return
	}
	res := w.engine.Execute(ctx, *j.trade)
	if w.onResult != nil {
		w.onResult(*j.trade, res)
	}
}

// Submit enqueues a trade signal. set_trailing_stop is held back for the
// grace period and then queued behind whatever arrived meanwhile, so an
// entry landing at the same instant runs first. For a delayed signal the
// result only means it was accepted; it can still be dropped when the
// queue is full once the grace period ends.
func (w *Worker) Submit(t signal.Trade) bool {
	if t.Action == common.ActionSetTrailingStop && w.grace > 0 {
		go func() {
			timer := time.NewTimer(w.grace)
			defer timer.Stop()
			select {
			case <-timer.C:
				if !w.enqueue(job{trade: &t}) {
					log.Warn().
						Str("action", t.Action).
						Dur("grace", w.grace).
						Msg("Delayed signal dropped after it was accepted")
				}
			case <-w.quit:
			}
		}()
		return true
	}
	return w.enqueue(job{trade: &t})
}

// SubmitBand enqueues a band signal for the admission gate.
func (w *Worker) SubmitBand(b signal.Band) bool {
	return w.enqueue(job{band: b.Kind})
}

func (w *Worker) enqueue(j job) bool {
	select {
	case w.queue <- j:
		return true
	default:
		ev := log.Warn().Int("queue", cap(w.queue))
		if j.trade != nil {
			ev = ev.Str("action", j.trade.Action)
		} else {
			ev = ev.Str("band", j.band)
		}
		ev.Msg("Signal queue full, dropping signal")
		if w.engine.metrics != nil {
			w.engine.metrics.SignalDroppedInc()
		}
		return false
	}
}
