package history

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sink persists or forwards history entries.
type Sink interface {
	Name() string
	Write(ctx context.Context, e Entry) error
}

// MetricsInterface defines the metrics methods needed by the recorder
type MetricsInterface interface {
	SinkFailureInc(sink string)
}

const sinkTimeout = 10 * time.Second

// Recorder delivers entries to every sink from a single background
// goroutine. Record never blocks.
type Recorder struct {
	sinks   []Sink
	entries chan Entry
	metrics MetricsInterface
	timeout time.Duration

	done chan struct{}
}

func NewRecorder(buffer int, sinks ...Sink) *Recorder {
	if buffer <= 0 {
		buffer = 64
	}
	return &Recorder{
		sinks:   sinks,
		entries: make(chan Entry, buffer),
		timeout: sinkTimeout,
		done:    make(chan struct{}),
	}
}

// SetMetrics sets the metrics interface for the recorder
func (r *Recorder) SetMetrics(m MetricsInterface) {
	r.metrics = m
}

// Sinks returns the names of the configured sinks.
func (r *Recorder) Sinks() []string {
	names := make([]string, 0, len(r.sinks))
	for _, s := range r.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Record queues e for delivery. It reports false when the buffer is full
// and the entry was dropped.
func (r *Recorder) Record(e Entry) bool {
	if len(r.sinks) == 0 {
		return true
	}
	select {
	case r.entries <- e:
		return true
	default:
		log.Warn().Str("action", e.Action).Str("outcome", e.Outcome).Msg("history buffer full, entry dropped")
		r.failed("buffer")
		return false
	}
}

// Run delivers entries until ctx is cancelled, then flushes whatever is
// still buffered.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case e := <-r.entries:
			r.deliver(context.Background(), e)
		}
	}
}

// Done is closed once Run has returned.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

func (r *Recorder) flush() {
	for {
		select {
		case e := <-r.entries:
			r.deliver(context.Background(), e)
		default:
			return
		}
	}
}

func (r *Recorder) deliver(parent context.Context, e Entry) {
	for _, s := range r.sinks {
		ctx, cancel := context.WithTimeout(parent, r.timeout)
		err := s.Write(ctx, e)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("sink", s.Name()).Str("action", e.Action).Msg("history sink write failed")
			r.failed(s.Name())
		}
	}
}

func (r *Recorder) failed(sink string) {
	if r.metrics != nil {
		r.metrics.SinkFailureInc(sink)
	}
}
