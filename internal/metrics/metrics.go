// Package metrics provides Prometheus metrics collection for the execution
// engine. It defines the webhook, pipeline, order and exchange metrics that
// are exposed via the Prometheus metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Inbound metrics
	WebhooksTotal *prometheus.CounterVec // Webhook requests by endpoint and HTTP status
	AuthFailures  prometheus.Counter     // Requests rejected for a bad auth_id
	SignalDropped prometheus.Counter     // Signals dropped because the worker queue was full

	// Pipeline metrics
	ActionsTotal       *prometheus.CounterVec   // Pipelines run by action and outcome
	PipelineDuration   *prometheus.HistogramVec // Pipeline wall time by action
	ProtectiveFailures *prometheus.CounterVec   // Failed protective steps by kind
	PositionOpen       prometheus.Gauge         // 1 while the last snapshot showed used margin
	GateState          *prometheus.GaugeVec     // 1 for the current trade gate phase

	// Exchange metrics
	OrdersTotal             *prometheus.CounterVec   // Orders accepted by the exchange by side and type
	OrderRejections         prometheus.Counter       // Orders the exchange rejected
	ExchangeRequestDuration *prometheus.HistogramVec // Exchange call latency by operation
	ExchangeTimeouts        prometheus.Counter       // Exchange calls that hit the request timeout

	// History metrics
	SinkFailures *prometheus.CounterVec // Failed history writes by sink
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		WebhooksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhooks_total",
			Help: "Total number of webhook requests by endpoint and status",
		}, []string{"endpoint", "status"}),
		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "webhook_auth_failures_total",
			Help: "Total number of webhook requests with a bad auth_id",
		}),
		SignalDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "signals_dropped_total",
			Help: "Total number of signals dropped on a full queue",
		}),
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "actions_total",
			Help: "Total number of pipelines run by action and outcome",
		}, []string{"action", "outcome"}),
		PipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_duration_seconds",
			Help:    "Duration of action pipelines in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}, []string{"action"}),
		ProtectiveFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "protective_failures_total",
			Help: "Total number of failed protective steps by kind",
		}, []string{"kind"}),
		PositionOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "position_open",
			Help: "Whether the last snapshot showed an open position",
		}),
		GateState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trade_gate_state",
			Help: "Current trade gate phase (1 for the active phase)",
		}, []string{"phase"}),
		OrdersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Total number of orders placed by side and type",
		}, []string{"side", "type"}),
		OrderRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "order_rejections_total",
			Help: "Total number of orders rejected by the exchange",
		}),
		ExchangeRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exchange_request_duration_seconds",
			Help:    "Duration of exchange requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"op"}),
		ExchangeTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "exchange_timeouts_total",
			Help: "Total number of exchange requests that timed out",
		}),
		SinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "history_sink_failures_total",
			Help: "Total number of failed history writes by sink",
		}, []string{"sink"}),
	}
}

// SetGatePhase marks phase as the active gate phase and clears the rest.
func (m *Metrics) SetGatePhase(phase string) {
	m.GateState.Reset()
	m.GateState.WithLabelValues(phase).Set(1)
}
