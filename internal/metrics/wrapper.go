package metrics

import "strconv"

// MetricsWrapper adapts Metrics to the narrow interfaces the engine, the
// exchange tracker, the webhook server and the history recorder consume.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

// Engine metrics

func (w *MetricsWrapper) ActionObserve(action, outcome string, seconds float64) {
	w.m.ActionsTotal.WithLabelValues(action, outcome).Inc()
	w.m.PipelineDuration.WithLabelValues(action).Observe(seconds)
}

func (w *MetricsWrapper) ProtectiveFailureInc(kind string) {
	w.m.ProtectiveFailures.WithLabelValues(kind).Inc()
}

func (w *MetricsWrapper) PositionOpenSet(open bool) {
	if open {
		w.m.PositionOpen.Set(1)
		return
	}
	w.m.PositionOpen.Set(0)
}

func (w *MetricsWrapper) GateStateSet(phase string) {
	w.m.SetGatePhase(phase)
}

func (w *MetricsWrapper) SignalDroppedInc() {
	w.m.SignalDropped.Inc()
}

// Exchange metrics

func (w *MetricsWrapper) ExchangeRequestObserve(op string, seconds float64) {
	w.m.ExchangeRequestDuration.WithLabelValues(op).Observe(seconds)
}

func (w *MetricsWrapper) ExchangeTimeoutsInc() {
	w.m.ExchangeTimeouts.Inc()
}

func (w *MetricsWrapper) OrderPlacedInc(side, orderType string) {
	w.m.OrdersTotal.WithLabelValues(side, orderType).Inc()
}

func (w *MetricsWrapper) OrderRejectedInc() {
	w.m.OrderRejections.Inc()
}

// Webhook metrics

func (w *MetricsWrapper) WebhookInc(endpoint string, status int) {
	w.m.WebhooksTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

func (w *MetricsWrapper) AuthFailureInc() {
	w.m.AuthFailures.Inc()
}

// History metrics

func (w *MetricsWrapper) SinkFailureInc(sink string) {
	w.m.SinkFailures.WithLabelValues(sink).Inc()
}
