package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry        *prometheus.Registry
	actionsTotal    *prometheus.CounterVec
	sessionsTotal   *prometheus.CounterVec
	replaysTotal    prometheus.Counter
	requestDuration *prometheus.HistogramVec
	connected       prometheus.Gauge
}

func newMetricsRegistry() *metricsRegistry {
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trustpay_actions_total",
		Help: "Contract actions by name and outcome",
	}, []string{"action", "status"})

	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trustpay_session_events_total",
		Help: "Wallet session events",
	}, []string{"event"})

	replays := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trustpay_idempotent_replays_total",
		Help: "Responses served from the idempotency store",
	})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trustpay_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "code"})

	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trustpay_wallet_connected",
		Help: "1 while a wallet is connected to the configured chain",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(actions, sessions, replays, duration, connected)

	return &metricsRegistry{
		registry:        r,
		actionsTotal:    actions,
		sessionsTotal:   sessions,
		replaysTotal:    replays,
		requestDuration: duration,
		connected:       connected,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incAction(action, status string) {
	m.actionsTotal.WithLabelValues(action, status).Inc()
}

func (m *metricsRegistry) incSession(event string) {
	m.sessionsTotal.WithLabelValues(event).Inc()
}

func (m *metricsRegistry) incReplay() {
	m.replaysTotal.Inc()
}

func (m *metricsRegistry) setConnected(ok bool) {
	if ok {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}
