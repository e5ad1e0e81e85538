package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRegistry holds the Prometheus metrics for both pipelines.
type MetricsRegistry struct {
	registry *prometheus.Registry

	// Poll pipeline.
	CyclesTotal        *prometheus.CounterVec
	CreditsUsed        prometheus.Gauge
	SurvivorsFound     prometheus.Gauge
	SurvivorsPublished prometheus.Counter

	// Live pipeline.
	WSMessages   prometheus.Counter
	Graduations  prometheus.Counter
	WSReconnects prometheus.Counter
}

// NewMetricsRegistry creates and registers all metrics on a private registry.
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradwatch_cycles_total",
				Help: "Poll cycles by result",
			},
			[]string{"result"},
		),
		CreditsUsed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gradwatch_credits_used",
				Help: "Cumulative RPC credit units consumed",
			},
		),
		SurvivorsFound: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gradwatch_survivors_last_cycle",
				Help: "Survivors found in the most recent cycle",
			},
		),
		SurvivorsPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gradwatch_survivors_published_total",
				Help: "Survivor payloads delivered to the webhook",
			},
		),

		WSMessages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gradwatch_ws_messages_total",
				Help: "Raw messages received from the live feed",
			},
		),
		Graduations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gradwatch_graduations_total",
				Help: "Graduation events classified from the live feed",
			},
		),
		WSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gradwatch_ws_reconnects_total",
				Help: "Live feed reconnection attempts",
			},
		),
	}

	m.registry.MustRegister(
		m.CyclesTotal,
		m.CreditsUsed,
		m.SurvivorsFound,
		m.SurvivorsPublished,
		m.WSMessages,
		m.Graduations,
		m.WSReconnects,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
