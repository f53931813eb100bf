package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the Prometheus collectors the service records into.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	AnalyticsDuration *prometheus.HistogramVec
	ReplyGenerations  *prometheus.CounterVec
	EmailsSent        *prometheus.CounterVec
	BreakerState      *prometheus.GaugeVec
}

var breakerStates = []string{"closed", "open", "half-open"}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindcare",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mindcare",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		AnalyticsDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mindcare",
			Name:      "analytics_duration_seconds",
			Help:      "Time spent computing analytics reports.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		}, []string{"report"}),
		ReplyGenerations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindcare",
			Name:      "reply_generations_total",
			Help:      "Assistant reply generations by outcome.",
		}, []string{"outcome"}),
		EmailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindcare",
			Name:      "emails_total",
			Help:      "Emails delivered by kind and outcome.",
		}, []string{"kind", "outcome"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mindcare",
			Name:      "circuit_breaker_state",
			Help:      "1 for the state each circuit breaker is in, 0 otherwise.",
		}, []string{"breaker", "state"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.AnalyticsDuration,
		m.ReplyGenerations,
		m.EmailsSent,
		m.BreakerState,
	)
	return m
}

// SetBreakerState marks state as the current one for the named breaker.
func (m *Metrics) SetBreakerState(breaker, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.BreakerState.WithLabelValues(breaker, s).Set(v)
	}
}

// SetupMeterProvider installs a global OTel meter provider exported through reg.
func SetupMeterProvider(reg prometheus.Registerer) (*metric.MeterProvider, error) {
	exp, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(exp))
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
