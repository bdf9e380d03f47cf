package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Extraction request statuses
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the service collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	extractTotal    *prometheus.CounterVec
	extractDuration *prometheus.HistogramVec
	lookupsTotal    *prometheus.CounterVec
	enrichInFlight  prometheus.Gauge
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	extractTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "receipt",
			Name:      "extract_requests_total",
			Help:      "Total receipt extraction requests by status.",
		},
		[]string{"status"},
	)
	extractDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "receipt",
			Name:      "extract_duration_seconds",
			Help:      "Receipt extraction duration in seconds, including registry lookups.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"status"},
	)
	lookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "receipt",
			Subsystem: "registry",
			Name:      "lookups_total",
			Help:      "Business number lookups by outcome.",
		},
		[]string{"outcome"},
	)
	enrichInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "receipt",
			Name:      "enrich_in_flight",
			Help:      "Number of registry enrichments currently running.",
		},
	)

	registry.MustRegister(extractTotal, extractDuration, lookupsTotal, enrichInFlight)

	return &Metrics{
		registry:        registry,
		extractTotal:    extractTotal,
		extractDuration: extractDuration,
		lookupsTotal:    lookupsTotal,
		enrichInFlight:  enrichInFlight,
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveExtract records one finished extraction request
func (m *Metrics) ObserveExtract(duration time.Duration, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.extractTotal.WithLabelValues(status).Inc()
	m.extractDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveLookup counts a registry lookup outcome
func (m *Metrics) ObserveLookup(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.lookupsTotal.WithLabelValues(outcome).Inc()
}

// EnrichStarted marks an enrichment as running and returns the func that marks it done
func (m *Metrics) EnrichStarted() func() {
	m.enrichInFlight.Inc()
	return m.enrichInFlight.Dec
}
