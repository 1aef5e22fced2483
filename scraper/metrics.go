package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request phases used as metric labels.
const (
	PhaseRegions     = "regions"
	PhaseSearch      = "search"
	PhaseLowestPrice = "lowest_price"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry            *prometheus.Registry
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	ItemsExtractedTotal *prometheus.CounterVec
	ErrorsTotal         *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psdeals_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "psdeals_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	itemsExtracted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psdeals_items_extracted_total",
			Help: "Total number of regions, result rows and prices extracted.",
		},
		[]string{"phase"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psdeals_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, itemsExtracted, errorsTotal)

	return &Metrics{
		Registry:            registry,
		RequestsTotal:       requests,
		RequestDuration:     requestDuration,
		ItemsExtractedTotal: itemsExtracted,
		ErrorsTotal:         errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// AddItems adds n extracted items for a phase.
func (m *Metrics) AddItems(phase string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsExtractedTotal.WithLabelValues(phase).Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
