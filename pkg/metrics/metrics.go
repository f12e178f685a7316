package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec

	// Scheduling metrics
	ConflictChecks    *prometheus.CounterVec
	SlotSearches      *prometheus.CounterVec
	SlotSearchLatency prometheus.Histogram

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all application metrics on the default
// registry.
func NewMetrics(namespace, subsystem string) *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer, namespace, subsystem)
}

// NewMetricsWithRegistry registers on a caller-supplied registry; tests use
// a fresh one to avoid duplicate registration.
func NewMetricsWithRegistry(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OutboxEventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),

		ConflictChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "conflict_checks_total",
			Help:      "Total number of appointment conflict checks",
		}, []string{"result"}),
		SlotSearches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slot_searches_total",
			Help:      "Total number of next-available-slot searches",
		}, []string{"outcome"}),
		SlotSearchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slot_search_duration_seconds",
			Help:      "Time spent searching for open slots",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route"}),
	}
}

// Label values for ConflictChecks.
const (
	ResultClear    = "clear"
	ResultConflict = "conflict"
)

// Label values for SlotSearches.
const (
	OutcomeFound     = "found"
	OutcomeExhausted = "exhausted"
)
