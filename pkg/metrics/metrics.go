// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// FetchDuration tracks backend fetch duration.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_fetch_duration_seconds",
			Help:    "Backend fetch duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"op", "status"},
	)

	// PageLoadsTotal tracks pagination loads by list and outcome.
	PageLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_page_loads_total",
			Help: "Pagination loads by list and outcome",
		},
		[]string{"list", "outcome"},
	)

	// StaleResultsTotal tracks fetch results discarded because their subject was superseded.
	StaleResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_stale_results_total",
			Help: "Fetch results discarded for a superseded subject",
		},
		[]string{"list"},
	)

	// PushEventsTotal tracks push events received by type.
	PushEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_push_events_total",
			Help: "Push events received by type",
		},
		[]string{"type"},
	)

	// PushMessagesDeduplicated tracks pushed messages dropped as duplicates.
	PushMessagesDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_push_messages_deduplicated_total",
			Help: "Pushed messages dropped because they were already present",
		},
	)

	// RealtimeConnected is 1 while the push channel is connected.
	RealtimeConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_realtime_connected",
			Help: "Whether the realtime push channel is connected",
		},
	)

	// FallbackPollsTotal tracks state refreshes triggered by fallback polling.
	FallbackPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_fallback_polls_total",
			Help: "State refreshes triggered by fallback polling",
		},
		[]string{"status"},
	)

	// CacheLookupsTotal tracks response cache lookups.
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_cache_lookups_total",
			Help: "Response cache lookups by result",
		},
		[]string{"result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordFetch records metrics for a backend fetch.
func RecordFetch(op, status string, duration float64) {
	FetchDuration.WithLabelValues(op, status).Observe(duration)
}

// RecordPageLoad records the outcome of a pagination load.
func RecordPageLoad(list, outcome string) {
	PageLoadsTotal.WithLabelValues(list, outcome).Inc()
}

// SetRealtimeConnected sets the realtime connection gauge.
func SetRealtimeConnected(connected bool) {
	if connected {
		RealtimeConnected.Set(1)
		return
	}
	RealtimeConnected.Set(0)
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
