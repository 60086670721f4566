// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "darkhold"

var (
	// rpcRequestsTotal counts forwarded RPC requests by method and outcome.
	rpcRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Total number of RPC requests forwarded to the app-server",
		},
		[]string{"method", "status"}, // status: ok, error, timeout, closed
	)

	// rpcRequestDuration is a histogram of RPC round trip duration in seconds.
	rpcRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_request_duration_seconds",
			Help:      "Histogram of RPC round trip duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"method"},
	)

	// eventsPublishedTotal counts events appended and fanned out.
	eventsPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of thread events published",
		},
	)

	// subscribersActive is a gauge of currently connected stream subscribers.
	subscribersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers_active",
			Help:      "Number of currently connected event stream subscribers",
		},
	)

	// interactionsPending is a gauge of interaction requests awaiting a response.
	interactionsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "interactions_pending",
			Help:      "Number of server-initiated requests awaiting a client response",
		},
	)

	// childSessionsActive is a gauge of running app-server children.
	childSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "child_sessions_active",
			Help:      "Number of running app-server child processes",
		},
	)

	// childSpawnsTotal counts app-server child launches.
	childSpawnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "child_spawns_total",
			Help:      "Total number of app-server child processes spawned",
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		rpcRequestsTotal,
		rpcRequestDuration,
		eventsPublishedTotal,
		subscribersActive,
		interactionsPending,
		childSessionsActive,
		childSpawnsTotal,
	}
)

// RecordRPCRequest records one forwarded RPC and its outcome.
func RecordRPCRequest(method, status string, durationSeconds float64) {
	rpcRequestsTotal.WithLabelValues(method, status).Inc()
	rpcRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordEventPublished records one published thread event.
func RecordEventPublished() {
	eventsPublishedTotal.Inc()
}

// SubscriberAdded records a new stream subscriber.
func SubscriberAdded() {
	subscribersActive.Inc()
}

// SubscriberRemoved records a departed stream subscriber.
func SubscriberRemoved() {
	subscribersActive.Dec()
}

// SetPendingInteractions records the number of unresolved interactions.
func SetPendingInteractions(count int) {
	interactionsPending.Set(float64(count))
}

// SetChildSessions records the number of running children.
func SetChildSessions(count int) {
	childSessionsActive.Set(float64(count))
}

// RecordChildSpawn records one child launch.
func RecordChildSpawn() {
	childSpawnsTotal.Inc()
}
