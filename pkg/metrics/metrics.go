// Package metrics exposes Prometheus instrumentation for the container:
// instance counts, RPC traffic per interface, bridge call volume, and
// signal throughput.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	InstancesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hive_instances_total",
			Help: "Total number of instances by status",
		},
		[]string{"status"},
	)

	LoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hive_load_total",
			Help: "Total number of load_config calls by outcome",
		},
		[]string{"outcome"},
	)

	LoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hive_load_duration_seconds",
			Help:    "Time taken to load and build a full instance registry",
			Buckets: prometheus.DefBuckets,
		},
	)

	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hive_rpc_requests_total",
			Help: "Total number of JSON-RPC requests by interface and outcome",
		},
		[]string{"interface_id", "outcome"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hive_rpc_request_duration_seconds",
			Help:    "JSON-RPC request duration in seconds by interface",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"interface_id"},
	)

	BridgeCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hive_bridge_calls_total",
			Help: "Total number of bridge calls by caller, callee, and outcome",
		},
		[]string{"caller_id", "callee_id", "outcome"},
	)

	SignalsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hive_signals_emitted_total",
			Help: "Total number of signals emitted by kind",
		},
		[]string{"kind"},
	)

	P2PHelperSpawnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hive_p2p_helper_spawns_total",
			Help: "Total number of times the P2P helper process was spawned",
		},
	)

	InterfacesRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hive_interfaces_running",
			Help: "Number of interface workers currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(
		InstancesTotal,
		LoadTotal,
		LoadDuration,
		RPCRequestsTotal,
		RPCRequestDuration,
		BridgeCallsTotal,
		SignalsEmittedTotal,
		P2PHelperSpawnsTotal,
		InterfacesRunning,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations and recording their duration to
// a histogram.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with
// labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
