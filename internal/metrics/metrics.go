// Package metrics exposes Prometheus instrumentation for the deployment
// engine. Collectors are registered on the controller-runtime registry so
// everything ends up on a single scrape endpoint.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// Chart pipeline metrics
	chartRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "charts",
			Name:      "runs_total",
			Help:      "Total number of chart pipeline runs by action and outcome",
		},
		[]string{"chart", "action", "outcome"},
	)

	chartRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "engine",
			Subsystem: "charts",
			Name:      "run_duration_seconds",
			Help:      "Duration of chart pipeline runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5min
		},
		[]string{"chart", "action"},
	)

	// Helm CLI metrics
	helmCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "helm",
			Name:      "commands_total",
			Help:      "Total number of helm CLI invocations by subcommand and outcome",
		},
		[]string{"command", "outcome"},
	)

	helmCommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "engine",
			Subsystem: "helm",
			Name:      "command_duration_seconds",
			Help:      "Duration of helm CLI invocations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~4min
		},
		[]string{"command"},
	)
)

func init() {
	// Register metrics with controller-runtime's registry
	crmetrics.Registry.MustRegister(
		chartRunsTotal,
		chartRunDuration,
		helmCommandsTotal,
		helmCommandDuration,
	)
}

// RecordChartRun records the result of one chart pipeline run.
func RecordChartRun(chart, action string, err error, duration time.Duration) {
	chartRunsTotal.WithLabelValues(chart, action, outcome(err)).Inc()
	chartRunDuration.WithLabelValues(chart, action).Observe(duration.Seconds())
}

// RecordHelmCommand records one helm CLI invocation.
func RecordHelmCommand(command string, err error, duration time.Duration) {
	helmCommandsTotal.WithLabelValues(command, outcome(err)).Inc()
	helmCommandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// Handler returns an HTTP handler serving everything registered on the
// controller-runtime registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(crmetrics.Registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
