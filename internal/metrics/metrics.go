package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Hardware metrics
	DetectedGPUs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_detected_gpus",
			Help: "Number of GPUs detected on this node",
		},
	)

	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_phase_duration_seconds",
			Help:    "Time spent in each orchestration phase",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~45 minutes; daemon installs can span minutes
		},
		[]string{"phase"},
	)

	// Manifest metrics
	ManifestApps = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_manifest_apps",
			Help: "Number of process descriptors in the emitted manifest",
		},
	)

	ServicePairs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_service_pairs",
			Help: "Number of worker/service pairs in the emitted manifest",
		},
	)

	WorkerInstances = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orchestrator_worker_instances",
			Help: "Resolved instance count per worker type",
		},
		[]string{"worker_type"},
	)

	// Daemon bootstrap metrics
	DaemonInstalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_daemon_installs_total",
			Help: "Daemon install attempts by outcome",
		},
		[]string{"service", "result"},
	)
)

// Handler returns the Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPhase records the duration of one orchestration phase
func RecordPhase(phase string, seconds float64) {
	PhaseDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordDaemonInstall records a daemon install attempt outcome
func RecordDaemonInstall(service string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	DaemonInstalls.WithLabelValues(service, result).Inc()
}

// RecordManifest records the shape of the emitted manifest
func RecordManifest(apps, pairs int) {
	ManifestApps.Set(float64(apps))
	ServicePairs.Set(float64(pairs))
}
