// Package metrics provides Prometheus metrics for sqlstudio.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Background loop metrics
	loopRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlstudio_loop_runs_total",
			Help: "Total number of background loop iterations",
		},
		[]string{"loop", "status"},
	)

	loopDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlstudio_loop_duration_seconds",
			Help:    "Duration of one background loop iteration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"loop"},
	)

	// File reconciliation metrics
	reconcileUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlstudio_reconcile_updates_total",
			Help: "Tab updates caused by external file changes",
		},
		[]string{"side", "action"},
	)

	reconcileErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlstudio_reconcile_errors_total",
			Help: "File reads that failed during reconciliation",
		},
	)

	// Checkpoint metrics
	checkpointWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlstudio_checkpoint_writes_total",
			Help: "Total number of checkpoint writes",
		},
		[]string{"status"},
	)

	checkpointBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlstudio_checkpoint_bytes",
			Help: "Size of the last written checkpoint",
		},
	)

	// Conversion metrics
	conversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlstudio_conversions_total",
			Help: "Total number of converter runs",
		},
		[]string{"status"},
	)

	conversionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlstudio_conversion_duration_seconds",
			Help:    "Converter subprocess duration",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// State gauges
	openTabs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlstudio_open_tabs",
			Help: "Number of open tabs",
		},
	)

	recentFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlstudio_recent_files",
			Help: "Number of entries in the recent files list",
		},
	)

	licenseActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlstudio_license_active",
			Help: "1 when the converter license is active",
		},
	)

	dashboardClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlstudio_dashboard_clients",
			Help: "Number of connected dashboard WebSocket clients",
		},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordLoopRun records one iteration of a named background loop.
func RecordLoopRun(loop string, d time.Duration, err error) {
	loopRunsTotal.WithLabelValues(loop, status(err)).Inc()
	loopDuration.WithLabelValues(loop).Observe(d.Seconds())
}

// RecordReconcileUpdate records a tab change caused by the file watcher.
// side is "source" or "target"; action is "modified" or "deleted".
func RecordReconcileUpdate(side, action string) {
	reconcileUpdatesTotal.WithLabelValues(side, action).Inc()
}

// RecordReconcileError records a failed read during reconciliation.
func RecordReconcileError() {
	reconcileErrorsTotal.Inc()
}

// RecordCheckpoint records a checkpoint write and its size.
func RecordCheckpoint(bytes int64, err error) {
	checkpointWritesTotal.WithLabelValues(status(err)).Inc()
	if err == nil {
		checkpointBytes.Set(float64(bytes))
	}
}

// RecordConversion records a converter run.
func RecordConversion(d time.Duration, err error) {
	conversionsTotal.WithLabelValues(status(err)).Inc()
	conversionDuration.Observe(d.Seconds())
}

// SetOpenTabs sets the open tab gauge.
func SetOpenTabs(n int) {
	openTabs.Set(float64(n))
}

// SetRecentFiles sets the recent files gauge.
func SetRecentFiles(n int) {
	recentFiles.Set(float64(n))
}

// SetLicenseActive sets the license gauge.
func SetLicenseActive(active bool) {
	if active {
		licenseActive.Set(1)
	} else {
		licenseActive.Set(0)
	}
}

// SetDashboardClients sets the connected client gauge.
func SetDashboardClients(n int) {
	dashboardClients.Set(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
