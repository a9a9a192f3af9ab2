package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the server's prometheus collectors. Each Server owns its
// own registry so tests can spin up servers independently.
type metrics struct {
	registry *prometheus.Registry

	scansStarted   prometheus.Counter
	scansCompleted prometheus.Counter
	scanDuration   prometheus.Histogram
	filesProcessed prometheus.Counter
	filesFailed    prometheus.Counter
	groupsFound    *prometheus.CounterVec
	filesDeleted   prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		scansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drivedupe_scans_started_total",
			Help: "Number of scans started.",
		}),
		scansCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drivedupe_scans_completed_total",
			Help: "Number of scans that completed successfully.",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "drivedupe_scan_duration_seconds",
			Help:    "Wall-clock duration of completed scans.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		filesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drivedupe_files_processed_total",
			Help: "Number of files fetched, fingerprinted and extracted.",
		}),
		filesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drivedupe_files_failed_total",
			Help: "Number of files that failed per-file processing.",
		}),
		groupsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drivedupe_duplicate_groups_total",
			Help: "Number of duplicate groups found, by group kind.",
		}, []string{"kind"}),
		filesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drivedupe_files_deleted_total",
			Help: "Number of files deleted through the approve endpoint.",
		}),
	}

	m.registry.MustRegister(
		m.scansStarted, m.scansCompleted, m.scanDuration,
		m.filesProcessed, m.filesFailed, m.groupsFound, m.filesDeleted,
	)
	return m
}
