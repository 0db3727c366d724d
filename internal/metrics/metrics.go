// Package metrics exposes Prometheus instrumentation for backup runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActivitiesBackedUp tracks activities fully processed per run outcome.
	ActivitiesBackedUp = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garminbackup_activities_total",
			Help: "Total number of activities processed",
		},
		[]string{"outcome"},
	)

	// FilesDownloaded tracks exported files written per format.
	FilesDownloaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garminbackup_files_downloaded_total",
			Help: "Total number of exported activity files written",
		},
		[]string{"format"},
	)

	// DownloadErrors tracks exports that gave up or failed per format.
	DownloadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garminbackup_download_errors_total",
			Help: "Total number of failed export downloads",
		},
		[]string{"format"},
	)

	// NotFoundRecorded tracks confirmed-absent exports appended to the ledger.
	NotFoundRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garminbackup_not_found_total",
			Help: "Total number of exports confirmed absent on the remote side",
		},
		[]string{"format"},
	)

	// RetryAttempts tracks retries performed per operation.
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garminbackup_retry_attempts_total",
			Help: "Total number of retried attempts",
		},
		[]string{"op"},
	)

	// RunDuration tracks wall-clock duration of full backup runs.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "garminbackup_run_duration_seconds",
			Help:    "Duration of backup runs in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)
