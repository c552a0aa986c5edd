package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	SourceFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mwcheck_source_fetch_seconds",
		Help:    "Time spent fetching change data from one source for one version.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	SourceFetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mwcheck_source_fetch_errors_total",
		Help: "Total number of failed source fetches.",
	}, []string{"source"})

	ChangesAggregated = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mwcheck_changes_aggregated_total",
		Help: "Number of change records after merge and filter.",
	})

	FilesDiscovered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mwcheck_files_discovered_total",
		Help: "Number of files in the scan index.",
	})

	PatternScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mwcheck_pattern_scan_seconds",
		Help:    "Time spent scanning the file index for one change pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	PatternErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mwcheck_pattern_errors_total",
		Help: "Total number of change patterns that failed to compile.",
	})

	PatternTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mwcheck_pattern_timeouts_total",
		Help: "Total number of pattern scans truncated by their time budget.",
	})

	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mwcheck_matches_total",
		Help: "Total number of match sites recorded across all scans.",
	})

	FileReadErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mwcheck_file_read_errors_total",
		Help: "Total number of files skipped because they became unreadable mid-scan.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mwcheck_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	AnnotationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mwcheck_annotation_seconds",
		Help:    "Latency of one AI annotation call.",
		Buckets: prometheus.DefBuckets,
	})
)
