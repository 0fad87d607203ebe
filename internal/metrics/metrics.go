package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan metrics
var (
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonate_scans_total",
			Help: "Total number of library scans by mode and terminal state",
		},
		[]string{"mode", "state"},
	)

	ScanRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resonate_scan_running",
			Help: "Whether a library scan is currently running (1 = running, 0 = idle)",
		},
	)

	ScanLastDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resonate_scan_last_duration_seconds",
			Help: "Duration of the last finished library scan in seconds",
		},
	)

	ScanFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resonate_scan_files_processed_total",
			Help: "Total number of audio files processed across all scans",
		},
	)

	ScanFilesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resonate_scan_files_skipped_total",
			Help: "Total number of audio files skipped due to extraction failures",
		},
	)
)

// Library metrics
var (
	LibraryTracks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resonate_library_tracks",
			Help: "Number of tracks currently indexed",
		},
	)

	LibraryAlbums = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resonate_library_albums",
			Help: "Number of albums currently indexed",
		},
	)

	LibraryArtists = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resonate_library_artists",
			Help: "Number of artists currently indexed",
		},
	)

	LibraryHighResTracks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resonate_library_high_res_tracks",
			Help: "Number of indexed tracks classified as high resolution",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resonate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
