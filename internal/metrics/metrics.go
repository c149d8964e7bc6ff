package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "native_thumbnail_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "native_thumbnail_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "native_thumbnail_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Sandbox path resolution metrics
var (
	SandboxResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "native_thumbnail_sandbox_resolutions_total",
			Help: "Total number of logical path resolutions",
		},
		[]string{"target", "method", "result"}, // target: "source" or "destination"
	)
)

// Thumbnail request metrics
var (
	ThumbnailRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "native_thumbnail_requests_total",
			Help: "Total number of thumbnail extraction requests by outcome",
		},
		[]string{"outcome"},
	)

	ThumbnailRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "native_thumbnail_request_duration_seconds",
			Help:    "End-to-end thumbnail extraction duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ThumbnailStrategyAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "native_thumbnail_strategy_attempts_total",
			Help: "Total number of extraction strategy attempts by result",
		},
		[]string{"strategy", "result"}, // result: "success", "unsupported", "failed"
	)

	ThumbnailStrategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "native_thumbnail_strategy_duration_seconds",
			Help:    "Duration of a single extraction strategy attempt in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"strategy"},
	)

	ThumbnailDecodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "native_thumbnail_decode_total",
			Help: "Total number of source decodes by decoder and status",
		},
		[]string{"decoder", "status"}, // decoder: "vips", "imaging", "ffmpeg"
	)

	ThumbnailFFmpegDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "native_thumbnail_ffmpeg_duration_seconds",
			Help:    "Time spent in FFmpeg frame extraction in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"media_type"},
	)

	ThumbnailWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "native_thumbnail_writes_total",
			Help: "Total number of encoded thumbnail writes by format and status",
		},
		[]string{"format", "status"},
	)

	ThumbnailWriteBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "native_thumbnail_write_bytes",
			Help:    "Size of written thumbnail files in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12),
		},
		[]string{"format"},
	)
)

// Thumbnail cache metrics
var (
	ThumbcacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "native_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail cache hits",
		},
	)

	ThumbcacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "native_thumbnail_cache_misses_total",
			Help: "Total number of thumbnail cache misses",
		},
	)

	ThumbcacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "native_thumbnail_cache_writes_total",
			Help: "Total number of thumbnail cache writes",
		},
		[]string{"status"},
	)

	ThumbcacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "native_thumbnail_cache_entries",
			Help: "Number of thumbnails in the cache",
		},
	)

	ThumbcacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "native_thumbnail_cache_size_bytes",
			Help: "Total size of cached thumbnails in bytes",
		},
	)
)

// Dispatch metrics
var (
	DispatchInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "native_thumbnail_dispatch_in_flight",
			Help: "Number of extraction requests currently running",
		},
	)

	DispatchQueueWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "native_thumbnail_dispatch_queue_wait_seconds",
			Help:    "Time a request waited for a worker slot in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	DispatchRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "native_thumbnail_dispatch_rejected_total",
			Help: "Total number of requests that never got a worker slot",
		},
		[]string{"reason"}, // "closed", "canceled", "memory"
	)

	DispatchPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "native_thumbnail_dispatch_panics_total",
			Help: "Total number of recovered panics in extraction workers",
		},
	)
)

// Memory metrics
var (
	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "native_thumbnail_go_memlimit_bytes",
			Help: "Configured GOMEMLIMIT in bytes (0 if unlimited)",
		},
	)

	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "native_thumbnail_go_memalloc_bytes",
			Help: "Current Go heap allocation in bytes",
		},
	)

	GoMemSysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "native_thumbnail_go_memsys_bytes",
			Help: "Total memory obtained from the OS in bytes",
		},
	)

	GoGCRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "native_thumbnail_go_gc_runs_total",
			Help: "Total number of completed GC cycles",
		},
	)

	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "native_thumbnail_memory_usage_ratio",
			Help: "Current memory usage as a ratio of the limit (0.0-1.0)",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "native_thumbnail_memory_paused",
			Help: "Whether extraction is paused due to memory pressure (1 = paused, 0 = running)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "native_thumbnail_memory_gc_pauses_total",
			Help: "Total number of times extraction was paused for memory pressure",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "native_thumbnail_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations by volume and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "native_thumbnail_filesystem_operation_errors_total",
			Help: "Total number of failed filesystem operations",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "native_thumbnail_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts after stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "native_thumbnail_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "native_thumbnail_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that exhausted their retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "native_thumbnail_filesystem_stale_errors_total",
			Help: "Total number of stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "native_thumbnail_filesystem_retry_duration_seconds",
			Help:    "Total duration of filesystem operations including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "native_thumbnail_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
