// Package metrics provides Prometheus instrumentation for the thumbnail service.
//
// All metrics are registered with the default registry through promauto and
// prefixed with "native_thumbnail_".
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal: Counter of requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Sandbox Metrics
//   - SandboxResolutionsTotal: Counter by target (source/destination),
//     method (physical/sandbox/direct/best_guess), and result
//
// ## Thumbnail Metrics
//   - ThumbnailRequestsTotal: Counter of ExtractThumbnail calls by outcome
//   - ThumbnailRequestDuration: Histogram of end-to-end request time
//   - ThumbnailStrategyAttempts: Counter by strategy (cache/factory/live) and result
//   - ThumbnailStrategyDuration: Histogram of single attempts by strategy
//   - ThumbnailDecodeTotal: Counter by decoder (vips/imaging/ffmpeg) and status
//   - ThumbnailFFmpegDuration: Histogram of FFmpeg frame extraction time
//   - ThumbnailWritesTotal, ThumbnailWriteBytes: encoded output files
//
// ## Cache Metrics
//   - ThumbcacheHits, ThumbcacheMisses, ThumbcacheWrites
//   - ThumbcacheEntries, ThumbcacheSizeBytes: updated by [Collector]
//
// ## Dispatch Metrics
//   - DispatchInFlight, DispatchQueueWait, DispatchRejected, DispatchPanics
//
// ## Memory Metrics
//   - GoMemLimit, GoMemAllocBytes, GoMemSysBytes, GoGCRuns
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses
//
// ## Filesystem Metrics
//
// Recorded through the filesystem.Observer returned by NewFilesystemObserver.
//
// # Usage
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// Example PromQL:
//
//	sum(rate(native_thumbnail_strategy_attempts_total{result="success"}[5m])) by (strategy)
//
//	rate(native_thumbnail_requests_total{outcome="source_not_found"}[5m])
package metrics
