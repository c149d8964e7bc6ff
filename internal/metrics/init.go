package metrics

// Label values shared by InitializeMetrics and the packages that record them.
var (
	// Outcomes are the ThumbnailRequestsTotal outcome labels.
	Outcomes = []string{"success", "unsupported", "source_not_found", "directory_creation_failed", "write_failed", "invalid_request", "unknown"}

	// Strategies are the ThumbnailStrategyAttempts strategy labels.
	Strategies = []string{"cache", "factory", "live"}

	// StrategyResults are the ThumbnailStrategyAttempts result labels.
	StrategyResults = []string{"success", "unsupported", "failed"}

	// Volumes are the filesystem volume labels.
	Volumes = []string{"sandbox", "cache", "unknown"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Sandbox resolution ---
	for _, target := range []string{"source", "destination"} {
		for _, method := range []string{"physical", "sandbox", "direct", "best_guess"} {
			SandboxResolutionsTotal.WithLabelValues(target, method, "found")
		}
	}
	for _, method := range []string{"physical", "direct"} {
		SandboxResolutionsTotal.WithLabelValues("source", method, "not_found")
	}

	// --- Request outcomes ---
	for _, o := range Outcomes {
		ThumbnailRequestsTotal.WithLabelValues(o)
	}

	// --- Strategy attempts ---
	for _, s := range Strategies {
		for _, r := range StrategyResults {
			ThumbnailStrategyAttempts.WithLabelValues(s, r)
		}
		ThumbnailStrategyDuration.WithLabelValues(s)
	}

	// --- Decoders ---
	for _, d := range []string{"vips", "imaging", "ffmpeg"} {
		for _, s := range []string{"success", "unsupported", "error"} {
			ThumbnailDecodeTotal.WithLabelValues(d, s)
		}
	}
	for _, mt := range []string{"image", "video"} {
		ThumbnailFFmpegDuration.WithLabelValues(mt)
	}

	// --- Writer ---
	for _, f := range []string{"png", "jpeg"} {
		ThumbnailWritesTotal.WithLabelValues(f, "success")
		ThumbnailWritesTotal.WithLabelValues(f, "error")
		ThumbnailWriteBytes.WithLabelValues(f)
	}

	// --- Cache writes ---
	for _, s := range []string{"success", "error"} {
		ThumbcacheWrites.WithLabelValues(s)
	}

	// --- Dispatch ---
	for _, r := range []string{"closed", "canceled", "memory"} {
		DispatchRejected.WithLabelValues(r)
	}

	// --- Filesystem operation metrics (per volume × operation) ---
	fsOps := []string{"read", "write", "stat"}
	for _, vol := range Volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
	}

	// --- Filesystem retry metrics (per retry-operation × volume) ---
	retryOps := []string{"stat", "open", "mkdir"}
	for _, op := range retryOps {
		for _, vol := range Volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
