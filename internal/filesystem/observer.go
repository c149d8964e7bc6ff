package filesystem

// Observer records filesystem operation metrics. The metrics package provides
// the Prometheus-backed implementation; filesystem never imports metrics.
type Observer interface {
	// ObserveOperation records duration and error status for a filesystem operation.
	// volume is the resolved label ("sandbox", "cache", "destination", "unknown").
	// operation is the fs operation type: "stat", "read", "write".
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	// Retry-specific metrics. retryOp is one of "stat", "open", "mkdir".
	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveRetryDuration(retryOp, volume string, durationSeconds float64)
	ObserveStaleError(retryOp, volume string)
}

// defaultObserver is the package-level observer set at startup.
// If nil, metric recording is skipped (safe for tests).
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
