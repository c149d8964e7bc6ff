package metrics

import (
	"sync"

	"native-thumbnail/internal/filesystem"
	"native-thumbnail/internal/logging"
)

// fsObserver feeds the Filesystem* vectors from the resolver, writer and
// cache probes. The first stale handle seen on a volume is also logged, since
// it usually means a share was remounted under the running service.
type fsObserver struct {
	mu         sync.Mutex
	staleSeen  map[string]bool
	warnStaled func(volume string)
}

// NewFilesystemObserver returns the filesystem.Observer installed at startup.
func NewFilesystemObserver() filesystem.Observer {
	return newFSObserver(func(volume string) {
		logging.Warn("Stale file handles on volume %q; sandbox probes are being retried", volume)
	})
}

func newFSObserver(warn func(volume string)) *fsObserver {
	return &fsObserver{staleSeen: make(map[string]bool), warnStaled: warn}
}

func (o *fsObserver) ObserveOperation(volume, operation string, seconds float64, err error) {
	FilesystemOperationDuration.WithLabelValues(volume, operation).Observe(seconds)
	if err == nil {
		return
	}
	FilesystemOperationErrors.WithLabelValues(volume, operation).Inc()
}

func (o *fsObserver) ObserveRetryDuration(retryOp, volume string, seconds float64) {
	FilesystemRetryDuration.WithLabelValues(retryOp, volume).Observe(seconds)
}

func (o *fsObserver) ObserveRetryAttempt(retryOp, volume string) {
	FilesystemRetryAttempts.WithLabelValues(retryOp, volume).Inc()
}

func (o *fsObserver) ObserveRetrySuccess(retryOp, volume string) {
	FilesystemRetrySuccess.WithLabelValues(retryOp, volume).Inc()
}

func (o *fsObserver) ObserveRetryFailure(retryOp, volume string) {
	FilesystemRetryFailures.WithLabelValues(retryOp, volume).Inc()
}

func (o *fsObserver) ObserveStaleError(retryOp, volume string) {
	FilesystemStaleErrors.WithLabelValues(retryOp, volume).Inc()

	o.mu.Lock()
	first := !o.staleSeen[volume]
	o.staleSeen[volume] = true
	o.mu.Unlock()
	if first && o.warnStaled != nil {
		o.warnStaled(volume)
	}
}
