/*
Package filesystem wraps the filesystem calls made while resolving and writing
thumbnails (stat, open, mkdir) with retry logic for NFS stale file handle
errors, and labels each call with the volume it touched for metrics.

Sandbox roots and destination folders frequently live on redirected or network
storage, where ESTALE shows up transiently. Only ESTALE is retried; every other
error is returned immediately.

# Usage

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

	if err := filesystem.EnsureDir(filepath.Dir(dest), filesystem.DefaultRetryConfig()); err != nil {
	    return err
	}

# Retry Behavior

Defaults: 3 retries, 50ms initial backoff doubling up to 500ms.

# Metrics

Metrics are reported through an Observer registered with SetObserver; the
metrics package supplies the Prometheus implementation. Volume labels come
from a VolumeResolver built at startup (longest-prefix match).
*/
package filesystem
