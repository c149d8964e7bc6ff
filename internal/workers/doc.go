/*
Package workers sizes the extraction worker pool.

runtime.NumCPU reports the host's CPUs even inside a container with a CPU
limit. GOMAXPROCS follows the cgroup limit since Go 1.19, so the counts here
are derived from it:

	workers.Count(workers.MixedMultiplier, 8) // 1.5 per CPU, at most 8

Operators can pin the count with THUMBNAIL_WORKERS; the cap still applies.
*/
package workers
