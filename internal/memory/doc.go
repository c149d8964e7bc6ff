// Package memory configures the Go memory limit for containerized deployments
// and applies backpressure to thumbnail extraction when the heap nears it.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from MEMORY_LIMIT (bytes, usually set
// from the Kubernetes Downward API) and MEMORY_RATIO (default 0.85). An
// explicit GOMEMLIMIT wins. The remaining headroom is left for ffmpeg child
// processes and libvips, which allocate outside the Go heap.
//
// A [Monitor] samples heap allocation every CheckInterval. Once usage reaches
// CriticalWaterMark, [Monitor.Wait] blocks new extractions until usage falls
// below HighWaterMark, the context ends, or the monitor is stopped.
//
//	mon := memory.NewMonitor(memory.DefaultConfig())
//	mon.Start()
//	defer mon.Stop()
//
//	if err := mon.Wait(ctx); err != nil {
//	    return err
//	}
package memory
