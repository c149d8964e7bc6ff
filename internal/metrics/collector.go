package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"native-thumbnail/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current thumbnail cache statistics
type Stats struct {
	CacheEntries int
	CacheBytes   int64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	lastGCCount   uint32
}

// NewCollector creates a new metrics collector. provider may be nil, in which
// case only runtime memory metrics are collected.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	c.collectMemoryMetrics()

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	ThumbcacheEntries.Set(float64(stats.CacheEntries))
	ThumbcacheSizeBytes.Set(float64(stats.CacheBytes))

	logging.Debug("Metrics collected: cache entries=%d, cache bytes=%d", stats.CacheEntries, stats.CacheBytes)
}

func (c *Collector) collectMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoMemAllocBytes.Set(float64(m.Alloc))
	GoMemSysBytes.Set(float64(m.Sys))

	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < 1<<62 {
		GoMemLimit.Set(float64(limit))
	} else {
		GoMemLimit.Set(0)
	}

	if m.NumGC > c.lastGCCount {
		GoGCRuns.Add(float64(m.NumGC - c.lastGCCount))
	}
	c.lastGCCount = m.NumGC
}
