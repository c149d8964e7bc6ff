package handlers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"native-thumbnail/internal/metrics"
	"native-thumbnail/internal/thumbnail"
)

// Submitter runs thumbnail requests. *dispatch.Dispatcher satisfies it.
type Submitter interface {
	Submit(ctx context.Context, req thumbnail.Request) <-chan thumbnail.Outcome
}

// MemoryStatus reports memory pressure. *memory.Monitor satisfies it.
type MemoryStatus interface {
	IsPaused() bool
	GetStats() (current, limit int64, usage float64)
}

// Handlers holds the dependencies of the HTTP API.
type Handlers struct {
	dispatcher Submitter
	stats      metrics.StatsProvider
	memory     MemoryStatus
	workers    int
	started    time.Time

	ready   atomic.Bool
	pending sync.WaitGroup
}

// New creates the handlers. stats may be nil when the cache is disabled.
func New(dispatcher Submitter, stats metrics.StatsProvider, workers int) *Handlers {
	return &Handlers{
		dispatcher: dispatcher,
		stats:      stats,
		workers:    workers,
		started:    time.Now(),
	}
}

// SetMemoryStatus makes the health check report memory pressure.
func (h *Handlers) SetMemoryStatus(m MemoryStatus) {
	h.memory = m
}

// SetReady marks the service as ready (or not) to accept thumbnail requests.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service accepts thumbnail requests.
func (h *Handlers) IsReady() bool {
	return h.ready.Load()
}

// WaitAsync blocks until every accepted async request has reported its outcome.
func (h *Handlers) WaitAsync() {
	h.pending.Wait()
}
