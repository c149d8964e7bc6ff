// Package dispatch runs thumbnail requests on a bounded number of goroutines
// and reports each result on its own completion channel.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"native-thumbnail/internal/logging"
	"native-thumbnail/internal/metrics"
	"native-thumbnail/internal/thumbnail"
)

// ErrClosed is reported for submissions after Close.
var ErrClosed = errors.New("dispatcher closed")

// Handler runs one request. *thumbnail.Service satisfies it.
type Handler interface {
	ExtractThumbnail(ctx context.Context, req thumbnail.Request) thumbnail.Outcome
}

// Gate holds work back, for example while memory is short. *memory.Monitor
// satisfies it.
type Gate interface {
	Wait(ctx context.Context) error
}

// Dispatcher bounds how many requests run at once. Requests beyond the
// capacity wait for a slot; they are not queued in any particular order.
type Dispatcher struct {
	handler  Handler
	gate     Gate
	sem      *semaphore.Weighted
	capacity int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a Dispatcher running at most workers requests concurrently.
// gate may be nil.
func New(handler Handler, workers int, gate Gate) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	logging.Info("Thumbnail dispatcher started with %d workers", workers)
	return &Dispatcher{
		handler:  handler,
		gate:     gate,
		sem:      semaphore.NewWeighted(int64(workers)),
		capacity: workers,
	}
}

// Capacity returns the maximum number of concurrent requests.
func (d *Dispatcher) Capacity() int {
	return d.capacity
}

// Submit starts req in the background and returns a channel that receives
// exactly one Outcome. The channel is buffered, so the caller may drop it.
// If ctx ends before a worker slot frees up, the Outcome is an Unknown failure.
func (d *Dispatcher) Submit(ctx context.Context, req thumbnail.Request) <-chan thumbnail.Outcome {
	done := make(chan thumbnail.Outcome, 1)

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		metrics.DispatchRejected.WithLabelValues("closed").Inc()
		done <- thumbnail.Fail(thumbnail.Unknown, ErrClosed)
		return done
	}
	d.wg.Add(1)
	d.mu.RUnlock()

	go func() {
		defer d.wg.Done()
		done <- d.run(ctx, req)
	}()
	return done
}

func (d *Dispatcher) run(ctx context.Context, req thumbnail.Request) (out thumbnail.Outcome) {
	queued := time.Now()
	if err := d.sem.Acquire(ctx, 1); err != nil {
		metrics.DispatchRejected.WithLabelValues("canceled").Inc()
		return thumbnail.Fail(thumbnail.Unknown, fmt.Errorf("waiting for a worker: %w", err))
	}
	defer d.sem.Release(1)
	metrics.DispatchQueueWait.Observe(time.Since(queued).Seconds())

	if d.gate != nil {
		if err := d.gate.Wait(ctx); err != nil {
			metrics.DispatchRejected.WithLabelValues("memory").Inc()
			return thumbnail.Fail(thumbnail.Unknown, fmt.Errorf("waiting for memory: %w", err))
		}
	}

	metrics.DispatchInFlight.Inc()
	defer metrics.DispatchInFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			metrics.DispatchPanics.Inc()
			logging.Error("Panic while extracting %s: %v\n%s", req.Source, r, debug.Stack())
			out = thumbnail.Fail(thumbnail.Unknown, fmt.Errorf("extraction panicked: %v", r))
		}
	}()

	return d.handler.ExtractThumbnail(ctx, req)
}

// Close rejects new submissions and waits for submitted ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
	logging.Info("Thumbnail dispatcher stopped")
}
