package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"native-thumbnail/internal/metrics"
	"native-thumbnail/internal/thumbnail"
)

type handlerFunc func(ctx context.Context, req thumbnail.Request) thumbnail.Outcome

func (f handlerFunc) ExtractThumbnail(ctx context.Context, req thumbnail.Request) thumbnail.Outcome {
	return f(ctx, req)
}

type blockingGate struct {
	err error
}

func (g blockingGate) Wait(ctx context.Context) error {
	if g.err != nil {
		return g.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestSubmitDeliversOneOutcome(t *testing.T) {
	d := New(handlerFunc(func(_ context.Context, req thumbnail.Request) thumbnail.Outcome {
		return thumbnail.Outcome{Produced: true, Destination: req.Destination}
	}), 2, nil)
	defer d.Close()

	out := <-d.Submit(context.Background(), thumbnail.Request{Destination: "d.png"})
	assert.True(t, out.Produced)
	assert.Equal(t, "d.png", out.Destination)
}

func TestConcurrencyIsBounded(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})

	d := New(handlerFunc(func(context.Context, thumbnail.Request) thumbnail.Outcome {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return thumbnail.Outcome{Produced: true}
	}), 2, nil)

	var chans []<-chan thumbnail.Outcome
	for i := 0; i < 6; i++ {
		chans = append(chans, d.Submit(context.Background(), thumbnail.Request{}))
	}

	require.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 2, running.Load())

	close(release)
	for _, ch := range chans {
		assert.True(t, (<-ch).Produced)
	}
	d.Close()

	assert.EqualValues(t, 2, peak.Load())
	assert.Equal(t, 2, d.Capacity())
}

func TestPanicBecomesUnknownFailure(t *testing.T) {
	before := testutil.ToFloat64(metrics.DispatchPanics)
	d := New(handlerFunc(func(context.Context, thumbnail.Request) thumbnail.Outcome {
		panic("decoder exploded")
	}), 1, nil)
	defer d.Close()

	out := <-d.Submit(context.Background(), thumbnail.Request{Source: "s.mp4"})
	require.NotNil(t, out.Failure)
	assert.Equal(t, thumbnail.Unknown, out.Failure.Category)
	assert.Contains(t, out.Failure.Detail, "decoder exploded")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DispatchPanics))

	// The slot is released after a panic.
	again := <-d.Submit(context.Background(), thumbnail.Request{})
	assert.NotNil(t, again.Failure)
}

func TestSubmitAfterClose(t *testing.T) {
	d := New(handlerFunc(func(context.Context, thumbnail.Request) thumbnail.Outcome {
		t.Error("handler ran after Close")
		return thumbnail.Outcome{}
	}), 1, nil)
	d.Close()
	d.Close()

	out := <-d.Submit(context.Background(), thumbnail.Request{})
	require.NotNil(t, out.Failure)
	assert.ErrorIs(t, out.Err(), ErrClosed)
}

func TestCloseWaitsForInFlight(t *testing.T) {
	var finished atomic.Bool
	started := make(chan struct{})
	d := New(handlerFunc(func(context.Context, thumbnail.Request) thumbnail.Outcome {
		close(started)
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return thumbnail.Outcome{Produced: true}
	}), 1, nil)

	d.Submit(context.Background(), thumbnail.Request{})
	<-started
	d.Close()
	assert.True(t, finished.Load())
}

func TestCanceledWhileWaitingForSlot(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	d := New(handlerFunc(func(context.Context, thumbnail.Request) thumbnail.Outcome {
		<-release
		return thumbnail.Outcome{Produced: true}
	}), 1, nil)
	defer func() {
		once.Do(func() { close(release) })
		d.Close()
	}()

	first := d.Submit(context.Background(), thumbnail.Request{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out := <-d.Submit(ctx, thumbnail.Request{})
	require.NotNil(t, out.Failure)
	assert.ErrorIs(t, out.Err(), context.DeadlineExceeded)

	once.Do(func() { close(release) })
	assert.True(t, (<-first).Produced)
}

func TestGateHoldsWork(t *testing.T) {
	var ran atomic.Bool
	h := handlerFunc(func(context.Context, thumbnail.Request) thumbnail.Outcome {
		ran.Store(true)
		return thumbnail.Outcome{Produced: true}
	})

	d := New(h, 1, blockingGate{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out := <-d.Submit(ctx, thumbnail.Request{})
	d.Close()

	require.NotNil(t, out.Failure)
	assert.False(t, ran.Load())

	stopped := errors.New("stopped")
	d = New(h, 1, blockingGate{err: stopped})
	out = <-d.Submit(context.Background(), thumbnail.Request{})
	d.Close()
	assert.ErrorIs(t, out.Err(), stopped)
}
