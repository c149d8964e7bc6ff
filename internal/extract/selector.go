// Package extract produces a thumbnail bitmap from a resolved physical path by
// trying extraction strategies in a fixed order.
package extract

import (
	"context"
	"errors"
	"time"

	"native-thumbnail/internal/logging"
	"native-thumbnail/internal/metrics"
	"native-thumbnail/internal/sandbox"
)

// Request is one extraction.
type Request struct {
	Path sandbox.PhysicalPath
	// Edge is the target length of the longer side in pixels.
	Edge int
}

// Strategy is one way of turning a file into a thumbnail. On success the
// caller owns the returned Bitmap.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, req Request) (*Bitmap, error)
}

// Selector tries strategies in order and returns the first success.
type Selector struct {
	strategies []Strategy
}

// NewSelector creates a Selector. Order matters: the first strategy that
// succeeds wins.
func NewSelector(strategies ...Strategy) *Selector {
	return &Selector{strategies: strategies}
}

// Strategies returns the configured strategy names in order.
func (s *Selector) Strategies() []string {
	names := make([]string, len(s.strategies))
	for i, st := range s.strategies {
		names[i] = st.Name()
	}
	return names
}

// Select runs the strategies until one succeeds. Every strategy is tried,
// whatever kind of failure the previous one reported, unless ctx is done. When
// all fail the error is an *ExhaustedError.
func (s *Selector) Select(ctx context.Context, req Request) (*Bitmap, error) {
	trail := logging.Step(ctx, "extract")
	exhausted := &ExhaustedError{}

	for _, st := range s.strategies {
		if err := ctx.Err(); err != nil {
			exhausted.Attempts = append(exhausted.Attempts, classify(st.Name(), err))
			break
		}

		start := time.Now()
		bmp, err := st.Extract(ctx, req)
		metrics.ThumbnailStrategyDuration.WithLabelValues(st.Name()).Observe(time.Since(start).Seconds())

		if err == nil && bmp != nil && bmp.Image() != nil {
			metrics.ThumbnailStrategyAttempts.WithLabelValues(st.Name(), "success").Inc()
			b := bmp.Bounds()
			trail.Debugf("%s strategy produced %dx%d in %v", st.Name(), b.Dx(), b.Dy(), time.Since(start))
			return bmp, nil
		}
		// A failed attempt may still hand over a partial bitmap.
		bmp.Release()
		if err == nil {
			err = &Error{Strategy: st.Name(), Kind: KindFailed, Code: "empty_bitmap", Err: errors.New("strategy returned no image")}
		}

		e := classify(st.Name(), err)
		metrics.ThumbnailStrategyAttempts.WithLabelValues(st.Name(), e.Kind.String()).Inc()
		if e.Kind == KindUnsupported {
			trail.Infof("%s strategy: content not supported (%s)", st.Name(), e.Code)
		} else {
			trail.Warnf("%s strategy failed with code %s: %v", st.Name(), e.Code, e.Err)
		}
		exhausted.Attempts = append(exhausted.Attempts, e)
	}

	return nil, exhausted
}
