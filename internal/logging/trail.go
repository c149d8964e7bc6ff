package logging

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Trail is the diagnostic trail of a single thumbnail request: an ID plus the
// label of the step currently running. It lives in the request context and is
// never shared between requests.
type Trail struct {
	id string

	mu    sync.Mutex
	step  string
	steps []string
}

type trailKey struct{}

// NewTrail creates a trail with a fresh request ID.
func NewTrail() *Trail {
	return &Trail{id: uuid.NewString()[:8]}
}

// WithTrail returns a context carrying a new trail, unless ctx already has one.
func WithTrail(ctx context.Context) (context.Context, *Trail) {
	if t := TrailFrom(ctx); t != nil {
		return ctx, t
	}
	t := NewTrail()
	return context.WithValue(ctx, trailKey{}, t), t
}

// WithTrailID is WithTrail with a caller-supplied request ID, such as one
// propagated in an X-Request-ID header. An empty id yields a fresh one, and an
// existing trail in ctx is kept.
func WithTrailID(ctx context.Context, id string) (context.Context, *Trail) {
	if t := TrailFrom(ctx); t != nil {
		return ctx, t
	}
	if id == "" {
		return WithTrail(ctx)
	}
	t := &Trail{id: id}
	return context.WithValue(ctx, trailKey{}, t), t
}

// TrailFrom returns the trail stored in ctx, or nil.
func TrailFrom(ctx context.Context) *Trail {
	if ctx == nil {
		return nil
	}
	t, _ := ctx.Value(trailKey{}).(*Trail)
	return t
}

// Step marks the start of a named step on the trail in ctx and returns the trail.
// A context without a trail yields a detached trail so callers never nil-check.
func Step(ctx context.Context, label string) *Trail {
	t := TrailFrom(ctx)
	if t == nil {
		t = NewTrail()
	}
	t.mu.Lock()
	t.step = label
	t.steps = append(t.steps, label)
	t.mu.Unlock()
	t.Debugf("begin")
	return t
}

// ID returns the request ID.
func (t *Trail) ID() string {
	return t.id
}

// Current returns the label of the step in progress.
func (t *Trail) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.step
}

// Steps returns every step label recorded so far, in order.
func (t *Trail) Steps() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.steps...)
}

func (t *Trail) prefix() string {
	step := t.Current()
	if step == "" {
		step = "-"
	}
	return "[req=" + t.id + " step=" + step + "] "
}

// Debugf logs at debug level with the trail prefix.
func (t *Trail) Debugf(format string, args ...interface{}) {
	Debug(t.prefix()+format, args...)
}

// Infof logs at info level with the trail prefix.
func (t *Trail) Infof(format string, args ...interface{}) {
	Info(t.prefix()+format, args...)
}

// Warnf logs at warn level with the trail prefix.
func (t *Trail) Warnf(format string, args ...interface{}) {
	Warn(t.prefix()+format, args...)
}

// Errorf logs at error level with the trail prefix.
func (t *Trail) Errorf(format string, args ...interface{}) {
	Error(t.prefix()+format, args...)
}
