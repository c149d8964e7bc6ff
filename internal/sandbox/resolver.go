// Package sandbox maps paths written in an app's sandboxed view of the
// filesystem (AppData\Roaming\..., AppData\Local\...) to the physical paths
// that decoders can open.
package sandbox

import (
	"context"
	"errors"
	"strings"

	"native-thumbnail/internal/filesystem"
	"native-thumbnail/internal/logging"
	"native-thumbnail/internal/metrics"
	"native-thumbnail/internal/pathutil"
)

var (
	// ErrNotFound means no candidate for a source path exists.
	ErrNotFound = errors.New("source file not found")
	// ErrEmptyPath is returned for an empty logical path.
	ErrEmptyPath = errors.New("empty path")
)

// PhysicalPath is a path the extraction layer can open directly. Only this
// package constructs one.
type PhysicalPath struct {
	p string
}

// String returns the path.
func (p PhysicalPath) String() string {
	return p.p
}

// IsZero reports whether p is unset.
func (p PhysicalPath) IsZero() bool {
	return p.p == ""
}

// Method records how a path was resolved.
type Method string

const (
	MethodPhysical  Method = "physical"
	MethodSandbox   Method = "sandbox"
	MethodDirect    Method = "direct"
	MethodBestGuess Method = "best_guess"
)

// Resolution is the result of resolving one logical path.
type Resolution struct {
	Path   PhysicalPath
	Method Method
	// Candidate is set when Method is MethodSandbox or MethodBestGuess.
	Candidate *Candidate
}

// Resolver turns logical paths into physical ones.
type Resolver struct {
	roots RootsProvider
	retry filesystem.RetryConfig
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRetryConfig overrides the retry policy used for existence probes.
func WithRetryConfig(c filesystem.RetryConfig) Option {
	return func(r *Resolver) { r.retry = c }
}

// New creates a Resolver backed by roots.
func New(roots RootsProvider, opts ...Option) *Resolver {
	if roots == nil {
		roots = StaticRoots{}
	}
	r := &Resolver{roots: roots, retry: filesystem.DefaultRetryConfig()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) currentRoots(ctx context.Context, trail *logging.Trail) Roots {
	roots, err := r.roots.Roots(ctx)
	if err != nil {
		trail.Debugf("sandbox roots unavailable: %v", err)
		return Roots{}
	}
	return roots
}

func (r *Resolver) fileExists(p string) bool {
	return filesystem.IsRegularFile(pathutil.ForProbe(p), r.retry)
}

func (r *Resolver) dirExists(p string) bool {
	return filesystem.IsDir(pathutil.ForProbe(p), r.retry)
}

// Source resolves the path of an existing file. It checks, in order: paths that
// are already physical, sandbox-root substitutions in priority order, and the
// logical path itself. It returns ErrNotFound when none exist.
func (r *Resolver) Source(ctx context.Context, logical string) (Resolution, error) {
	trail := logging.Step(ctx, "resolve source")
	logical = strings.TrimSpace(logical)
	if logical == "" {
		return Resolution{}, ErrEmptyPath
	}
	trail.Debugf("logical path %q", logical)

	roots := r.currentRoots(ctx, trail)

	if IsPhysical(logical, roots) {
		if r.fileExists(logical) {
			trail.Debugf("already physical: %s", logical)
			record("source", MethodPhysical, "found")
			return Resolution{Path: PhysicalPath{logical}, Method: MethodPhysical}, nil
		}
		trail.Infof("physical path does not exist: %s", logical)
		record("source", MethodPhysical, "not_found")
		return Resolution{}, ErrNotFound
	}

	candidates := Candidates(logical, roots)
	for i := range candidates {
		c := candidates[i]
		if r.fileExists(c.Path) {
			trail.Debugf("sandbox candidate %d (%s/%s) exists: %s", i, c.Root, c.Rule, c.Path)
			record("source", MethodSandbox, "found")
			return Resolution{Path: PhysicalPath{c.Path}, Method: MethodSandbox, Candidate: &c}, nil
		}
		trail.Debugf("sandbox candidate %d (%s/%s) missing: %s", i, c.Root, c.Rule, c.Path)
	}

	if r.fileExists(logical) {
		trail.Debugf("direct probe hit: %s", logical)
		record("source", MethodDirect, "found")
		return Resolution{Path: PhysicalPath{logical}, Method: MethodDirect}, nil
	}

	trail.Infof("no physical file for %q after %d candidates", logical, len(candidates))
	record("source", MethodDirect, "not_found")
	return Resolution{}, ErrNotFound
}

// Destination resolves where an output file should go. It never reports
// ErrNotFound: without an existing match it returns its best guess and leaves
// directory creation to the writer.
func (r *Resolver) Destination(ctx context.Context, logical string) (Resolution, error) {
	trail := logging.Step(ctx, "resolve destination")
	logical = strings.TrimSpace(logical)
	if logical == "" {
		return Resolution{}, ErrEmptyPath
	}

	roots := r.currentRoots(ctx, trail)

	if IsPhysical(logical, roots) {
		record("destination", MethodPhysical, "found")
		return Resolution{Path: PhysicalPath{logical}, Method: MethodPhysical}, nil
	}

	candidates := Candidates(logical, roots)
	for i := range candidates {
		c := candidates[i]
		if r.dirExists(roots.Get(c.Root)) {
			trail.Debugf("destination via %s: %s", c.Root, c.Path)
			record("destination", MethodSandbox, "found")
			return Resolution{Path: PhysicalPath{c.Path}, Method: MethodSandbox, Candidate: &c}, nil
		}
	}
	if len(candidates) > 0 {
		c := candidates[0]
		trail.Debugf("no sandbox root exists, guessing %s", c.Path)
		record("destination", MethodBestGuess, "found")
		return Resolution{Path: PhysicalPath{c.Path}, Method: MethodBestGuess, Candidate: &c}, nil
	}

	record("destination", MethodDirect, "found")
	return Resolution{Path: PhysicalPath{logical}, Method: MethodDirect}, nil
}

func record(target string, method Method, result string) {
	metrics.SandboxResolutionsTotal.WithLabelValues(target, string(method), result).Inc()
}
