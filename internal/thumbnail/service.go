// Package thumbnail runs one thumbnail request end to end: resolve the source
// and destination, extract a bitmap, write it, and report a single Outcome.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"native-thumbnail/internal/extract"
	"native-thumbnail/internal/logging"
	"native-thumbnail/internal/metrics"
	"native-thumbnail/internal/sandbox"
	"native-thumbnail/internal/writer"
)

// Mode picks the extraction pipeline.
type Mode string

const (
	// ModeDefault tries forced cache extraction, then the direct factory.
	ModeDefault Mode = ""
	// ModeLive retrieves asynchronously through the shared cache.
	ModeLive Mode = "live"
)

// ParseMode accepts "", "default" and "live".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "default":
		return ModeDefault, nil
	case "live":
		return ModeLive, nil
	default:
		return ModeDefault, fmt.Errorf("unknown extraction mode %q", s)
	}
}

// Request is one thumbnail request. Paths are logical and may use the
// caller's sandboxed view of the filesystem.
type Request struct {
	Source      string
	Destination string
	// Size is the edge length. When zero, the larger of Width and Height is used.
	Size   int
	Width  int
	Height int
	Format writer.Format
	Mode   Mode
}

// EdgeLength returns the requested length of the longer side.
func (r Request) EdgeLength() int {
	if r.Size > 0 {
		return r.Size
	}
	return max(r.Width, r.Height)
}

// Validate checks the fields that do not need the filesystem.
func (r Request) Validate() error {
	switch {
	case r.Source == "":
		return errors.New("source path is required")
	case r.Destination == "":
		return errors.New("destination path is required")
	case r.EdgeLength() <= 0:
		return fmt.Errorf("invalid thumbnail size %d", r.EdgeLength())
	case r.Format != writer.PNG && r.Format != writer.JPEG:
		return fmt.Errorf("invalid format %d", r.Format)
	case r.Mode != ModeDefault && r.Mode != ModeLive:
		return fmt.Errorf("invalid mode %q", r.Mode)
	}
	return nil
}

// Resolver maps logical paths to physical ones. *sandbox.Resolver satisfies it.
type Resolver interface {
	Source(ctx context.Context, logical string) (sandbox.Resolution, error)
	Destination(ctx context.Context, logical string) (sandbox.Resolution, error)
}

// Extractor produces a bitmap. *extract.Selector satisfies it.
type Extractor interface {
	Select(ctx context.Context, req extract.Request) (*extract.Bitmap, error)
}

// Writer persists a bitmap and releases it. *writer.Writer satisfies it.
type Writer interface {
	Write(ctx context.Context, bmp *extract.Bitmap, dest sandbox.PhysicalPath, format writer.Format) error
}

// Service handles thumbnail requests. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	resolver Resolver
	standard Extractor
	live     Extractor
	writer   Writer
}

// NewService creates a Service. live may be nil, in which case live requests
// use the standard extractor.
func NewService(resolver Resolver, standard, live Extractor, w Writer) *Service {
	return &Service{resolver: resolver, standard: standard, live: live, writer: w}
}

// ExtractThumbnail runs req and reports its Outcome. It never returns a raw
// error: every failure is classified into a Failure category, and content no
// strategy can handle yields Produced false with no Failure.
func (s *Service) ExtractThumbnail(ctx context.Context, req Request) (out Outcome) {
	ctx, trail := logging.WithTrail(ctx)
	start := time.Now()
	defer func() {
		out.RequestID = trail.ID()
		metrics.ThumbnailRequestsTotal.WithLabelValues(out.metricLabel()).Inc()
		metrics.ThumbnailRequestDuration.Observe(time.Since(start).Seconds())
		switch {
		case out.Failure != nil:
			trail.Warnf("request failed after %v: %v", time.Since(start), out.Failure)
		case out.Produced:
			trail.Infof("thumbnail written to %s in %v", out.Destination, time.Since(start))
		default:
			trail.Infof("no thumbnail produced for %s: content not supported", req.Source)
		}
	}()

	trail.Debugf("request %q -> %q (edge %d, %s, mode %q)", req.Source, req.Destination, req.EdgeLength(), req.Format, req.Mode)

	if err := req.Validate(); err != nil {
		return Fail(InvalidRequest, err)
	}

	src, err := s.resolver.Source(ctx, req.Source)
	if err != nil {
		switch {
		case errors.Is(err, sandbox.ErrNotFound):
			return Fail(SourceNotFound, fmt.Errorf("%s: %w", req.Source, err))
		case errors.Is(err, sandbox.ErrEmptyPath):
			return Fail(InvalidRequest, err)
		default:
			return Fail(Unknown, err)
		}
	}

	dst, err := s.resolver.Destination(ctx, req.Destination)
	if err != nil {
		if errors.Is(err, sandbox.ErrEmptyPath) {
			return Fail(InvalidRequest, err)
		}
		return Fail(Unknown, err)
	}

	extractor := s.standard
	if req.Mode == ModeLive && s.live != nil {
		extractor = s.live
	}

	bmp, err := extractor.Select(ctx, extract.Request{Path: src.Path, Edge: req.EdgeLength()})
	if err != nil {
		if errors.Is(err, extract.ErrUnsupported) {
			return Outcome{Source: src.Path.String()}
		}
		failed := Fail(Unknown, err)
		var ex *extract.ExhaustedError
		if errors.As(err, &ex) {
			if last := ex.LastFailed(); last != nil {
				failed.Failure.Code = last.Code
			}
		}
		failed.Source = src.Path.String()
		return failed
	}

	if err := s.writer.Write(ctx, bmp, dst.Path, req.Format); err != nil {
		category := Unknown
		switch {
		case errors.Is(err, writer.ErrDirectory):
			category = DirectoryCreationFailed
		case errors.Is(err, writer.ErrWrite):
			category = WriteFailed
		}
		failed := Fail(category, err)
		failed.Source, failed.Destination = src.Path.String(), dst.Path.String()
		return failed
	}

	return Outcome{Produced: true, Source: src.Path.String(), Destination: dst.Path.String()}
}
