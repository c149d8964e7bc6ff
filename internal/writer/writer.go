// Package writer encodes an extracted thumbnail to its destination file.
package writer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"native-thumbnail/internal/extract"
	"native-thumbnail/internal/filesystem"
	"native-thumbnail/internal/logging"
	"native-thumbnail/internal/metrics"
	"native-thumbnail/internal/sandbox"
)

// DefaultJPEGQuality is used when Writer.JPEGQuality is unset.
const DefaultJPEGQuality = 85

var (
	// ErrDirectory means the destination directory could not be created.
	ErrDirectory = errors.New("failed to create destination directory")
	// ErrWrite means the file could not be created, encoded or closed.
	ErrWrite = errors.New("failed to write thumbnail")
	// ErrNoImage means the bitmap held no image.
	ErrNoImage = errors.New("bitmap has no image")
)

// Format is an output encoding.
type Format int

const (
	PNG Format = iota
	JPEG
)

func (f Format) String() string {
	if f == JPEG {
		return "jpeg"
	}
	return "png"
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ParseFormat accepts png, jpg and jpeg in any case. An empty string is PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	default:
		return PNG, fmt.Errorf("unknown thumbnail format %q", s)
	}
}

func (f Format) imaging() imaging.Format {
	if f == JPEG {
		return imaging.JPEG
	}
	return imaging.PNG
}

// Writer writes bitmaps to files.
type Writer struct {
	JPEGQuality int
	Retry       filesystem.RetryConfig
}

// New creates a Writer with the given JPEG quality; values outside 1..100 use
// DefaultJPEGQuality.
func New(jpegQuality int) *Writer {
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return &Writer{JPEGQuality: jpegQuality, Retry: filesystem.DefaultRetryConfig()}
}

// Write encodes bmp to dest, creating the parent directory if needed. The
// bitmap is released before Write returns, whatever the outcome. A partially
// written file is left in place on failure.
func (w *Writer) Write(ctx context.Context, bmp *extract.Bitmap, dest sandbox.PhysicalPath, format Format) (err error) {
	defer bmp.Release()

	trail := logging.Step(ctx, "write")
	label := format.String()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.ThumbnailWritesTotal.WithLabelValues(label, status).Inc()
	}()

	img := bmp.Image()
	if img == nil {
		return fmt.Errorf("%w: %w", ErrWrite, ErrNoImage)
	}

	path := dest.String()
	dir := filepath.Dir(path)
	if err := filesystem.EnsureDir(dir, w.Retry); err != nil {
		trail.Warnf("cannot create %s: %v", dir, err)
		return fmt.Errorf("%w %s: %w", ErrDirectory, dir, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	var opts []imaging.EncodeOption
	if format == JPEG {
		opts = append(opts, imaging.JPEGQuality(w.JPEGQuality))
	}
	if err := imaging.Encode(f, img, format.imaging(), opts...); err != nil {
		if closeErr := f.Close(); closeErr != nil {
			trail.Debugf("failed to close %s after encode error: %v", path, closeErr)
		}
		return fmt.Errorf("%w: encode %s: %w", ErrWrite, label, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	if info, statErr := os.Stat(path); statErr == nil {
		metrics.ThumbnailWriteBytes.WithLabelValues(label).Observe(float64(info.Size()))
		b := img.Bounds()
		trail.Debugf("wrote %dx%d %s (%d bytes) to %s", b.Dx(), b.Dy(), label, info.Size(), path)
	}
	return nil
}
