package media

import (
	"context"
	"errors"
	"fmt"
	"image"

	"native-thumbnail/internal/logging"
	"native-thumbnail/internal/mediatypes"
	"native-thumbnail/internal/metrics"
)

// Decoder turns a source file into a scaled preview image. Images go through
// libvips, then the Go decoders, then ffmpeg; videos go through ffmpeg.
type Decoder struct {
	FFmpeg *FFmpeg
	// MaxDimension and MaxPixels bound the Go decoder path before scaling.
	MaxDimension int
	MaxPixels    int
}

// NewDecoder creates a Decoder with the default image limits.
func NewDecoder(ff *FFmpeg) *Decoder {
	return &Decoder{
		FFmpeg:       ff,
		MaxDimension: MaxImageDimension,
		MaxPixels:    MaxImagePixels,
	}
}

func record(decoder string, err error) {
	status := "success"
	switch {
	case err == nil:
	case IsUnsupported(err):
		status = "unsupported"
	default:
		status = "error"
	}
	metrics.ThumbnailDecodeTotal.WithLabelValues(decoder, status).Inc()
}

// toolMissing reports errors that say nothing about the file itself.
func toolMissing(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) && (de.Code == "unavailable" || de.Code == "ffmpeg_missing")
}

// pick returns the most informative of errs: the last one caused by the file
// rather than by a missing tool.
func pick(errs []error) error {
	for i := len(errs) - 1; i >= 0; i-- {
		if !toolMissing(errs[i]) {
			return errs[i]
		}
	}
	if len(errs) > 0 {
		return errs[len(errs)-1]
	}
	return nil
}

// Thumbnail decodes path so that its longer side is at most edge. Returned
// errors are *DecodeError; IsUnsupported tells content the decoders cannot
// handle apart from other failures.
func (d *Decoder) Thumbnail(ctx context.Context, path string, edge int) (image.Image, error) {
	if edge <= 0 {
		return nil, &DecodeError{Decoder: "media", Code: "invalid_size", Err: fmt.Errorf("edge length %d", edge)}
	}

	switch kind := TypeOf(path); kind {
	case mediatypes.FileTypeVideo:
		logging.Debug("Extracting video frame: %s (edge %d)", path, edge)
		img, err := d.FFmpeg.ExtractFrame(ctx, path, edge)
		record("ffmpeg", err)
		return img, err
	default:
		logging.Debug("Decoding %s as %s (edge %d)", path, kind, edge)
		return d.image(ctx, path, edge)
	}
}

func (d *Decoder) image(ctx context.Context, path string, edge int) (image.Image, error) {
	var errs []error

	if IsVipsAvailable() {
		img, err := LoadImageWithVips(path, edge)
		record("vips", err)
		if err == nil {
			return img, nil
		}
		logging.Debug("vips failed for %s: %v, trying imaging", path, err)
		errs = append(errs, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, &DecodeError{Decoder: "media", Code: "canceled", Err: err}
	}

	img, err := LoadImageConstrained(path, d.MaxDimension, d.MaxPixels)
	record("imaging", err)
	if err == nil {
		return FitEdge(img, edge, false), nil
	}
	logging.Debug("imaging failed for %s: %v, trying ffmpeg", path, err)
	errs = append(errs, err)

	var de *DecodeError
	if errors.As(err, &de) && (de.Code == "not_found" || de.Code == "permission") {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, &DecodeError{Decoder: "media", Code: "canceled", Err: err}
	}

	img, err = d.FFmpeg.DecodeImage(ctx, path, edge)
	record("ffmpeg", err)
	if err == nil {
		return img, nil
	}
	errs = append(errs, err)

	return nil, pick(errs)
}
