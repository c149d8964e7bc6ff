package media

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"strings"
)

var (
	// ErrUnsupported matches any DecodeError whose content could not be
	// decoded: unknown formats, corrupt files, containers without a video stream.
	ErrUnsupported = errors.New("content not supported")

	// ErrVipsUnavailable is returned when libvips has not been initialized.
	ErrVipsUnavailable = errors.New("libvips not available")

	// ErrFFmpegMissing is returned when the ffmpeg binary cannot be found.
	ErrFFmpegMissing = errors.New("ffmpeg not found")
)

// DecodeError describes a failed decode. Code is an opaque diagnostic string
// for logs and is not meant to be branched on.
type DecodeError struct {
	Decoder     string
	Code        string
	Unsupported bool
	Err         error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Decoder, e.Code, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports unsupported-content errors as ErrUnsupported.
func (e *DecodeError) Is(target error) bool {
	return target == ErrUnsupported && e.Unsupported
}

// IsUnsupported reports whether err means the content cannot be decoded.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// ffmpegUnsupportedMarkers are stderr fragments that mean ffmpeg understood the
// request but the file holds nothing it can turn into a frame.
var ffmpegUnsupportedMarkers = []string{
	"invalid data found when processing input",
	"does not contain any stream",
	"moov atom not found",
	"output file is empty",
	"could not find codec parameters",
	"no decoder found",
	"decoding requested, but no decoder",
	"invalid nal unit size",
	"end of file",
}

// vipsUnsupportedMarkers are libvips load errors for unknown or damaged files.
var vipsUnsupportedMarkers = []string{
	"is not a known file format",
	"unsupported image format",
	"not a known buffer format",
	"premature end of",
	"corrupt",
	"bad header",
	"truncated",
}

func containsAny(s string, markers []string) bool {
	s = strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// classifyGo classifies errors from the Go image decoders used via imaging.
func classifyGo(decoder string, err error) *DecodeError {
	if err == nil {
		return nil
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return de
	}

	var pngErr png.FormatError
	var pngUnsupported png.UnsupportedError
	var jpegErr jpeg.FormatError
	var jpegUnsupported jpeg.UnsupportedError

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &DecodeError{Decoder: decoder, Code: "not_found", Err: err}
	case errors.Is(err, fs.ErrPermission):
		return &DecodeError{Decoder: decoder, Code: "permission", Err: err}
	case errors.Is(err, image.ErrFormat):
		return &DecodeError{Decoder: decoder, Code: "unknown_format", Unsupported: true, Err: err}
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return &DecodeError{Decoder: decoder, Code: "truncated", Unsupported: true, Err: err}
	case errors.As(err, &pngErr), errors.As(err, &jpegErr):
		return &DecodeError{Decoder: decoder, Code: "corrupt", Unsupported: true, Err: err}
	case errors.As(err, &pngUnsupported), errors.As(err, &jpegUnsupported):
		return &DecodeError{Decoder: decoder, Code: "unsupported_feature", Unsupported: true, Err: err}
	case strings.Contains(strings.ToLower(err.Error()), "webp: invalid"):
		return &DecodeError{Decoder: decoder, Code: "corrupt", Unsupported: true, Err: err}
	}
	return &DecodeError{Decoder: decoder, Code: "decode", Err: err}
}

// classifyVips classifies a libvips load or processing error.
func classifyVips(op string, err error) *DecodeError {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrVipsUnavailable) {
		return &DecodeError{Decoder: "vips", Code: "unavailable", Err: err}
	}
	if containsAny(err.Error(), vipsUnsupportedMarkers) {
		return &DecodeError{Decoder: "vips", Code: "vips_" + op, Unsupported: true, Err: err}
	}
	return &DecodeError{Decoder: "vips", Code: "vips_" + op, Err: err}
}

// classifyFFmpeg classifies a failed ffmpeg run from its exit code and stderr.
func classifyFFmpeg(exitCode int, stderr string, err error) *DecodeError {
	switch {
	case errors.Is(err, ErrFFmpegMissing):
		return &DecodeError{Decoder: "ffmpeg", Code: "ffmpeg_missing", Err: err}
	case errors.Is(err, errEmptyFrame):
		return &DecodeError{Decoder: "ffmpeg", Code: "empty_frame", Unsupported: true, Err: err}
	case containsAny(stderr, ffmpegUnsupportedMarkers):
		return &DecodeError{
			Decoder:     "ffmpeg",
			Code:        fmt.Sprintf("ffmpeg_exit_%d", exitCode),
			Unsupported: true,
			Err:         fmt.Errorf("%w: %s", err, lastLine(stderr)),
		}
	case exitCode < 0:
		return &DecodeError{Decoder: "ffmpeg", Code: "ffmpeg_killed", Err: err}
	}
	return &DecodeError{
		Decoder: "ffmpeg",
		Code:    fmt.Sprintf("ffmpeg_exit_%d", exitCode),
		Err:     fmt.Errorf("%w: %s", err, lastLine(stderr)),
	}
}

// lastLine returns the last non-empty line of s; ffmpeg prints the reason
// for failing there.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
