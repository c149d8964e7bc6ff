package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"time"

	"native-thumbnail/internal/logging"
	"native-thumbnail/internal/metrics"
)

// DefaultFrameOffset is how far into a video the frame is taken, so title
// cards and fade-ins are skipped.
const DefaultFrameOffset = time.Second

var errEmptyFrame = errors.New("ffmpeg produced no output")

// FFmpeg runs the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	// Binary and ProbeBinary default to "ffmpeg" and "ffprobe" on PATH.
	Binary      string
	ProbeBinary string
	// Timeout bounds a single invocation. Zero means no limit beyond ctx.
	Timeout time.Duration
}

func (f *FFmpeg) binary() string {
	if f == nil || f.Binary == "" {
		return "ffmpeg"
	}
	return f.Binary
}

func (f *FFmpeg) probeBinary() string {
	if f == nil || f.ProbeBinary == "" {
		return "ffprobe"
	}
	return f.ProbeBinary
}

func (f *FFmpeg) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f == nil || f.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.Timeout)
}

// ProbeResult is the subset of ffprobe output used to pick a frame.
type ProbeResult struct {
	Duration    time.Duration
	Width       int
	Height      int
	Codec       string
	HasVideo    bool
	StreamCount int
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	res := &ProbeResult{StreamCount: len(out.Streams)}
	for _, s := range out.Streams {
		if s.CodecType != "video" || res.HasVideo {
			continue
		}
		res.HasVideo = true
		res.Codec = s.CodecName
		res.Width = s.Width
		res.Height = s.Height
	}
	if out.Format.Duration != "" {
		if secs, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil && secs > 0 {
			res.Duration = time.Duration(secs * float64(time.Second))
		}
	}
	return res, nil
}

// Probe reads stream information with ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	bin, err := exec.LookPath(f.probeBinary())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFmpegMissing, err)
	}

	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}
	return parseProbeOutput(stdout.Bytes())
}

// frameOffset picks the seek position: DefaultFrameOffset, or the middle of
// clips shorter than twice that.
func frameOffset(duration time.Duration) time.Duration {
	if duration <= 0 || duration >= 2*DefaultFrameOffset {
		return DefaultFrameOffset
	}
	return duration / 2
}

func scaleFilter(edge int) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", edge, edge)
}

// run executes ffmpeg and decodes the PNG it writes to stdout. Errors are
// *DecodeError.
func (f *FFmpeg) run(ctx context.Context, args []string) (image.Image, error) {
	bin, err := exec.LookPath(f.binary())
	if err != nil {
		return nil, classifyFFmpeg(0, "", fmt.Errorf("%w: %v", ErrFFmpegMissing, err))
	}

	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			code := "canceled"
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				code = "ffmpeg_timeout"
			}
			return nil, &DecodeError{Decoder: "ffmpeg", Code: code, Err: ctxErr}
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, classifyFFmpeg(exitCode, stderr.String(), err)
	}

	if stdout.Len() == 0 {
		return nil, classifyFFmpeg(0, stderr.String(), errEmptyFrame)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, &DecodeError{Decoder: "ffmpeg", Code: "decode_output", Err: fmt.Errorf("failed to decode ffmpeg output: %w", err)}
	}
	return img, nil
}

// ExtractFrame grabs a single frame from a video, scaled to fit edge×edge.
// A failed seek is retried from the first frame.
func (f *FFmpeg) ExtractFrame(ctx context.Context, path string, edge int) (image.Image, error) {
	start := time.Now()
	defer func() {
		metrics.ThumbnailFFmpegDuration.WithLabelValues("video").Observe(time.Since(start).Seconds())
	}()

	offset := DefaultFrameOffset
	if probe, err := f.Probe(ctx, path); err == nil {
		if !probe.HasVideo && probe.StreamCount > 0 {
			return nil, &DecodeError{Decoder: "ffmpeg", Code: "no_video_stream", Unsupported: true, Err: errors.New("file has no video stream")}
		}
		offset = frameOffset(probe.Duration)
	} else {
		logging.Debug("ffprobe failed for %s, seeking to default offset: %v", path, err)
	}

	img, err := f.run(ctx, []string{
		"-hide_banner",
		"-ss", formatOffset(offset),
		"-i", path,
		"-frames:v", "1",
		"-vf", scaleFilter(edge),
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	})
	if err == nil {
		return img, nil
	}

	var de *DecodeError
	if errors.As(err, &de) && (de.Code == "ffmpeg_missing" || de.Code == "ffmpeg_timeout" || de.Code == "canceled") {
		return nil, err
	}

	logging.Debug("FFmpeg seek attempt failed for %s: %v, retrying from first frame", path, err)

	return f.run(ctx, []string{
		"-hide_banner",
		"-i", path,
		"-frames:v", "1",
		"-vf", scaleFilter(edge),
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	})
}

// DecodeImage decodes a still image that the Go decoders and libvips reject,
// scaled to fit edge×edge.
func (f *FFmpeg) DecodeImage(ctx context.Context, path string, edge int) (image.Image, error) {
	start := time.Now()
	defer func() {
		metrics.ThumbnailFFmpegDuration.WithLabelValues("image").Observe(time.Since(start).Seconds())
	}()

	return f.run(ctx, []string{
		"-hide_banner",
		"-i", path,
		"-frames:v", "1",
		"-vf", scaleFilter(edge),
		"-f", "image2pipe",
		"-vcodec", "png",
		"-pix_fmt", "rgba",
		"-",
	})
}

func formatOffset(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
