// Package media decodes source files into scaled preview images.
//
// Images are decoded with libvips (decode-time shrinking) when it has been
// initialized, then with the Go decoders through imaging, then with ffmpeg as a
// last resort. Videos are handed to ffmpeg, which seeks past the first second
// (or to the middle of shorter clips, as reported by ffprobe) and writes one
// scaled PNG frame to stdout.
//
// Every failure is a *DecodeError. Errors for content that no decoder can
// handle (unknown formats, corrupt or truncated files, containers without a
// video stream) match ErrUnsupported; everything else carries an opaque Code
// for logging.
package media
