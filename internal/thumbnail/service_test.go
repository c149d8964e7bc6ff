package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"native-thumbnail/internal/extract"
	"native-thumbnail/internal/media"
	"native-thumbnail/internal/sandbox"
	"native-thumbnail/internal/writer"
)

const family = "Contoso.Player_8wekyb3d8bbwe"

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

type fixture struct {
	roots sandbox.Roots
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	base := filepath.Join(t.TempDir(), "Packages", family)
	roots := sandbox.Roots{
		LocalCache:   filepath.Join(base, "LocalCache"),
		RoamingState: filepath.Join(base, "RoamingState"),
		LocalState:   filepath.Join(base, "LocalState"),
	}
	for _, d := range roots.All() {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	return fixture{roots: roots}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// newService wires the real resolver, factory strategy and writer.
func newService(fx fixture) *Service {
	decoder := media.NewDecoder(nil)
	selector := extract.NewSelector(extract.FactoryStrategy{Factory: decoder})
	return NewService(sandbox.New(sandbox.StaticRoots(fx.roots)), selector, nil, writer.New(0))
}

type countingExtractor struct {
	calls atomic.Int32
	bmp   func() *extract.Bitmap
	err   error
}

func (c *countingExtractor) Select(context.Context, extract.Request) (*extract.Bitmap, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.bmp(), nil
}

func TestEdgeLength(t *testing.T) {
	tests := []struct {
		req  Request
		want int
	}{
		{Request{Size: 128}, 128},
		{Request{Width: 100, Height: 300}, 300},
		{Request{Size: 64, Width: 500}, 64},
		{Request{}, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.req.EdgeLength())
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("live")
	require.NoError(t, err)
	assert.Equal(t, ModeLive, m)

	m, err = ParseMode("default")
	require.NoError(t, err)
	assert.Equal(t, ModeDefault, m)

	_, err = ParseMode("turbo")
	assert.Error(t, err)
}

// Scenario A: sandboxed source found under the primary cache root.
func TestExtractThumbnailPrimaryRoot(t *testing.T) {
	fx := newFixture(t)
	writePNG(t, filepath.Join(fx.roots.LocalCache, "Local", "player", "art", "cover.png"), 512, 256)

	out := newService(fx).ExtractThumbnail(context.Background(), Request{
		Source:      `C:\Users\bob\AppData\Local\player\art\cover.png`,
		Destination: `C:\Users\bob\AppData\Local\player\thumbs\cover.png`,
		Size:        128,
		Format:      writer.PNG,
	})

	require.Nil(t, out.Failure)
	require.True(t, out.Produced)
	assert.NotEmpty(t, out.RequestID)

	want := filepath.Join(fx.roots.LocalCache, "Local", "player", "thumbs", "cover.png")
	assert.Equal(t, want, out.Destination)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngHeader))

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 128, 64), img.Bounds())
}

// Scenario B: no sandbox marker and nothing on disk.
func TestExtractThumbnailSourceNotFound(t *testing.T) {
	fx := newFixture(t)
	ext := &countingExtractor{}
	svc := NewService(sandbox.New(sandbox.StaticRoots(fx.roots)), ext, nil, writer.New(0))

	out := svc.ExtractThumbnail(context.Background(), Request{
		Source:      filepath.Join(t.TempDir(), "missing.mp4"),
		Destination: filepath.Join(t.TempDir(), "out.png"),
		Size:        128,
	})

	require.NotNil(t, out.Failure)
	assert.Equal(t, SourceNotFound, out.Failure.Category)
	assert.False(t, out.Produced)
	assert.ErrorIs(t, out.Err(), sandbox.ErrNotFound)
	assert.EqualValues(t, 0, ext.calls.Load())
}

// Scenario C: content no decoder understands.
func TestExtractThumbnailUnsupportedContent(t *testing.T) {
	fx := newFixture(t)
	src := filepath.Join(fx.roots.LocalState, "junk.png")
	require.NoError(t, os.WriteFile(src, []byte("definitely not an image"), 0o644))
	dest := filepath.Join(t.TempDir(), "out.png")

	out := newService(fx).ExtractThumbnail(context.Background(), Request{
		Source:      src,
		Destination: dest,
		Size:        128,
	})

	assert.Nil(t, out.Failure)
	assert.False(t, out.Produced)
	assert.NoFileExists(t, dest)
}

func TestExtractThumbnailCorruptVideo(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
	fx := newFixture(t)
	src := filepath.Join(fx.roots.LocalCache, "Roaming", "player", "broken.mp4")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("this is not a video container"), 0o644))

	out := newService(fx).ExtractThumbnail(context.Background(), Request{
		Source:      `C:\Users\bob\AppData\Roaming\player\broken.mp4`,
		Destination: filepath.Join(t.TempDir(), "out.png"),
		Size:        128,
	})

	assert.Nil(t, out.Failure)
	assert.False(t, out.Produced)
}

// Scenario D: destination directories are created.
func TestExtractThumbnailCreatesDestinationDirectory(t *testing.T) {
	fx := newFixture(t)
	src := filepath.Join(t.TempDir(), "photo.png")
	writePNG(t, src, 64, 64)
	dest := filepath.Join(t.TempDir(), "deep", "er", "thumb.jpg")

	out := newService(fx).ExtractThumbnail(context.Background(), Request{
		Source:      src,
		Destination: dest,
		Width:       32,
		Height:      16,
		Format:      writer.JPEG,
	})

	require.Nil(t, out.Failure)
	assert.True(t, out.Produced)
	assert.FileExists(t, dest)
}

func TestExtractThumbnailDirectoryCreationFailed(t *testing.T) {
	fx := newFixture(t)
	src := filepath.Join(t.TempDir(), "photo.png")
	writePNG(t, src, 16, 16)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	out := newService(fx).ExtractThumbnail(context.Background(), Request{
		Source:      src,
		Destination: filepath.Join(blocker, "sub", "thumb.png"),
		Size:        16,
	})

	require.NotNil(t, out.Failure)
	assert.Equal(t, DirectoryCreationFailed, out.Failure.Category)
	assert.ErrorIs(t, out.Err(), writer.ErrDirectory)
}

func TestExtractThumbnailWriteFailed(t *testing.T) {
	fx := newFixture(t)
	src := filepath.Join(t.TempDir(), "photo.png")
	writePNG(t, src, 16, 16)
	dest := filepath.Join(t.TempDir(), "already-a-dir")
	require.NoError(t, os.Mkdir(dest, 0o755))

	out := newService(fx).ExtractThumbnail(context.Background(), Request{Source: src, Destination: dest, Size: 16})

	require.NotNil(t, out.Failure)
	assert.Equal(t, WriteFailed, out.Failure.Category)
}

func TestExtractThumbnailInvalidRequest(t *testing.T) {
	fx := newFixture(t)
	svc := newService(fx)

	tests := []struct {
		name string
		req  Request
	}{
		{"no source", Request{Destination: "d.png", Size: 10}},
		{"no destination", Request{Source: "s.png", Size: 10}},
		{"no size", Request{Source: "s.png", Destination: "d.png"}},
		{"bad format", Request{Source: "s.png", Destination: "d.png", Size: 10, Format: writer.Format(9)}},
		{"bad mode", Request{Source: "s.png", Destination: "d.png", Size: 10, Mode: "turbo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := svc.ExtractThumbnail(context.Background(), tt.req)
			require.NotNil(t, out.Failure)
			assert.Equal(t, InvalidRequest, out.Failure.Category)
		})
	}
}

func TestExtractThumbnailUnknownCarriesCode(t *testing.T) {
	fx := newFixture(t)
	src := filepath.Join(t.TempDir(), "photo.png")
	writePNG(t, src, 16, 16)

	ext := &countingExtractor{err: &extract.ExhaustedError{Attempts: []*extract.Error{
		{Strategy: "cache", Kind: extract.KindUnsupported, Code: "unknown_format", Err: image.ErrFormat},
		{Strategy: "factory", Kind: extract.KindFailed, Code: "path_too_long", Err: errors.New("too long")},
	}}}
	svc := NewService(sandbox.New(sandbox.StaticRoots(fx.roots)), ext, nil, writer.New(0))

	out := svc.ExtractThumbnail(context.Background(), Request{Source: src, Destination: filepath.Join(t.TempDir(), "o.png"), Size: 16})

	require.NotNil(t, out.Failure)
	assert.Equal(t, Unknown, out.Failure.Category)
	assert.Equal(t, "path_too_long", out.Failure.Code)
	assert.Contains(t, out.Failure.Detail, "too long")
}

func TestExtractThumbnailLiveMode(t *testing.T) {
	fx := newFixture(t)
	src := filepath.Join(t.TempDir(), "photo.png")
	writePNG(t, src, 16, 16)

	var released atomic.Int32
	mk := func() *extract.Bitmap {
		return extract.NewBitmap(image.NewRGBA(image.Rect(0, 0, 8, 8)), func() { released.Add(1) })
	}
	standard := &countingExtractor{bmp: mk}
	live := &countingExtractor{bmp: mk}
	svc := NewService(sandbox.New(sandbox.StaticRoots(fx.roots)), standard, live, writer.New(0))

	out := svc.ExtractThumbnail(context.Background(), Request{
		Source:      src,
		Destination: filepath.Join(t.TempDir(), "o.png"),
		Size:        8,
		Mode:        ModeLive,
	})

	require.True(t, out.Produced)
	assert.EqualValues(t, 1, live.calls.Load())
	assert.EqualValues(t, 0, standard.calls.Load())
	assert.EqualValues(t, 1, released.Load())
}

func TestFailureCategoryStatus(t *testing.T) {
	assert.Equal(t, 404, SourceNotFound.HTTPStatus())
	assert.Equal(t, 400, InvalidRequest.HTTPStatus())
	assert.Equal(t, 500, WriteFailed.HTTPStatus())
	assert.Equal(t, 500, Unknown.HTTPStatus())
}
