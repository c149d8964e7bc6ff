package media

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"native-thumbnail/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsLogging maps the application log level onto the libvips log level and a
// handler that forwards the messages that pass it.
func vipsLogging(level logging.LogLevel) (vips.LogLevel, func(string, vips.LogLevel, string)) {
	forward := func(min vips.LogLevel) func(string, vips.LogLevel, string) {
		return func(domain string, l vips.LogLevel, msg string) {
			if l < min {
				return
			}
			switch l {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			default:
				logging.Debug("[%s] %s", domain, msg)
			}
		}
	}

	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo, forward(vips.LogLevelInfo)
	case logging.LevelWarn:
		return vips.LogLevelError, forward(vips.LogLevelError)
	case logging.LevelError:
		return vips.LogLevelCritical, forward(vips.LogLevelCritical)
	default:
		return vips.LogLevelWarning, forward(vips.LogLevelWarning)
	}
}

// InitVips initializes the libvips library
// This should be called once at startup
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging BEFORE Startup() so LOG_LEVEL applies to startup messages
	vipsLevel, handler := vipsLogging(logging.GetLevel())
	vips.LoggingSettings(handler, vipsLevel)

	// Conservative memory settings; concurrency comes from the dispatcher instead
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// LoadImageWithVips loads path and shrinks it to fit within edge×edge using
// libvips decode-time shrinking. Errors are *DecodeError.
func LoadImageWithVips(path string, edge int) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, classifyVips("load", ErrVipsUnavailable)
	}

	logging.Debug("Loading %s with vips (edge: %d)", filepath.Base(path), edge)

	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, classifyVips("load", fmt.Errorf("vips failed to load image: %w", err))
	}
	defer ref.Close()

	logging.Debug("Vips loaded %s: %dx%d", filepath.Base(path), ref.Width(), ref.Height())

	// Thumbnail keeps the aspect ratio; the box is edge×edge.
	if err := ref.Thumbnail(edge, edge, vips.InterestingNone); err != nil {
		return nil, classifyVips("resize", fmt.Errorf("vips resize failed: %w", err))
	}

	// PNG keeps alpha and avoids a second lossy pass before the writer encodes.
	buf, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, classifyVips("export", fmt.Errorf("vips export failed: %w", err))
	}

	img, err := imaging.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, classifyVips("export", fmt.Errorf("failed to decode vips output: %w", err))
	}

	logging.Debug("Vips processing complete for %s: final size %dx%d",
		filepath.Base(path), img.Bounds().Dx(), img.Bounds().Dy())

	return img, nil
}
