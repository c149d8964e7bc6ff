// Package bootstrap assembles the thumbnail pipeline from a Config. The HTTP
// server and the command-line tool share it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"native-thumbnail/internal/extract"
	"native-thumbnail/internal/filesystem"
	"native-thumbnail/internal/logging"
	"native-thumbnail/internal/media"
	"native-thumbnail/internal/metrics"
	"native-thumbnail/internal/sandbox"
	"native-thumbnail/internal/startup"
	"native-thumbnail/internal/thumbcache"
	"native-thumbnail/internal/thumbnail"
	"native-thumbnail/internal/writer"
)

// App is the assembled pipeline.
type App struct {
	Resolver *sandbox.Resolver
	Decoder  *media.Decoder
	// Cache is nil when the cache is disabled or failed to open.
	Cache    *thumbcache.Cache
	Standard *extract.Selector
	Live     *extract.Selector
	Writer   *writer.Writer
	Service  *thumbnail.Service

	CacheOpenDuration time.Duration
}

// New builds the pipeline. A cache that fails to open is logged and skipped;
// extraction then goes straight to the decoder.
func New(ctx context.Context, cfg *startup.Config) (*App, error) {
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"sandbox": cfg.LocalCacheRoot,
		"cache":   cfg.CacheDir,
	}))

	app := &App{
		Resolver: sandbox.New(cfg.RootsProvider()),
		Decoder: media.NewDecoder(&media.FFmpeg{
			Binary:      cfg.FFmpegPath,
			ProbeBinary: cfg.FFprobePath,
			Timeout:     cfg.FFmpegTimeout,
		}),
		Writer: writer.New(cfg.JPEGQuality),
	}

	if cfg.CacheEnabled {
		start := time.Now()
		cache, err := thumbcache.Open(ctx, cfg.CacheDir, app.Decoder)
		if err != nil {
			logging.Warn("Thumbnail cache unavailable, continuing without it: %v", err)
		} else {
			app.Cache = cache
			app.CacheOpenDuration = time.Since(start)
		}
	}

	factory := extract.FactoryStrategy{Factory: app.Decoder}
	if app.Cache != nil {
		app.Standard = extract.NewSelector(extract.CacheStrategy{Cache: app.Cache}, factory)
		// Live retrieval is exclusive: it never falls back to the other strategies.
		app.Live = extract.NewSelector(extract.LiveStrategy{Cache: app.Cache})
	} else {
		app.Standard = extract.NewSelector(factory)
	}

	// A nil Live makes live requests use the standard selector.
	var live thumbnail.Extractor
	if app.Live != nil {
		live = app.Live
	}
	app.Service = thumbnail.NewService(app.Resolver, app.Standard, live, app.Writer)

	logging.Debug("Extraction strategies: %v", app.Standard.Strategies())
	return app, nil
}

// StatsProvider returns the cache as a metrics.StatsProvider, or nil.
func (a *App) StatsProvider() metrics.StatsProvider {
	if a.Cache == nil {
		return nil
	}
	return a.Cache
}

// PurgeCache removes cache entries older than maxAge.
func (a *App) PurgeCache(ctx context.Context, maxAge time.Duration) {
	if a.Cache == nil || maxAge <= 0 {
		return
	}
	n, err := a.Cache.Purge(ctx, maxAge)
	if err != nil {
		logging.Warn("Cache purge failed: %v", err)
		return
	}
	if n > 0 {
		logging.Info("Purged %d cached thumbnails older than %v", n, maxAge)
	}
}

// Close releases the cache.
func (a *App) Close() error {
	if a.Cache == nil {
		return nil
	}
	if err := a.Cache.Close(); err != nil {
		return fmt.Errorf("close thumbnail cache: %w", err)
	}
	return nil
}
