// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration comes from defaults, then an optional YAML file named by
// CONFIG_FILE, then environment variables, each layer overriding the last.
// [Load] does this quietly; [LoadConfig] also logs the result and prepares
// the cache directory.
//
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - CACHE_ENABLED: Use the shared thumbnail cache (default: true)
//   - CACHE_DIR: Thumbnail cache directory (default: /cache)
//   - CACHE_MAX_AGE: Entries older than this are purged at startup (default: 720h)
//   - PACKAGE_FAMILY: Package family name used to locate the sandbox under LOCALAPPDATA
//   - LOCAL_CACHE_ROOT, ROAMING_STATE_ROOT, LOCAL_STATE_ROOT: Explicit sandbox roots
//   - THUMBNAIL_WORKERS: Concurrent extractions (default: derived from GOMAXPROCS)
//   - THUMBNAIL_WORKER_LIMIT: Upper bound on the derived worker count (default: 8)
//   - JPEG_QUALITY: JPEG encoder quality, 1-100 (default: 85)
//   - FFMPEG_PATH, FFPROBE_PATH: Binaries used for video frames (default: on PATH)
//   - FFMPEG_TIMEOUT: Bound on one ffmpeg invocation (default: 30s)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// A config file looks like:
//
//	port: "8080"
//	cache:
//	  dir: /var/cache/thumbs
//	  max_age: 168h
//	sandbox:
//	  package_family: Contoso.Player_8wekyb3d8bbwe
//	thumbnails:
//	  worker_limit: 4
//	  jpeg_quality: 90
//	ffmpeg:
//	  timeout: 10s
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogMemoryConfig]: Memory limit configuration
//   - [LogDecoderInit]: libvips and FFmpeg availability
//   - [LogCacheInit]: Thumbnail cache setup
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
