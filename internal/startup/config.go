package startup

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"native-thumbnail/internal/logging"
	"native-thumbnail/internal/workers"
)

// Defaults
const (
	DefaultPort          = "8080"
	DefaultMetricsPort   = "9090"
	DefaultCacheDir      = "/cache"
	DefaultWorkerLimit   = 8
	DefaultJPEGQuality   = 85
	DefaultFFmpegTimeout = 30 * time.Second
	DefaultCacheMaxAge   = 30 * 24 * time.Hour
)

// Config holds all application configuration
type Config struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	// CacheDir holds the shared thumbnail cache.
	CacheDir     string
	CacheMaxAge  time.Duration
	CacheEnabled bool

	// PackageFamily selects the sandbox roots under %LOCALAPPDATA%\Packages.
	PackageFamily string
	// Explicit roots. They take precedence over the LOCALAPPDATA layout.
	LocalCacheRoot   string
	RoamingStateRoot string
	LocalStateRoot   string

	Workers       int
	WorkerLimit   int
	JPEGQuality   int
	FFmpegPath    string
	FFprobePath   string
	FFmpegTimeout time.Duration

	// ConfigFile is the YAML file the values were read from, if any.
	ConfigFile string
}

// FileConfig is the YAML layout of CONFIG_FILE. Environment variables override
// every field.
type FileConfig struct {
	Port            string `yaml:"port"`
	MetricsPort     string `yaml:"metrics_port"`
	MetricsEnabled  *bool  `yaml:"metrics_enabled"`
	LogHealthChecks *bool  `yaml:"log_health_checks"`

	Cache struct {
		Enabled *bool         `yaml:"enabled"`
		Dir     string        `yaml:"dir"`
		MaxAge  time.Duration `yaml:"max_age"`
	} `yaml:"cache"`

	Sandbox struct {
		PackageFamily string `yaml:"package_family"`
		LocalCache    string `yaml:"local_cache"`
		RoamingState  string `yaml:"roaming_state"`
		LocalState    string `yaml:"local_state"`
	} `yaml:"sandbox"`

	Thumbnails struct {
		Workers     int `yaml:"workers"`
		WorkerLimit int `yaml:"worker_limit"`
		JPEGQuality int `yaml:"jpeg_quality"`
	} `yaml:"thumbnails"`

	FFmpeg struct {
		Path      string        `yaml:"path"`
		ProbePath string        `yaml:"probe_path"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"ffmpeg"`
}

// ReadFileConfig parses a YAML config file. A missing or empty file yields a
// zero FileConfig.
func ReadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fc, nil
		}
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fc, nil
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

// Load builds the configuration from defaults, then CONFIG_FILE, then the
// environment. It does no directory checks and prints nothing.
func Load(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:            DefaultPort,
		MetricsPort:     DefaultMetricsPort,
		MetricsEnabled:  true,
		LogHealthChecks: true,
		CacheDir:        DefaultCacheDir,
		CacheEnabled:    true,
		CacheMaxAge:     DefaultCacheMaxAge,
		WorkerLimit:     DefaultWorkerLimit,
		JPEGQuality:     DefaultJPEGQuality,
		FFmpegPath:      "ffmpeg",
		FFprobePath:     "ffprobe",
		FFmpegTimeout:   DefaultFFmpegTimeout,
	}

	if path := getenv("CONFIG_FILE"); path != "" {
		fc, err := ReadFileConfig(path)
		if err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
		cfg.applyFile(fc)
	}

	env := envReader{getenv: getenv}
	cfg.Port = env.str("PORT", cfg.Port)
	cfg.MetricsPort = env.str("METRICS_PORT", cfg.MetricsPort)
	cfg.MetricsEnabled = env.boolean("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.LogHealthChecks = env.boolean("LOG_HEALTH_CHECKS", cfg.LogHealthChecks)
	cfg.CacheEnabled = env.boolean("CACHE_ENABLED", cfg.CacheEnabled)
	cfg.CacheDir = env.str("CACHE_DIR", cfg.CacheDir)
	cfg.CacheMaxAge = env.duration("CACHE_MAX_AGE", cfg.CacheMaxAge)
	cfg.PackageFamily = env.str("PACKAGE_FAMILY", cfg.PackageFamily)
	cfg.LocalCacheRoot = env.str("LOCAL_CACHE_ROOT", cfg.LocalCacheRoot)
	cfg.RoamingStateRoot = env.str("ROAMING_STATE_ROOT", cfg.RoamingStateRoot)
	cfg.LocalStateRoot = env.str("LOCAL_STATE_ROOT", cfg.LocalStateRoot)
	cfg.WorkerLimit = env.integer("THUMBNAIL_WORKER_LIMIT", cfg.WorkerLimit)
	cfg.JPEGQuality = env.integer("JPEG_QUALITY", cfg.JPEGQuality)
	cfg.FFmpegPath = env.str("FFMPEG_PATH", cfg.FFmpegPath)
	cfg.FFprobePath = env.str("FFPROBE_PATH", cfg.FFprobePath)
	cfg.FFmpegTimeout = env.duration("FFMPEG_TIMEOUT", cfg.FFmpegTimeout)

	// THUMBNAIL_WORKERS is read by the workers package; a file value only
	// applies when the variable is unset.
	if cfg.Workers <= 0 || getenv(workers.EnvOverride) != "" {
		cfg.Workers = workers.CountFrom(getenv, workers.MixedMultiplier, cfg.WorkerLimit)
	} else if cfg.WorkerLimit > 0 && cfg.Workers > cfg.WorkerLimit {
		cfg.Workers = cfg.WorkerLimit
	}

	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		logging.Warn("JPEG_QUALITY %d out of range (1-100), using default: %d", cfg.JPEGQuality, DefaultJPEGQuality)
		cfg.JPEGQuality = DefaultJPEGQuality
	}

	if cfg.CacheDir != "" {
		abs, err := filepath.Abs(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
		}
		cfg.CacheDir = abs
	}
	return cfg, nil
}

func (c *Config) applyFile(fc FileConfig) {
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setStr(&c.Port, fc.Port)
	setStr(&c.MetricsPort, fc.MetricsPort)
	if fc.MetricsEnabled != nil {
		c.MetricsEnabled = *fc.MetricsEnabled
	}
	if fc.LogHealthChecks != nil {
		c.LogHealthChecks = *fc.LogHealthChecks
	}
	if fc.Cache.Enabled != nil {
		c.CacheEnabled = *fc.Cache.Enabled
	}
	setStr(&c.CacheDir, fc.Cache.Dir)
	if fc.Cache.MaxAge > 0 {
		c.CacheMaxAge = fc.Cache.MaxAge
	}
	setStr(&c.PackageFamily, fc.Sandbox.PackageFamily)
	setStr(&c.LocalCacheRoot, fc.Sandbox.LocalCache)
	setStr(&c.RoamingStateRoot, fc.Sandbox.RoamingState)
	setStr(&c.LocalStateRoot, fc.Sandbox.LocalState)
	if fc.Thumbnails.Workers > 0 {
		c.Workers = fc.Thumbnails.Workers
	}
	if fc.Thumbnails.WorkerLimit > 0 {
		c.WorkerLimit = fc.Thumbnails.WorkerLimit
	}
	if fc.Thumbnails.JPEGQuality > 0 {
		c.JPEGQuality = fc.Thumbnails.JPEGQuality
	}
	setStr(&c.FFmpegPath, fc.FFmpeg.Path)
	setStr(&c.FFprobePath, fc.FFmpeg.ProbePath)
	if fc.FFmpeg.Timeout > 0 {
		c.FFmpegTimeout = fc.FFmpeg.Timeout
	}
}

// HasStaticRoots reports whether any sandbox root was configured explicitly.
func (c *Config) HasStaticRoots() bool {
	return c.LocalCacheRoot != "" || c.RoamingStateRoot != "" || c.LocalStateRoot != ""
}

type envReader struct {
	getenv func(string) string
}

func (e envReader) str(key, defaultValue string) string {
	if value := strings.TrimSpace(e.getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func (e envReader) boolean(key string, defaultValue bool) bool {
	value := e.getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func (e envReader) integer(key string, defaultValue int) int {
	value := e.getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func (e envReader) duration(key string, defaultValue time.Duration) time.Duration {
	value := e.getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
