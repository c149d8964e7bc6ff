package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that fixes the extraction worker
// count regardless of CPU availability.
const EnvOverride = "THUMBNAIL_WORKERS"

// Count returns a worker count of multiplier workers per available CPU, capped
// at limit (0 means no cap) and never below 1. It respects container CPU
// limits via GOMAXPROCS.
//
// A positive THUMBNAIL_WORKERS value replaces the calculation but is still
// capped at limit.
func Count(multiplier float64, limit int) int {
	return CountFrom(os.Getenv, multiplier, limit)
}

// CountFrom is Count with an explicit environment lookup.
func CountFrom(getenv func(string) string, multiplier float64, limit int) int {
	if override := getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return capAt(count, limit)
		}
	}

	n := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if n < 1 {
		n = 1
	}
	return capAt(n, limit)
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// MixedMultiplier is the per-CPU worker ratio for thumbnail extraction, which
// reads the source, decodes or runs ffmpeg, and writes the result.
const MixedMultiplier = 1.5
