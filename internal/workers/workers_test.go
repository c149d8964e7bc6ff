package workers

import (
	"runtime"
	"testing"
)

func env(v string) func(string) string {
	return func(k string) string {
		if k == EnvOverride {
			return v
		}
		return ""
	}
}

func TestCountFrom(t *testing.T) {
	cpus := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		override   string
		multiplier float64
		limit      int
		want       int
	}{
		{"one per cpu", "", 1.0, 0, cpus},
		{"two per cpu", "", 2.0, 0, cpus * 2},
		{"mixed", "", 1.5, 0, max(1, int(float64(cpus)*1.5))},
		{"capped", "", 2.0, 1, 1},
		{"tiny multiplier floors at one", "", 0.0001, 0, 1},
		{"override", "8", 1.0, 0, 8},
		{"override capped", "20", 1.0, 10, 10},
		{"override below cap", "5", 1.0, 10, 5},
		{"non-numeric override ignored", "lots", 1.0, 0, cpus},
		{"zero override ignored", "0", 1.0, 0, cpus},
		{"negative override ignored", "-5", 1.0, 0, cpus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountFrom(env(tt.override), tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("CountFrom(%q, %v, %d) = %d, want %d", tt.override, tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func TestCountRespectsLimit(t *testing.T) {
	t.Setenv(EnvOverride, "")

	if got := Count(MixedMultiplier, 2); got < 1 || got > 2 {
		t.Errorf("Count(MixedMultiplier, 2) = %d, want 1..2", got)
	}
}

func TestCountReadsEnvironment(t *testing.T) {
	t.Setenv(EnvOverride, "3")
	if got := Count(1.0, 0); got != 3 {
		t.Errorf("Count with %s=3 = %d, want 3", EnvOverride, got)
	}
}
