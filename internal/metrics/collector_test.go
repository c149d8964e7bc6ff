package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"native-thumbnail/internal/filesystem"
)

// =============================================================================
// Mock StatsProvider
// =============================================================================

type mockStatsProvider struct {
	mu    sync.Mutex
	stats Stats
	calls int
}

func (m *mockStatsProvider) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.stats
}

func (m *mockStatsProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// =============================================================================
// Collector Tests
// =============================================================================

func TestNewCollector(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{CacheEntries: 10, CacheBytes: 4096}}

	collector := NewCollector(provider, 5*time.Second)

	if collector == nil {
		t.Fatal("NewCollector returned nil")
	}

	if collector.statsProvider != provider {
		t.Error("statsProvider not set correctly")
	}

	if collector.interval != 5*time.Second {
		t.Errorf("interval = %v, want %v", collector.interval, 5*time.Second)
	}

	if collector.stopChan == nil {
		t.Error("stopChan not initialized")
	}
}

func TestCollectUpdatesCacheGauges(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{CacheEntries: 42, CacheBytes: 123456}}
	collector := NewCollector(provider, time.Second)

	collector.collect()

	if got := testutil.ToFloat64(ThumbcacheEntries); got != 42 {
		t.Errorf("ThumbcacheEntries = %v, want 42", got)
	}
	if got := testutil.ToFloat64(ThumbcacheSizeBytes); got != 123456 {
		t.Errorf("ThumbcacheSizeBytes = %v, want 123456", got)
	}
}

func TestCollectWithNilProvider(t *testing.T) {
	collector := NewCollector(nil, time.Second)

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("collect() panicked with nil provider: %v", r)
		}
	}()

	collector.collect()
}

func TestCollectMemoryMetrics(t *testing.T) {
	collector := NewCollector(nil, time.Second)

	collector.collectMemoryMetrics()
	before := testutil.ToFloat64(GoGCRuns)

	runtime.GC()
	collector.collectMemoryMetrics()

	if got := testutil.ToFloat64(GoGCRuns); got < before+1 {
		t.Errorf("GoGCRuns = %v, want at least %v after a forced GC", got, before+1)
	}
	if got := testutil.ToFloat64(GoMemAllocBytes); got <= 0 {
		t.Errorf("GoMemAllocBytes = %v, want > 0", got)
	}
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{}
	collector := NewCollector(provider, 20*time.Millisecond)

	collector.Start()
	time.Sleep(70 * time.Millisecond)
	collector.Stop()

	if n := provider.callCount(); n < 2 {
		t.Errorf("GetStats called %d times, want at least 2 (immediate + ticks)", n)
	}
}

func TestCollectorMultipleStops(_ *testing.T) {
	collector := NewCollector(nil, time.Second)
	collector.Start()
	collector.Stop()
	collector.Stop()
}

// =============================================================================
// Filesystem observer
// =============================================================================

func TestFilesystemObserverImplementsInterface(_ *testing.T) {
	var _ filesystem.Observer = NewFilesystemObserver()
}

func TestObserveOperation(t *testing.T) {
	observer := NewFilesystemObserver()

	before := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("sandbox", "stat"))
	observer.ObserveOperation("sandbox", "stat", 0.001, nil)
	observer.ObserveOperation("sandbox", "stat", 0.002, errors.New("boom"))

	if got := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("sandbox", "stat")); got != before+1 {
		t.Errorf("FilesystemOperationErrors = %v, want %v", got, before+1)
	}
}

func TestObserveRetryCounters(t *testing.T) {
	observer := NewFilesystemObserver()

	tests := []struct {
		name    string
		observe func()
		metric  func() float64
	}{
		{
			name:    "attempt",
			observe: func() { observer.ObserveRetryAttempt("mkdir", "cache") },
			metric:  func() float64 { return testutil.ToFloat64(FilesystemRetryAttempts.WithLabelValues("mkdir", "cache")) },
		},
		{
			name:    "success",
			observe: func() { observer.ObserveRetrySuccess("stat", "cache") },
			metric:  func() float64 { return testutil.ToFloat64(FilesystemRetrySuccess.WithLabelValues("stat", "cache")) },
		},
		{
			name:    "failure",
			observe: func() { observer.ObserveRetryFailure("open", "sandbox") },
			metric:  func() float64 { return testutil.ToFloat64(FilesystemRetryFailures.WithLabelValues("open", "sandbox")) },
		},
		{
			name:    "stale",
			observe: func() { observer.ObserveStaleError("stat", "sandbox") },
			metric:  func() float64 { return testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("stat", "sandbox")) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.metric()
			tt.observe()
			if got := tt.metric(); got != before+1 {
				t.Errorf("%s counter = %v, want %v", tt.name, got, before+1)
			}
		})
	}

	// Histogram; only checks that it accepts the labels.
	observer.ObserveRetryDuration("stat", "unknown", 0.05)
}

func TestStaleWarningOncePerVolume(t *testing.T) {
	var warned []string
	observer := newFSObserver(func(volume string) { warned = append(warned, volume) })

	observer.ObserveStaleError("stat", "sandbox")
	observer.ObserveStaleError("open", "sandbox")
	observer.ObserveStaleError("stat", "cache")

	if len(warned) != 2 || warned[0] != "sandbox" || warned[1] != "cache" {
		t.Errorf("warned = %v, want [sandbox cache]", warned)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	InitializeMetrics()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "native_thumbnail_requests_total") {
		t.Error("thumbnail request counter missing from scrape")
	}
}

// =============================================================================
// InitializeMetrics
// =============================================================================

func TestInitializeMetricsIdempotent(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("InitializeMetrics panicked: %v", r)
		}
	}()

	InitializeMetrics()
	InitializeMetrics()
}

func TestInitializeMetricsPrePopulatesOutcomes(t *testing.T) {
	InitializeMetrics()

	if got := testutil.CollectAndCount(ThumbnailRequestsTotal); got < len(Outcomes) {
		t.Errorf("ThumbnailRequestsTotal series = %d, want at least %d", got, len(Outcomes))
	}

	want := len(Strategies) * len(StrategyResults)
	if got := testutil.CollectAndCount(ThumbnailStrategyAttempts); got < want {
		t.Errorf("ThumbnailStrategyAttempts series = %d, want at least %d", got, want)
	}

	if got := testutil.CollectAndCount(SandboxResolutionsTotal); got < 10 {
		t.Errorf("SandboxResolutionsTotal series = %d, want at least 10", got)
	}
}
