package filesystem

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu         sync.Mutex
	operations []string
	errors     int
}

func (o *recordingObserver) ObserveOperation(volume, operation string, _ float64, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.operations = append(o.operations, volume+":"+operation)
	if err != nil {
		o.errors++
	}
}
func (o *recordingObserver) ObserveRetryAttempt(string, string)           {}
func (o *recordingObserver) ObserveRetrySuccess(string, string)           {}
func (o *recordingObserver) ObserveRetryFailure(string, string)           {}
func (o *recordingObserver) ObserveRetryDuration(string, string, float64) {}
func (o *recordingObserver) ObserveStaleError(string, string)             {}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE error", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT error", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	root := t.TempDir()
	cache := filepath.Join(root, "cache")
	sandbox := filepath.Join(root, "sandbox")
	nested := filepath.Join(sandbox, "LocalCache")

	vr := NewVolumeResolver(map[string]string{
		"cache":      cache,
		"sandbox":    sandbox,
		"localcache": nested,
		"empty":      "",
	})

	tests := []struct {
		path string
		want string
	}{
		{filepath.Join(cache, "ab", "cd.png"), "cache"},
		{cache, "cache"},
		{filepath.Join(sandbox, "RoamingState", "a.mp4"), "sandbox"},
		{filepath.Join(nested, "Roaming", "a.mp4"), "localcache"},
		{filepath.Join(root, "cachefoo", "a"), "unknown"},
		{"/definitely/elsewhere", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}

	var nilResolver *VolumeResolver
	if got := nilResolver.Resolve(cache); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want unknown", got)
	}
}

func TestStatWithRetry(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(file, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	obs := &recordingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	config := DefaultRetryConfig()
	config.VolumeResolver = NewVolumeResolver(map[string]string{"sandbox": dir})

	info, err := StatWithRetry(file, config)
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size() = %d, want 4", info.Size())
	}

	start := time.Now()
	if _, err := StatWithRetry(filepath.Join(dir, "missing"), config); !os.IsNotExist(err) {
		t.Errorf("StatWithRetry(missing) error = %v, want not-exist", err)
	}
	if time.Since(start) > config.InitialBackoff {
		t.Error("non-stale error should not be retried")
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.operations) != 2 || obs.operations[0] != "sandbox:stat" {
		t.Errorf("observed operations = %v", obs.operations)
	}
	if obs.errors != 1 {
		t.Errorf("observed errors = %d, want 1", obs.errors)
	}
}

func TestOpenWithRetry(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.png")
	if err := os.WriteFile(file, []byte("png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := OpenWithRetry(file, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	_ = f.Close()

	if _, err := OpenWithRetry(filepath.Join(dir, "nope"), DefaultRetryConfig()); err == nil {
		t.Error("OpenWithRetry(missing) should fail")
	}
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	deep := filepath.Join(dir, "a", "b", "c")

	if err := EnsureDir(deep, DefaultRetryConfig()); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	if !IsDir(deep, DefaultRetryConfig()) {
		t.Error("directory was not created")
	}
	if err := EnsureDir(deep, DefaultRetryConfig()); err != nil {
		t.Errorf("EnsureDir() on existing dir error = %v", err)
	}

	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := EnsureDir(filepath.Join(blocker, "sub"), DefaultRetryConfig()); err == nil {
		t.Error("EnsureDir() under a regular file should fail")
	}
}

func TestIsRegularFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if !IsRegularFile(file, DefaultRetryConfig()) {
		t.Error("IsRegularFile(file) = false")
	}
	if IsRegularFile(dir, DefaultRetryConfig()) {
		t.Error("IsRegularFile(dir) = true")
	}
	if IsRegularFile(filepath.Join(dir, "missing"), DefaultRetryConfig()) {
		t.Error("IsRegularFile(missing) = true")
	}
}

func BenchmarkStatWithRetry_Success(b *testing.B) {
	dir := b.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		b.Fatalf("write: %v", err)
	}
	config := DefaultRetryConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = StatWithRetry(file, config)
	}
}
