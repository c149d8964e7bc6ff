package handlers

import (
	"net/http"
	"runtime"
	"time"

	"native-thumbnail/internal/media"
	"native-thumbnail/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	Workers       int   `json:"workers"`
	VipsAvailable bool  `json:"vipsAvailable"`
	CacheEnabled  bool  `json:"cacheEnabled"`
	CacheEntries  int   `json:"cacheEntries,omitempty"`
	CacheBytes    int64 `json:"cacheBytes,omitempty"`

	MemoryPaused bool    `json:"memoryPaused"`
	MemoryUsage  float64 `json:"memoryUsage,omitempty"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	ready := h.IsReady()
	response := HealthResponse{
		Status:        statusStarting,
		Ready:         ready,
		Version:       startup.Version,
		Uptime:        time.Since(h.started).Round(time.Second).String(),
		Workers:       h.workers,
		VipsAvailable: media.IsVipsAvailable(),
		CacheEnabled:  h.stats != nil,
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
	}
	if ready {
		response.Status = statusHealthy
	}
	if h.stats != nil {
		stats := h.stats.GetStats()
		response.CacheEntries = stats.CacheEntries
		response.CacheBytes = stats.CacheBytes
	}
	if h.memory != nil {
		response.MemoryPaused = h.memory.IsPaused()
		_, _, response.MemoryUsage = h.memory.GetStats()
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	respond(w, status, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		respond(w, http.StatusOK, nil)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.IsReady() {
		respond(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	respond(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}
