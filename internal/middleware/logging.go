package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode"

	"native-thumbnail/internal/logging"
)

// statusRecorder remembers the status and body size of a response. The access
// log and the metrics middleware share it.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int64
	written bool
}

func record(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.written {
		return
	}
	rec.status, rec.written = code, true
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.written = true
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += int64(n)
	return n, err
}

// LoggingConfig holds configuration for the access log.
type LoggingConfig struct {
	SkipPaths       []string
	LogHealthChecks bool
}

// DefaultLoggingConfig logs everything, probes included.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{LogHealthChecks: true}
}

var probePaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// sanitizeLogField drops control characters that could forge log lines.
// Line breaks become spaces; tabs are kept.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}

// Logger writes one W3C extended log line per request. It expects RequestID
// to run first so the line carries the same ID as the request's log trail.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipLogging(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)

			logging.Printf("%s", accessLine(time.Now().UTC(), r, rec, time.Since(start)))
		})
	}
}

// accessLine renders:
// date time c-ip cs-method cs-uri-stem sc-status sc-bytes time-taken x-request-id cs(User-Agent)
func accessLine(now time.Time, r *http.Request, rec *statusRecorder, took time.Duration) string {
	requestID := "-"
	if trail := logging.TrailFrom(r.Context()); trail != nil {
		requestID = trail.ID()
	}

	return fmt.Sprintf("%s %s %s %s %d %d %d %s %s",
		now.Format("2006-01-02 15:04:05"),
		w3cField(clientIP(r)),
		w3cField(r.Method),
		w3cField(r.URL.Path),
		rec.status,
		rec.bytes,
		took.Milliseconds(),
		w3cField(requestID),
		w3cField(r.Header.Get("User-Agent")),
	)
}

func skipLogging(path string, config LoggingConfig) bool {
	if !config.LogHealthChecks && probePaths[path] {
		return true
	}
	for _, prefix := range config.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// clientIP prefers the first proxy hop, then X-Real-IP, then the peer address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// w3cField sanitizes s, writes "-" for empty values and quotes values with
// spaces or quotes, doubling embedded quotes.
func w3cField(s string) string {
	s = sanitizeLogField(s)
	switch {
	case s == "":
		return "-"
	case strings.ContainsAny(s, " \t\""):
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
