// Package handlers provides the HTTP API of the thumbnail service.
//
// It includes handlers for:
//   - Thumbnail extraction (POST /api/thumbnail), synchronous or async
//   - Health, liveness and readiness probes
//   - Version information and Prometheus metrics
package handlers
