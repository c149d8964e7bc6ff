// Package middleware provides HTTP middleware for the thumbnail service.
//
// It includes:
//   - Request ID propagation into the logging trail
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
package middleware
