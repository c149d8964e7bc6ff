package middleware

import (
	"net/http"

	"native-thumbnail/internal/logging"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 64

// RequestID attaches a logging trail to every request. A well-formed incoming
// X-Request-ID is reused; otherwise a fresh ID is generated. The ID is echoed
// in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, trail := logging.WithTrailID(r.Context(), validRequestID(r.Header.Get(RequestIDHeader)))
		w.Header().Set(RequestIDHeader, trail.ID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validRequestID returns id if it is short and made of [A-Za-z0-9._-], or "".
func validRequestID(id string) string {
	if id == "" || len(id) > maxRequestIDLength {
		return ""
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return ""
		}
	}
	return id
}
