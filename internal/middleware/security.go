package middleware

import (
	"net/http"
	"strings"
)

const (
	apiPolicy = "default-src 'none'; frame-ancestors 'none'"
	// appPolicy lets the bundled frontend load its own scripts, styles and
	// images while still refusing third-party origins and framing.
	appPolicy = "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'"
)

// SecureHeaders adds standard security headers. JSON endpoints get a policy
// that forbids everything; frontend pages get one that allows same-origin
// assets.
func SecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", contentPolicy(r.URL.Path))
		w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		next.ServeHTTP(w, r)
	})
}

func contentPolicy(path string) string {
	if strings.HasPrefix(path, "/api/") || path == "/health" || path == "/version" {
		return apiPolicy
	}
	return appPolicy
}
