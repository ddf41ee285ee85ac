package middleware

import (
	"net/http"
)

// NoStore keeps responses out of shared and browser caches. Assessment
// answers and cohort aggregates must never be served stale or kept on
// a shared machine.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}
