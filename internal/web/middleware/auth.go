package middleware

import (
	"crypto/subtle"
	"net/http"
)

// Authentication requires a matching X-API-Key header. An empty key disables
// the check.
func Authentication(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"missing or invalid API key"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
