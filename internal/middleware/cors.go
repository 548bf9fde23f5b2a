package middleware

import "net/http"

// CORSMiddleware allows cross-origin reads. The dashboard is a
// public, read-only surface served from a different origin.
type CORSMiddleware struct{}

// NewCORSMiddleware creates a new CORS middleware.
func NewCORSMiddleware() *CORSMiddleware {
	return &CORSMiddleware{}
}

// Handler sets CORS headers on every response and answers preflight
// requests directly.
func (c *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
