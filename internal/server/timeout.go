package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware caps the whole request, retries included. Provider
// attempts carry their own shorter deadlines, so this is a backstop against
// a request outliving every retry budget. A non-positive timeout disables it.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
