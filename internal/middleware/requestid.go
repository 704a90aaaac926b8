package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// EchoRequestID copies the id assigned by chi's RequestID onto the response.
func EchoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
