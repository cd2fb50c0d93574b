/**
 * @description
 * This file contains custom middleware for the admin HTTP router. The admin
 * surface is authenticated with a shared internal API key carried in a
 * request header; without a matching key every admin request is refused.
 *
 * @dependencies
 * - crypto/subtle, net/http: Standard Go libraries.
 */

package api

import (
	"crypto/subtle"
	"net/http"
)

// InternalKeyHeader carries the shared admin key on every admin request.
const InternalKeyHeader = "X-Internal-Api-Key"

// InternalKeyMiddleware creates a middleware that requires the shared
// internal API key. The comparison is constant time.
func InternalKeyMiddleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				http.Error(w, "Admin API is not configured", http.StatusServiceUnavailable)
				return
			}
			got := r.Header.Get(InternalKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				http.Error(w, "Invalid internal API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
