// Package middleware provides HTTP middleware for the webhook transport.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerToken returns an HTTP middleware that requires
// "Authorization: Bearer <token>". An empty token disables the check.
func BearerToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			got, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="lake-loader"`)
				writeError(w, http.StatusUnauthorized, "unauthorized: provide a valid Bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
