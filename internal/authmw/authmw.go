// Package authmw provides HTTP middleware for bearer token authentication.
package authmw

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerToken returns middleware that validates the Authorization header
// contains a Bearer token matching one of the accepted values. Comparison
// uses constant-time equality to prevent timing side-channel attacks, and
// every accepted token is checked so timing does not reveal which one
// matched.
func BearerToken(tokens ...string) func(http.Handler) http.Handler {
	accepted := nonEmpty(tokens)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}

			got := []byte(auth[len("Bearer "):])

			matched := 0
			for _, want := range accepted {
				matched |= subtle.ConstantTimeCompare(got, want)
			}
			if matched != 1 {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ElevatedBearerToken guards routes that need more than authentication. A
// token from elevated passes; a token from recognized gets 403 because the
// caller is authenticated but not privileged; anything else gets 401.
func ElevatedBearerToken(elevated, recognized []string) func(http.Handler) http.Handler {
	priv := nonEmpty(elevated)
	known := nonEmpty(recognized)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}

			got := []byte(auth[len("Bearer "):])

			// Both sets are always scanned in full so response timing
			// does not depend on which token was presented.
			privileged := 0
			for _, want := range priv {
				privileged |= subtle.ConstantTimeCompare(got, want)
			}
			authenticated := 0
			for _, want := range known {
				authenticated |= subtle.ConstantTimeCompare(got, want)
			}

			switch {
			case privileged == 1:
				next.ServeHTTP(w, r)
			case authenticated == 1:
				http.Error(w, `{"error":"insufficient privileges"}`, http.StatusForbidden)
			default:
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			}
		})
	}
}

func nonEmpty(tokens []string) [][]byte {
	out := make([][]byte, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			out = append(out, []byte(t))
		}
	}
	return out
}
