// ABOUTME: HTTP credential extraction helpers for API and admin endpoints
// ABOUTME: Supports Authorization bearer headers and the X-API-Key fallback

package auth

import (
	"net/http"
	"strings"
)

// BearerToken extracts a bearer token from the Authorization header.
// Returns the empty string if no bearer token is present.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// APICredential extracts the caller's opaque API credential from a request.
// The Authorization header takes precedence over X-API-Key. An empty return
// value means the caller is anonymous.
func APICredential(r *http.Request) string {
	if token := BearerToken(r); token != "" {
		return token
	}
	return r.Header.Get("X-API-Key")
}
