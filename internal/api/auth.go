package api

import (
	"net/http"
	"strings"
)

// requireAuth wraps a handler with bearer-token auth: missing token -> 401,
// wrong token -> 403, per spec §6. A server with no configured token accepts
// every request, matching a local/dev deployment with auth disabled.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.BearerToken == "" {
			next(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token != s.cfg.BearerToken {
			writeError(w, http.StatusForbidden, "invalid bearer token")
			return
		}
		next(w, r)
	}
}
