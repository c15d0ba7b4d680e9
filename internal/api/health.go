package api

import "net/http"

// handleHealth is a plain liveness probe: the process can accept and route
// HTTP requests. It does not touch the database, matching the original
// supervisor's liveness-only health semantics.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
