// SPDX-License-Identifier: MIT

package api

import "net/http"

// handleHealth serves GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Health.Snapshot())
}
