package server

import "net/http"

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	overview, err := s.stats.GetOverview(r.Context(), parseIntParam(r.URL.Query().Get("limit")))
	if err != nil {
		s.log.Error("build library overview failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, overview)
}
