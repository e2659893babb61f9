package api

import (
	"net/http"
	"strconv"
)

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	events, err := s.events.RecentStateEventsAll(r.Context(), limit)
	if err != nil {
		writeInternalError(w, "failed to query event log")
		return
	}
	writeJSON(w, http.StatusOK, events)
}
