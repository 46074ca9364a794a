package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/gatewatch/internal/presence"
)

// handleGuardRoster handles GET /v1/guards.
// Returns the guards seen recently and those holding a gate.
func (s *GateServer) handleGuardRoster(w http.ResponseWriter, r *http.Request) {
	// Parse optional stale_threshold_secs query param (default: 12 hours).
	staleThreshold := 12 * time.Hour
	if v := r.URL.Query().Get("stale_threshold_secs"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			staleThreshold = time.Duration(secs) * time.Second
		}
	}

	guards, err := s.Guards(r.Context(), staleThreshold)
	if err != nil {
		writeActionError(w, err)
		return
	}
	if guards == nil {
		guards = []presence.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"guards": guards})
}

// handleHeartbeat handles POST /v1/guards/{guard}/heartbeat.
func (s *GateServer) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := s.Heartbeat(r.PathValue("guard")); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
