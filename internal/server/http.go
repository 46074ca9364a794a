package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/alfredjeanlab/gatewatch/internal/model"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
func (s *GateServer) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/gates", s.handleListGates)
	mux.HandleFunc("POST /v1/gates", s.handleCreateGates)
	mux.HandleFunc("GET /v1/gates/groups", s.handleGroups)
	mux.HandleFunc("POST /v1/gates/reset", s.handleResetAll)
	mux.HandleFunc("GET /v1/gates/{id}", s.handleGetGate)
	mux.HandleFunc("GET /v1/gates/{id}/history", s.handleHistory)
	mux.HandleFunc("POST /v1/gates/{id}/claim", s.handleClaim)
	mux.HandleFunc("POST /v1/gates/{id}/start", s.guardAction(s.StartMonitor))
	mux.HandleFunc("POST /v1/gates/{id}/departure", s.guardAction(s.SwitchToDeparture))
	mux.HandleFunc("POST /v1/gates/{id}/finish", s.guardAction(s.MarkFinished))
	mux.HandleFunc("POST /v1/gates/{id}/release", s.guardAction(s.Release))
	mux.HandleFunc("POST /v1/gates/{id}/extend", s.handleExtend)
	mux.HandleFunc("POST /v1/gates/{id}/reset", s.handleReset)
	mux.HandleFunc("GET /v1/guards", s.handleGuardRoster)
	mux.HandleFunc("POST /v1/guards/{guard}/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return mux
}

// handleHealth handles GET /v1/health.
func (s *GateServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return inputError("invalid JSON body")
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeActionError maps a gate operation error to its HTTP response.
func writeActionError(w http.ResponseWriter, err error) {
	var (
		ie      inputError
		ve      *model.ValidationError
		claimed *model.AlreadyClaimedError
		illegal *model.IllegalTransitionError
	)
	switch {
	case errors.As(err, &ie), errors.As(err, &ve), errors.Is(err, model.ErrActorRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &claimed):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  err.Error(),
			"code":   "already_claimed",
			"holder": claimed.Holder,
		})
	case errors.As(err, &illegal):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
			"code":  "illegal_transition",
		})
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
