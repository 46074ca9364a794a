package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/alfredjeanlab/gatewatch/internal/model"
)

// guardInput is the body of the guard actions.
type guardInput struct {
	Guard string `json:"guard"`
}

// handleCreateGates handles POST /v1/gates. The body is one gate object or
// an array of them; an array is created in a single transaction.
func (s *GateServer) handleCreateGates(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	body = bytes.TrimSpace(body)

	var in []createGateInput
	if len(body) > 0 && body[0] == '[' {
		err = json.Unmarshal(body, &in)
	} else {
		var one createGateInput
		err = json.Unmarshal(body, &one)
		in = []createGateInput{one}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	gates, err := s.CreateGates(r.Context(), in)
	if err != nil {
		writeActionError(w, err)
		return
	}
	if len(gates) == 1 && body[0] != '[' {
		writeJSON(w, http.StatusCreated, gates[0])
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"gates": gates})
}

// handleListGates handles GET /v1/gates?viewer=.
func (s *GateServer) handleListGates(w http.ResponseWriter, r *http.Request) {
	gates, err := s.ListGates(r.Context(), r.URL.Query().Get("viewer"))
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gates": gates})
}

// handleGroups handles GET /v1/gates/groups.
func (s *GateServer) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.Groups(r.Context())
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

// handleGetGate handles GET /v1/gates/{id}.
func (s *GateServer) handleGetGate(w http.ResponseWriter, r *http.Request) {
	g, err := s.GetGate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleHistory handles GET /v1/gates/{id}/history.
func (s *GateServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeActionError(w, err)
		return
	}
	if history == nil {
		history = []*model.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// handleClaim handles POST /v1/gates/{id}/claim.
func (s *GateServer) handleClaim(w http.ResponseWriter, r *http.Request) {
	s.guardAction(s.Claim)(w, r)
}

// guardAction adapts a guard operation to a handler for
// POST /v1/gates/{id}/<action> with body {"guard": "..."}.
func (s *GateServer) guardAction(op func(ctx context.Context, id, guard string) (*model.Gate, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in guardInput
		if err := decodeBody(r, &in); err != nil {
			writeActionError(w, err)
			return
		}
		g, err := op(r.Context(), r.PathValue("id"), in.Guard)
		if err != nil {
			writeActionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.view(g))
	}
}

// handleExtend handles POST /v1/gates/{id}/extend.
func (s *GateServer) handleExtend(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Guard   string `json:"guard"`
		Minutes int    `json:"minutes"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeActionError(w, err)
		return
	}
	if in.Minutes < 0 {
		writeError(w, http.StatusBadRequest, "minutes must be positive")
		return
	}
	g, err := s.Extend(r.Context(), r.PathValue("id"), in.Guard, in.Minutes)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(g))
}

// handleReset handles POST /v1/gates/{id}/reset.
func (s *GateServer) handleReset(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Actor string `json:"actor"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeActionError(w, err)
		return
	}
	g, err := s.Reset(r.Context(), r.PathValue("id"), in.Actor)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(g))
}

// handleResetAll handles POST /v1/gates/reset.
func (s *GateServer) handleResetAll(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Actor string `json:"actor"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeActionError(w, err)
		return
	}
	n, err := s.ResetAll(r.Context(), in.Actor)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}
