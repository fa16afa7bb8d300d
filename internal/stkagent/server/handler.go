package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
	"github.com/autopeer-io/stkwatch/pkg/log"
)

// ProbeRequest is the body of POST /api/v1/debug/probe.
type ProbeRequest struct {
	VIN    string `json:"vin"`
	APIKey string `json:"api_key"`
}

type errorResponse struct {
	Error string         `json:"error"`
	Kind  core.ErrorKind `json:"kind,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !s.ready() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.List())
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	vin := strings.ToUpper(mux.Vars(r)["vin"])
	v, ok := s.board.Get(vin)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "vehicle not found"})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleGetSensors(w http.ResponseWriter, r *http.Request) {
	vin := strings.ToUpper(mux.Vars(r)["vin"])
	v, ok := s.board.Get(vin)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "vehicle not found"})
		return
	}
	writeJSON(w, http.StatusOK, v.Sensors)
}

// handleProbe bypasses cache and rate gate; it exists to diagnose keys and
// connectivity.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	var req ProbeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	req.VIN = strings.ToUpper(strings.TrimSpace(req.VIN))
	if !core.ValidVIN(req.VIN) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: core.ErrInvalidVIN.Error()})
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "api_key is required", Kind: core.KindMissingCredential})
		return
	}

	log.Info("Probing upstream API", "vin", req.VIN)
	res, err := s.prober.Probe(r.Context(), req.VIN, req.APIKey)
	if err != nil {
		log.Error(err, "Upstream probe failed", "vin", req.VIN)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Kind: core.KindOf(err)})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Failed to encode response")
	}
}
