// Package api wires the HTTP surfaces of both binaries (spec.md §6): the
// watchtower's register/snapshot/entries/pubkey endpoints, and a party's
// gossip endpoint. Routing uses github.com/gorilla/mux, matching the
// teacher's HTTP adapter layering of thin handlers over a core type.
package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/forestrie/roster-attestation/internal/watchtower"
	"github.com/forestrie/roster-attestation/internal/wire"
)

type registerRequest struct {
	PRR wire.PRR `json:"prr"`
}

type srsResponse struct {
	SRS wire.SRS `json:"srs"`
}

type entriesResponse struct {
	Entries []wire.PRR `json:"entries"`
}

type statsResponse struct {
	Epoch      uint64 `json:"epoch"`
	LogLen     uint64 `json:"log_len"`
	NumParties int    `json:"num_parties"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewWatchtowerRouter builds the HTTP router exposing log over the
// endpoints spec.md §6 names, plus the supplemental /stats and /healthz
// operational endpoints.
func NewWatchtowerRouter(log *watchtower.Log, logger *zap.SugaredLogger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	h := &watchtowerHandlers{log: log, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/snapshot", h.snapshot).Methods(http.MethodGet)
	r.HandleFunc("/entries", h.entries).Methods(http.MethodGet)
	r.HandleFunc("/watchtower_pubkey", h.pubkey).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	return r
}

type watchtowerHandlers struct {
	log    *watchtower.Log
	logger *zap.SugaredLogger
}

func (h *watchtowerHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	srs, err := h.log.Register(req.PRR)
	if err != nil {
		h.logger.Infow("register rejected", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, srsResponse{SRS: srs})
}

func (h *watchtowerHandlers) snapshot(w http.ResponseWriter, r *http.Request) {
	srs, err := h.log.Snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, srsResponse{SRS: srs})
}

func (h *watchtowerHandlers) entries(w http.ResponseWriter, r *http.Request) {
	from, err := strconv.ParseUint(r.URL.Query().Get("from"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, watchtower.ErrBadRange)
		return
	}
	to, err := strconv.ParseUint(r.URL.Query().Get("to"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, watchtower.ErrBadRange)
		return
	}

	entries, err := h.log.Entries(from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, entriesResponse{Entries: entries})
}

func (h *watchtowerHandlers) pubkey(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(base64.StdEncoding.EncodeToString(h.log.WatchtowerPubKey())))
}

func (h *watchtowerHandlers) stats(w http.ResponseWriter, r *http.Request) {
	s := h.log.Stats()
	writeJSON(w, http.StatusOK, statsResponse{Epoch: s.Epoch, LogLen: s.LogLen, NumParties: s.NumParties})
}

func (h *watchtowerHandlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
