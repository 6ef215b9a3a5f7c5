package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/forestrie/roster-attestation/internal/gossip"
	"github.com/forestrie/roster-attestation/internal/wire"
)

// Receiver is the subset of *gossip.Detector / *gossip.Index that the
// gossip HTTP handler depends on, so either equivocation-detector variant
// can back the same route.
type Receiver interface {
	Receive(g wire.GossipSnapshot) (*gossip.Evidence, error)
}

// NewGossipRouter builds the HTTP router for a party's gossip endpoint
// (spec.md §6): POST /gossip.
func NewGossipRouter(recv Receiver, logger *zap.SugaredLogger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	h := &gossipHandlers{recv: recv, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/gossip", h.gossip).Methods(http.MethodPost)
	return r
}

type gossipHandlers struct {
	recv   Receiver
	logger *zap.SugaredLogger
}

func (h *gossipHandlers) gossip(w http.ResponseWriter, r *http.Request) {
	var g wire.GossipSnapshot
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ev, err := h.recv.Receive(g)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if ev != nil {
		h.logger.Errorw("equivocation detected", "epoch", ev.Epoch, "log_len", ev.LogLen)
		priorRoot, newRoot := ev.Prior.Msg.MerkleRoot, ev.New.Msg.MerkleRoot
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "EQUIVOCATION DETECTED: epoch=%d log_len=%d prior_root=%x new_root=%x",
			ev.Epoch, ev.LogLen, priorRoot, newRoot)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
