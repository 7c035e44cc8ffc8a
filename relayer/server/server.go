package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	tmlog "github.com/tendermint/tendermint/libs/log"

	"github.com/bpolania/near-cosmos-ibc/relayer"
)

// Server exposes the relayer's operational surface over HTTP: health of both
// chain connections, prometheus metrics and the dead-letter controls.
type Server struct {
	coordinator *relayer.Coordinator
	src, dst    relayer.Chain
	path        relayer.Path
	logger      tmlog.Logger
	http        *http.Server
}

// New creates a server bound to the given address.
func New(addr string, coordinator *relayer.Coordinator, src, dst relayer.Chain, path relayer.Path, logger tmlog.Logger) *Server {
	s := &Server{
		coordinator: coordinator,
		src:         src,
		dst:         dst,
		path:        path,
		logger:      logger.With("module", "server"),
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/v1/dead-letters", s.handleDeadLetters).Methods(http.MethodGet)
	router.HandleFunc("/v1/force-relay", s.handleForceRelay).Methods(http.MethodPost)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for active requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type chainHealth struct {
	ChainID      string `json:"chain_id"`
	Height       uint64 `json:"height,omitempty"`
	ClientID     string `json:"client_id"`
	ClientStatus string `json:"client_status"`
	Error        string `json:"error,omitempty"`
}

type healthResponse struct {
	Healthy bool          `json:"healthy"`
	Chains  []chainHealth `json:"chains"`
}

// handleHealth reports reachability of both chains and the status of the
// light client each carries for the other. A frozen or expired client makes
// the relayer unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := healthResponse{Healthy: true}
	for _, end := range []struct {
		chain    relayer.Chain
		clientID string
	}{
		{s.src, s.path.Src.ClientID},
		{s.dst, s.path.Dst.ClientID},
	} {
		health := chainHealth{ChainID: end.chain.ChainID(), ClientID: end.clientID}

		height, err := end.chain.LatestHeight(ctx)
		if err != nil {
			health.Error = err.Error()
			resp.Healthy = false
			resp.Chains = append(resp.Chains, health)
			continue
		}
		health.Height = height.RevisionHeight

		clientState, err := end.chain.QueryClientState(ctx, end.clientID)
		if err != nil {
			health.Error = err.Error()
			resp.Healthy = false
			resp.Chains = append(resp.Chains, health)
			continue
		}

		health.ClientStatus = "Active"
		if clientState.IsFrozen() {
			health.ClientStatus = "Frozen"
			resp.Healthy = false
		}
		resp.Chains = append(resp.Chains, health)
	}

	code := http.StatusOK
	if !resp.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// handleDeadLetters lists the work items parked after exhausting their
// attempts.
func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	keys, err := s.coordinator.DeadLetters(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if keys == nil {
		keys = []relayer.RelayKey{}
	}
	writeJSON(w, http.StatusOK, keys)
}

// handleForceRelay re-queues a dead-lettered work item.
func (s *Server) handleForceRelay(w http.ResponseWriter, r *http.Request) {
	var key relayer.RelayKey
	if err := json.NewDecoder(r.Body).Decode(&key); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.coordinator.ForceRelay(r.Context(), key); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	s.logger.Info("force relay requested", "key", key.String())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
