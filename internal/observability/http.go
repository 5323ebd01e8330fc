package observability

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/raftkv/replica/internal/consensus"
)

// StatusResponse is the JSON shape served at /status, adapted from the
// teacher's server.StatusResponse to the replica's own role/term/log
// vocabulary (spec.md 3) in place of the teacher's leader/follower/paused
// fields.
type StatusResponse struct {
	Role         string `json:"role"`
	Term         int    `json:"term"`
	ID           string `json:"id"`
	LogLength    int    `json:"logLength"`
	CommitIndex  int    `json:"commitIndex"`
	AppliedIndex int    `json:"appliedIndex"`
	LeaderVote   string `json:"leaderVote"`
	KeyCount     int    `json:"keyCount"`
}

// Server is the debug HTTP sidecar. It never touches live consensus state
// directly - UpdateStatus is the only way it learns anything, and it is
// called from the event loop's own goroutine after each iteration
// (spec.md 5, SPEC_FULL 4.7).
type Server struct {
	metrics *Metrics
	status  atomic.Value // consensus.Status
	logger  zerolog.Logger
}

func NewServer(metrics *Metrics, logger zerolog.Logger) *Server {
	s := &Server{metrics: metrics, logger: logger}
	s.status.Store(consensus.Status{})
	return s
}

// UpdateStatus is registered as the consensus Engine's OnStatus callback.
func (s *Server) UpdateStatus(status consensus.Status) {
	s.status.Store(status)
}

func (s *Server) currentStatus() consensus.Status {
	return s.status.Load().(consensus.Status)
}

// Start serves /status and /metrics on the given address and blocks,
// matching the teacher's HTTPServer.Start. Run it on its own goroutine.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "application/json")

		st := s.currentStatus()
		json.NewEncoder(w).Encode(StatusResponse{
			Role:         st.Role,
			Term:         st.Term,
			ID:           st.ID,
			LogLength:    st.LogLength,
			CommitIndex:  st.CommitIndex,
			AppliedIndex: st.AppliedIndex,
			LeaderVote:   st.LeaderVote,
			KeyCount:     st.KeyCount,
		})
	})

	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.metrics.GetSnapshot())
	})

	s.logger.Info().Str("addr", addr).Msg("observability sidecar listening")
	return http.ListenAndServe(addr, mux)
}
