// Package server exposes health, status and Prometheus metrics over HTTP
// for the reset daemon.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/j-veylop/credits-dashboard-tui/internal/services/scheduler"
	"github.com/j-veylop/credits-dashboard-tui/internal/version"
)

// StatusSource reports the scheduler state.
type StatusSource interface {
	SchedulerStatus() scheduler.Status
}

// Server is the daemon's HTTP endpoint.
type Server struct {
	srv *http.Server
}

type statusResponse struct {
	NextWake  *time.Time        `json:"nextWake,omitempty"`
	LastRun   *time.Time        `json:"lastRun,omitempty"`
	Marker    *scheduler.Marker `json:"marker,omitempty"`
	Version   string            `json:"version"`
	State     string            `json:"state"`
	Active    string            `json:"activeWindow,omitempty"`
	Next      string            `json:"nextWindow,omitempty"`
	LastError string            `json:"lastError,omitempty"`
	Cooldowns int               `json:"trackedCooldowns"`
	Enabled   bool              `json:"enabled"`
}

// New builds a server listening on addr.
func New(addr string, status StatusSource) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(newStatusResponse(status.SchedulerStatus()))
	})

	mux.Handle("/metrics", promhttp.Handler())

	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

func newStatusResponse(st scheduler.Status) statusResponse {
	resp := statusResponse{
		Version:   version.GetVersion(),
		State:     st.State.String(),
		Enabled:   st.Enabled,
		Marker:    st.Marker,
		LastError: st.LastError,
		Cooldowns: len(st.Cooldowns),
	}
	if st.Active != nil {
		resp.Active = st.Active.Key()
	}
	if st.Next != nil {
		resp.Next = st.Next.Key()
	}
	if !st.NextWake.IsZero() {
		resp.NextWake = &st.NextWake
	}
	if !st.LastRun.IsZero() {
		resp.LastRun = &st.LastRun
	}
	return resp
}

// Handler returns the request multiplexer.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
