// Package server exposes the capture service over HTTP for UI and
// automation clients.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/notewell/miccap/internal/audio"
	"github.com/notewell/miccap/internal/config"
	"github.com/notewell/miccap/internal/service"
	"github.com/notewell/miccap/internal/session"
)

// Server is the HTTP control plane for one capture service.
type Server struct {
	service *service.Service
	cfg     *config.Config
	mux     *http.ServeMux
}

// OperationResponse is the JSON body for lifecycle operations.
type OperationResponse struct {
	Success bool          `json:"success"`
	State   session.State `json:"state,omitempty"`
	Error   string        `json:"error,omitempty"`
	Kind    string        `json:"kind,omitempty"`
}

// SourcesResponse is the JSON body for the sources endpoint.
type SourcesResponse struct {
	Sources []string `json:"sources"`
}

// New builds the server around an existing service.
func New(cfg *config.Config, svc *service.Service) *Server {
	s := &Server{
		service: svc,
		cfg:     cfg,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("/start", s.handleStart)
	s.mux.HandleFunc("/stop", s.handleStop)
	s.mux.HandleFunc("/pause", s.handlePause)
	s.mux.HandleFunc("/resume", s.handleResume)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/sources", s.handleSources)
	s.mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the server's route table.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe runs the control API on the configured port.
func (s *Server) ListenAndServe() error {
	addr := ":" + s.cfg.Server.Port
	slog.Info("Starting capture control server",
		"addr", addr,
		"local_url", fmt.Sprintf("http://localhost:%s", s.cfg.Server.Port))
	return http.ListenAndServe(addr, s.mux)
}

// handleStart begins a new recording session.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "Method not allowed", "", "endpoint", "/start")
		return
	}

	if err := s.service.Start(); err != nil {
		s.sendOperationError(w, "start", err)
		return
	}
	s.sendOperation(w, s.service.Status().State)
}

// handleStop ends the session; the final chunk is persisted before the
// response is written.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "Method not allowed", "", "endpoint", "/stop")
		return
	}

	if err := s.service.Stop(); err != nil {
		s.sendOperationError(w, "stop", err)
		return
	}
	s.sendOperation(w, s.service.Status().State)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "Method not allowed", "", "endpoint", "/pause")
		return
	}

	if err := s.service.Pause(); err != nil {
		s.sendOperationError(w, "pause", err)
		return
	}
	s.sendOperation(w, s.service.Status().State)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "Method not allowed", "", "endpoint", "/resume")
		return
	}

	if err := s.service.Resume(); err != nil {
		s.sendOperationError(w, "resume", err)
		return
	}
	s.sendOperation(w, s.service.Status().State)
}

// handleStatus returns the session snapshot for UI polling.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "Method not allowed", "", "endpoint", "/status")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.service.Status())
}

// handleSources lists the capture devices visible to the backend.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "Method not allowed", "", "endpoint", "/sources")
		return
	}

	sources, err := s.service.Sources()
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error(), string(audio.KindOf(err)), "endpoint", "/sources")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SourcesResponse{Sources: sources})
}

// sendOperation writes a success envelope carrying the new state.
func (s *Server) sendOperation(w http.ResponseWriter, state session.State) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(OperationResponse{Success: true, State: state})
}

// sendOperationError maps lifecycle errors to status codes: invalid
// transitions conflict with the current state (409), capture failures
// are server-side errors (500) tagged with their kind.
func (s *Server) sendOperationError(w http.ResponseWriter, op string, err error) {
	var stateErr *session.StateError
	if errors.As(err, &stateErr) {
		s.sendError(w, http.StatusConflict, err.Error(), "", "operation", op, "state", stateErr.State)
		return
	}

	var captureErr *audio.CaptureError
	if errors.As(err, &captureErr) {
		s.sendError(w, http.StatusInternalServerError, err.Error(), string(captureErr.Kind), "operation", op)
		return
	}

	s.sendError(w, http.StatusInternalServerError, err.Error(), "", "operation", op)
}

func (s *Server) sendError(w http.ResponseWriter, statusCode int, errorMsg, kind string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(OperationResponse{
		Success: false,
		Error:   errorMsg,
		Kind:    kind,
	})
}
