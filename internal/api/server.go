// Package api exposes the onboarding assistant over HTTP: the chat
// entry point, the pending-action review surface, and the approval
// decision endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/crewline/onboard-agent/internal/actions"
	"github.com/crewline/onboard-agent/internal/agent"
	"github.com/crewline/onboard-agent/internal/buildinfo"
	"github.com/crewline/onboard-agent/internal/transcript"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	orch    *agent.Orchestrator
	store   *actions.Store
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates an API server around the orchestrator and the
// action store.
func NewServer(address string, port int, orch *agent.Orchestrator, store *actions.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address: address,
		port:    port,
		orch:    orch,
		store:   store,
		logger:  logger,
	}
}

// Handler builds the route table. Exposed separately from Start so
// tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/actions/pending", s.handleActionsPending)
	mux.HandleFunc("GET /api/actions/recent", s.handleActionsRecent)
	mux.HandleFunc("POST /api/actions/decide", s.handleActionsDecide)

	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. It blocks until the server
// stops.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // orchestration turns can be slow
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", reqID,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "onboard-agent",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

// ChatRequest is one inbound chat message. History carries the
// conversation transcript from the caller's store; the agent replays
// it but does not persist it.
type ChatRequest struct {
	UserID         string            `json:"user_id"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Message        string            `json:"message"`
	History        []transcript.Turn `json:"history,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		s.errorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := s.orch.HandleMessage(r.Context(), agent.Request{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
		History:        req.History,
	})
	if err != nil {
		var malformed *transcript.MalformedTurnError
		if errors.As(err, &malformed) {
			s.errorResponse(w, http.StatusBadRequest, malformed.Error())
			return
		}
		s.logger.Error("chat failed", "user_id", req.UserID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "agent error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result, s.logger)
}

func (s *Server) handleActionsPending(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.errorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}

	pending, err := s.store.ListPending(r.Context(), userID)
	if err != nil {
		s.logger.Error("list pending failed", "user_id", userID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "list pending actions")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"actions": pending,
		"count":   len(pending),
	}, s.logger)
}

func (s *Server) handleActionsRecent(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.errorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	recent, err := s.store.ListRecent(r.Context(), userID, limit)
	if err != nil {
		s.logger.Error("list recent failed", "user_id", userID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "list recent actions")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"actions": recent,
		"count":   len(recent),
	}, s.logger)
}

// DecideRequest applies one decision to a batch of pending actions.
type DecideRequest struct {
	UserID    string   `json:"user_id"`
	ActionIDs []string `json:"action_ids"`
	Decision  string   `json:"decision"` // approve | reject

	// FollowUp requests a single narrative completion summarizing the
	// outcomes.
	FollowUp bool `json:"follow_up,omitempty"`
}

func (s *Server) handleActionsDecide(w http.ResponseWriter, r *http.Request) {
	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		s.errorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if len(req.ActionIDs) == 0 {
		s.errorResponse(w, http.StatusBadRequest, "action_ids is required")
		return
	}

	decision, err := agent.ParseDecision(req.Decision)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.orch.ResumeAfterApproval(r.Context(), req.UserID, req.ActionIDs, decision, req.FollowUp)
	if err != nil {
		s.logger.Error("decide failed", "user_id", req.UserID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "apply decision")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result, s.logger)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}
