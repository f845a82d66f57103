package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	logx "github.com/hrdesk/server/pkg/logger"

	errx "github.com/hrdesk/server/internal/core/error"

	"github.com/hrdesk/server/internal/agent/model"
	"github.com/hrdesk/server/internal/agent/repo"
	"github.com/hrdesk/server/internal/observability"
)

// FeedbackStore is the persistence surface the feedback endpoint needs.
type FeedbackStore interface {
	AddFeedback(ctx context.Context, record *repo.FeedbackRecord) error
}

// Server exposes the agent over HTTP.
type Server struct {
	agent    model.Agent
	feedback FeedbackStore
	metrics  *observability.Metrics
}

func New(agent model.Agent, feedback FeedbackStore, metrics *observability.Metrics) *Server {
	return &Server{agent: agent, feedback: feedback, metrics: metrics}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, req)
	})

	r.Post("/hrpolicy/agent", s.handleAgentTurn)
	r.Post("/feedback", s.handleFeedback)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleAgentTurn(w http.ResponseWriter, r *http.Request) {
	var in model.QueryInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(in.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "missing_field", "session_id is required")
		return
	}
	if strings.TrimSpace(in.UserInput) == "" {
		respondError(w, http.StatusBadRequest, "missing_field", "user_input is required")
		return
	}

	out, err := s.agent.Invoke(r.Context(), in)
	if err != nil {
		logx.Error().Err(err).Str("session_id", in.SessionID).Msg("agent turn failed")
		respondError(w, errx.StatusOf(err), "agent_error", "failed to process the request")
		return
	}

	respondJSON(w, http.StatusOK, out)
}

type feedbackRequest struct {
	SessionID  string `json:"session_id"`
	ResponseID string `json:"response_id"`
	Feedback   string `json:"feedback"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var in feedbackRequest
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(in.SessionID) == "" || strings.TrimSpace(in.ResponseID) == "" {
		respondError(w, http.StatusBadRequest, "missing_field", "session_id and response_id are required")
		return
	}
	if strings.TrimSpace(in.Feedback) == "" {
		respondError(w, http.StatusBadRequest, "missing_field", "feedback is required")
		return
	}

	record := &repo.FeedbackRecord{
		SessionID:  in.SessionID,
		ResponseID: in.ResponseID,
		Feedback:   in.Feedback,
	}
	if err := s.feedback.AddFeedback(r.Context(), record); err != nil {
		logx.Error().Err(err).Str("response_id", in.ResponseID).Msg("failed to store feedback")
		respondError(w, errx.StatusOf(err), "feedback_error", "failed to store feedback")
		return
	}

	s.metrics.IncFeedback()
	respondJSON(w, http.StatusCreated, map[string]any{"id": record.ID})
}

var errEmptyBody = errors.New("empty request body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
