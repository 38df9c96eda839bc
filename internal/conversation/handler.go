package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/insurelab/termlife-ai-platform/internal/session"
	"github.com/insurelab/termlife-ai-platform/pkg/logging"
)

// Handler exposes the conversation service over HTTP.
type Handler struct {
	service Service
	logger  *logging.Logger
}

func NewHandler(service Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts the conversation endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/start-session", h.startSession)
	r.Post("/send-message", h.sendMessage)
	r.Get("/session/{sessionID}", h.getSession)
	r.Get("/session/{sessionID}/history", h.getHistory)
	r.Post("/session/{sessionID}/reset", h.resetSession)
	r.Post("/session/{sessionID}/transition", h.transition)
	return r
}

type startSessionRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	s, err := h.service.StartSession(r.Context(), req.SessionID)
	if err != nil {
		h.logger.Error("start session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id":    s.ID,
		"current_state": s.CurrentState,
		"created_at":    s.CreatedAt,
	})
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	// No session id means a fresh session; an unknown one is revived with
	// that id, so turn handling never 404s.
	resp, err := h.service.ProcessTurn(r.Context(), req)
	if err != nil {
		h.logger.Error("turn processing failed", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.ID,
		"history":    s.ConversationHistory,
	})
}

func (h *Handler) resetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	s, err := h.service.ResetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("session reset failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":    s.ID,
		"current_state": s.CurrentState,
	})
}

type transitionRequest struct {
	TargetState string `json:"target_state"`
	Force       bool   `json:"force"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.service.TransitionState(r.Context(), sessionID, session.State(req.TargetState), req.Force)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		var terr *session.StateTransitionError
		if errors.As(err, &terr) {
			writeError(w, http.StatusUnprocessableEntity, terr.Error())
			return
		}
		h.logger.Error("manual transition failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to transition session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":    s.ID,
		"current_state": s.CurrentState,
	})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	s, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return nil, false
		}
		h.logger.Error("session lookup failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch session")
		return nil, false
	}
	return s, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
