package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/turn-engine/pkg/session"
)

// SessionStore is the part of storage.SessionStore the session endpoints use.
type SessionStore interface {
	Create(ctx context.Context, scenarioID string) (string, error)
	Load(ctx context.Context, key string) (*session.Session, error)
}

type CreateSessionRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type CreateSessionResponse struct {
	SessionKey string `json:"session_key"`
}

// SessionHandler creates and reads session snapshots.
//
//	POST /v1/sessions
//	GET  /v1/sessions/{key}
type SessionHandler struct {
	store  SessionStore
	logger *slog.Logger
}

func NewSessionHandler(store SessionStore, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreate(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed.", "")
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'scenario_id'.", codeInvalidRequest)
		return
	}
	req.ScenarioID = strings.TrimSpace(req.ScenarioID)
	if req.ScenarioID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "scenario_id is required", codeInvalidRequest)
		return
	}

	key, err := h.store.Create(r.Context(), req.ScenarioID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	h.logger.Info("Session created", "session_key", key, "scenario_id", req.ScenarioID)
	writeJSON(w, h.logger, http.StatusCreated, CreateSessionResponse{SessionKey: key})
}

func (h *SessionHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, h.logger, http.StatusBadRequest, "session key is required in the path", codeInvalidRequest)
		return
	}
	sess, err := h.store.Load(r.Context(), key)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, sess)
}
