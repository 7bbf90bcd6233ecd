package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/turn-engine/pkg/chat"
	"github.com/jwebster45206/turn-engine/pkg/queue"
)

// Enqueuer accepts turn requests for the worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, req *queue.Request) error
}

type EnqueueResponse struct {
	RequestID  string `json:"request_id"`
	SessionKey string `json:"session_key"`
}

// EnqueueHandler queues a turn for a worker and returns at once. Clients
// follow the turn on GET /v1/sessions/{key}/events.
//
// The session must already exist. Events are published without buffering, so
// a client creates the session with POST /v1/sessions and subscribes before
// it enqueues; otherwise a fast worker can finish the turn unseen.
// POST /v1/turns
type EnqueueHandler struct {
	queue  Enqueuer
	store  SessionStore
	logger *slog.Logger
}

func NewEnqueueHandler(q Enqueuer, store SessionStore, logger *slog.Logger) *EnqueueHandler {
	return &EnqueueHandler{queue: q, store: store, logger: logger}
}

func (h *EnqueueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body chat.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.logger, http.StatusBadRequest,
			"Invalid request body. Expected JSON with 'action' and 'session_key' or 'scenario_id'.", codeInvalidRequest)
		return
	}
	if err := body.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error(), codeInvalidRequest)
		return
	}

	key := body.SessionKey
	if key == "" {
		writeError(w, h.logger, http.StatusBadRequest,
			"session_key is required. Create the session and subscribe to its events before enqueueing.", codeInvalidRequest)
		return
	}

	ctx := r.Context()
	if _, err := h.store.Load(ctx, key); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	req := queue.NewRequest(key, body.Action, body.Model)
	if err := h.queue.Enqueue(ctx, req); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Turn enqueued", "request_id", req.RequestID, "session_key", key)
	writeJSON(w, h.logger, http.StatusAccepted, EnqueueResponse{RequestID: req.RequestID, SessionKey: key})
}
