package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/turn-engine/internal/errutil"
	"github.com/jwebster45206/turn-engine/pkg/chat"
	"github.com/jwebster45206/turn-engine/pkg/turn"
)

// TurnRunner executes one turn and streams its events.
type TurnRunner interface {
	Run(ctx context.Context, req chat.TurnRequest, emit turn.Emitter) (*turn.Result, error)
}

// TurnHandler runs a turn synchronously and streams it as server-sent events.
// POST /v1/turn
type TurnHandler struct {
	turns  TurnRunner
	logger *slog.Logger
}

func NewTurnHandler(turns TurnRunner, logger *slog.Logger) *TurnHandler {
	return &TurnHandler{turns: turns, logger: logger}
}

func (h *TurnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req chat.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid turn request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest,
			"Invalid request body. Expected JSON with 'action' and 'session_key' or 'scenario_id'.", codeInvalidRequest)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error(), codeInvalidRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, h.logger, http.StatusInternalServerError, "Streaming not supported.", "")
		return
	}

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := turn.EmitterFunc(func(_ context.Context, ev turn.Event) error {
		if err := turn.WriteSSE(w, ev); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	// The request context ends the turn when the client disconnects.
	res, err := h.turns.Run(r.Context(), req, emit)
	switch {
	case err == nil:
		h.logger.Debug("Turn streamed", "session_key", res.SessionKey, "outcome", string(res.Outcome))
	case errors.Is(err, context.Canceled):
		h.logger.Info("Client disconnected during turn", "session_key", req.SessionKey)
	default:
		errutil.LogError(h.logger, "Turn failed", err)
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
