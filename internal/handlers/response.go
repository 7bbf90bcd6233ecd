package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/turn-engine/internal/errutil"
	"github.com/jwebster45206/turn-engine/pkg/storage"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

const codeInvalidRequest = "INVALID_REQUEST"

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "error", err, "status", status)
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, status int, msg, code string) {
	writeJSON(w, log, status, ErrorResponse{Error: msg, Code: code})
}

// writeDomainError maps a store or turn error to a response: not found is
// 404, anything else 500.
func writeDomainError(w http.ResponseWriter, log *slog.Logger, err error) {
	if errors.Is(err, storage.ErrSessionNotFound) {
		writeError(w, log, http.StatusNotFound, "Session not found.", storage.CodeSessionNotFound)
		return
	}
	errutil.LogError(log, "Request failed", err)
	writeError(w, log, http.StatusInternalServerError, "Internal server error.", errutil.Code(err))
}
