package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/turn-engine/pkg/scenario"
)

// ScenarioHandler serves the loaded scenario catalog.
//
//	GET /v1/scenarios
//	GET /v1/scenarios/{id}
type ScenarioHandler struct {
	log     *slog.Logger
	catalog *scenario.Catalog
}

func NewScenarioHandler(log *slog.Logger, catalog *scenario.Catalog) *ScenarioHandler {
	return &ScenarioHandler{log: log, catalog: catalog}
}

func (h *ScenarioHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.log, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.", "")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, h.log, http.StatusOK, h.catalog.List())
		return
	}

	sc, ok := h.catalog.Get(id)
	if !ok {
		writeError(w, h.log, http.StatusNotFound, "Scenario not found.", "SCENARIO_NOT_FOUND")
		return
	}
	writeJSON(w, h.log, http.StatusOK, sc)
}
