package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/turn-engine/pkg/scenario"
	"github.com/jwebster45206/turn-engine/pkg/storage"
)

// Deps wires the api. Queue and Events are optional; without them the async
// turn endpoints are not registered.
type Deps struct {
	Logger   *slog.Logger
	Store    storage.SessionStore
	Turns    TurnRunner
	Catalog  *scenario.Catalog
	Queue    Enqueuer
	Events   Subscriber
	Health   map[string]Pinger
	Narrator string
	Metrics  http.Handler
}

// Routes builds the api mux.
func Routes(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	health := NewHealthHandler(d.Health, d.Narrator, d.Logger)
	mux.Handle("GET /health", health)

	mux.Handle("POST /v1/turn", NewTurnHandler(d.Turns, d.Logger))

	sessions := NewSessionHandler(d.Store, d.Logger)
	mux.Handle("POST /v1/sessions", sessions)
	mux.Handle("GET /v1/sessions/{key}", sessions)

	scenarios := NewScenarioHandler(d.Logger, d.Catalog)
	mux.Handle("GET /v1/scenarios", scenarios)
	mux.Handle("GET /v1/scenarios/{id}", scenarios)

	if d.Queue != nil {
		mux.Handle("POST /v1/turns", NewEnqueueHandler(d.Queue, d.Store, d.Logger))
	}
	if d.Events != nil {
		mux.Handle("GET /v1/sessions/{key}/events", NewEventsHandler(d.Events, d.Logger))
	}
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}
	return mux
}
