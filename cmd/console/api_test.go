package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/turn-engine/pkg/chat"
	"github.com/jwebster45206/turn-engine/pkg/turn"
)

func collect(ch <-chan streamItem) []streamItem {
	var out []streamItem
	for it := range ch {
		out = append(out, it)
	}
	return out
}

func TestStreamTurn(t *testing.T) {
	received := make(chan chat.TurnRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/turn", r.URL.Path)
		var req chat.TurnRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received <- req
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range []turn.Event{
			{Type: turn.EventSessionID, Content: "key-1"},
			{Type: turn.EventToken, Content: "Hello"},
			{Type: turn.EventDone},
		} {
			assert.NoError(t, turn.WriteSSE(w, ev))
		}
		fmt.Fprint(w, ": keepalive\n\n")
	}))
	defer srv.Close()

	ch := make(chan streamItem)
	go streamTurn(context.Background(), srv.Client(), srv.URL, chat.TurnRequest{SessionKey: "key-1", Action: "wave"}, ch)
	items := collect(ch)

	require.Len(t, items, 3)
	for _, it := range items {
		require.NoError(t, it.err)
	}
	assert.Equal(t, turn.EventSessionID, items[0].event.Type)
	assert.JSONEq(t, `"Hello"`, string(items[1].event.Content))
	assert.Equal(t, turn.EventDone, items[2].event.Type)
	assert.Equal(t, "wave", (<-received).Action)
}

func TestStreamTurn_BadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "action cannot be empty", Code: "INVALID_REQUEST"})
	}))
	defer srv.Close()

	ch := make(chan streamItem)
	go streamTurn(context.Background(), srv.Client(), srv.URL, chat.TurnRequest{}, ch)
	items := collect(ch)

	require.Len(t, items, 1)
	require.Error(t, items[0].err)
	assert.Contains(t, items[0].err.Error(), "action cannot be empty")
}

func TestListScenariosAndCreateSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/scenarios", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"haunted_manor","title":"The Haunted Manor"}]`)
	})
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["scenario_id"] != "haunted_manor" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"scenario_id is required"}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"session_key":"abc"}`)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	assert.True(t, testConnection(ctx, srv.Client(), srv.URL))

	list, err := listScenarios(ctx, srv.Client(), srv.URL)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "The Haunted Manor", list[0].Title)

	key, err := createSession(ctx, srv.Client(), srv.URL, "haunted_manor")
	require.NoError(t, err)
	assert.Equal(t, "abc", key)

	_, err = createSession(ctx, srv.Client(), srv.URL, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario_id is required")
}

func TestAPIError_PlainBody(t *testing.T) {
	err := apiError(http.StatusBadGateway, []byte("upstream down\n"), "turn failed")
	assert.EqualError(t, err, "API returned status 502: upstream down")
}
