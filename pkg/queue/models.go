// Package queue defines the turn requests exchanged between the api and the
// worker over the Redis request list.
package queue

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jwebster45206/turn-engine/pkg/chat"
)

// Request is a turn waiting to be run by a worker. The session always exists
// by the time a request is queued.
type Request struct {
	RequestID  string    `json:"request_id"`
	SessionKey string    `json:"session_key"`
	Action     string    `json:"action"`
	Model      string    `json:"model,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewRequest stamps a turn with a fresh request id and the current time.
func NewRequest(sessionKey, action, model string) *Request {
	return &Request{
		RequestID:  ulid.Make().String(),
		SessionKey: sessionKey,
		Action:     strings.TrimSpace(action),
		Model:      model,
		EnqueuedAt: time.Now().UTC(),
	}
}

// TurnRequest converts the queued request for the turn pipeline.
func (r *Request) TurnRequest() chat.TurnRequest {
	return chat.TurnRequest{
		SessionKey: r.SessionKey,
		Action:     r.Action,
		Model:      r.Model,
	}
}

// Validate checks the fields a worker needs.
func (r *Request) Validate() error {
	if r.SessionKey == "" {
		return errors.New("session_key is required")
	}
	if strings.TrimSpace(r.Action) == "" {
		return errors.New("action is required")
	}
	return nil
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
