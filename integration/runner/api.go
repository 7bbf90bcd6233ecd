package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jwebster45206/turn-engine/pkg/chat"
	"github.com/jwebster45206/turn-engine/pkg/session"
	"github.com/jwebster45206/turn-engine/pkg/turn"
)

// StreamEvent is one decoded event from a turn stream.
type StreamEvent struct {
	Type    turn.EventType  `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// TurnResponse is everything a turn stream delivered.
type TurnResponse struct {
	Events []StreamEvent
	Text   string // narration the player ended up seeing
	Error  *turn.ErrorContent
}

// Has reports whether an event of type t was streamed.
func (tr *TurnResponse) Has(t turn.EventType) bool {
	for _, ev := range tr.Events {
		if ev.Type == t {
			return true
		}
	}
	return false
}

// CreateSession starts a session for scenarioID and returns its key
func CreateSession(ctx context.Context, client *http.Client, baseURL, scenarioID string) (string, error) {
	body, err := json.Marshal(map[string]string{"scenario_id": scenarioID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("create session returned %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		SessionKey string `json:"session_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}
	return out.SessionKey, nil
}

// GetSession retrieves the current snapshot of a session
func GetSession(ctx context.Context, client *http.Client, baseURL, key string) (*session.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/sessions/"+key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get session returned %d: %s", resp.StatusCode, string(b))
	}

	var sess session.Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

// PostTurn submits an action and reads the event stream until it closes
func PostTurn(ctx context.Context, client *http.Client, baseURL, key, action string) (*TurnResponse, error) {
	body, err := json.Marshal(chat.TurnRequest{SessionKey: key, Action: action})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal turn request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/turn", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create turn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send turn request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("turn endpoint returned %d: %s", resp.StatusCode, string(b))
	}

	return readStream(resp.Body)
}

func readStream(r io.Reader) (*TurnResponse, error) {
	out := &TurnResponse{}
	var text strings.Builder

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		payload, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var ev StreamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("failed to decode event %q: %w", payload, err)
		}
		out.Events = append(out.Events, ev)

		switch ev.Type {
		case turn.EventToken:
			var s string
			if err := json.Unmarshal(ev.Content, &s); err == nil {
				text.WriteString(s)
			}
		case turn.EventRetry:
			text.Reset()
		case turn.EventFallback:
			var s string
			if err := json.Unmarshal(ev.Content, &s); err == nil {
				text.Reset()
				text.WriteString(s)
			}
		case turn.EventError:
			var ec turn.ErrorContent
			if err := json.Unmarshal(ev.Content, &ec); err == nil {
				out.Error = &ec
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read turn stream: %w", err)
	}
	if !out.Has(turn.EventDone) && out.Error == nil {
		return nil, fmt.Errorf("turn stream closed without a done event")
	}

	out.Text = text.String()
	return out, nil
}
