package main

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
	"github.com/jwebster45206/turn-engine/pkg/scenario"
	"github.com/jwebster45206/turn-engine/pkg/turn"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// wireEvent is a turn event with its content left undecoded until the type
// is known.
type wireEvent struct {
	Type    turn.EventType  `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// streamItem is one event or the error that ended the stream.
type streamItem struct {
	event wireEvent
	err   error
}

func testConnection(ctx context.Context, client *http.Client, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func listScenarios(ctx context.Context, client *http.Client, baseURL string) ([]scenario.Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/scenarios", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body, "failed to list scenarios")
	}

	var list []scenario.Summary
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to parse scenario list: %w", err)
	}
	return list, nil
}

func createSession(ctx context.Context, client *http.Client, baseURL, scenarioID string) (string, error) {
	jsonData, err := json.Marshal(map[string]string{"scenario_id": scenarioID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/sessions", bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return "", apiError(resp.StatusCode, body, "failed to create session")
	}

	var created struct {
		SessionKey string `json:"session_key"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("failed to parse session response: %w", err)
	}
	return created.SessionKey, nil
}

// streamTurn posts one turn and sends each event on out. It closes out when
// the stream ends; a failure is delivered as the last item.
func streamTurn(ctx context.Context, client *http.Client, baseURL string, tr chat.TurnRequest, out chan<- streamItem) {
	defer close(out)

	send := func(it streamItem) bool {
		select {
		case out <- it:
			return true
		case <-ctx.Done():
			return false
		}
	}

	jsonData, err := json.Marshal(tr)
	if err != nil {
		send(streamItem{err: fmt.Errorf("failed to marshal request: %w", err)})
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/turn", bytes.NewReader(jsonData))
	if err != nil {
		send(streamItem{err: err})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		send(streamItem{err: fmt.Errorf("failed to send request: %w", err)})
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		send(streamItem{err: apiError(resp.StatusCode, body, "turn failed")})
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		payload, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var ev wireEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			send(streamItem{err: fmt.Errorf("bad event %q: %w", payload, err)})
			return
		}
		if !send(streamItem{event: ev}) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		send(streamItem{err: fmt.Errorf("error reading event stream: %w", err)})
	}
}

func apiError(status int, body []byte, what string) error {
	var errorResp ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("API returned status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("%s: %s", what, errorResp.Error)
}
