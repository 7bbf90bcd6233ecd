package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/turn-engine/pkg/chat"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"

	DefaultAnthropicTemperature = 0.7
	DefaultAnthropicMaxTokens   = 2048
)

// AnthropicConfig configures the Anthropic Messages narrator.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string // defaults to the public API
	Model     string
	MaxTokens int64
}

// AnthropicNarrator streams narration from the Anthropic Messages API.
type AnthropicNarrator struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Narrator = (*AnthropicNarrator)(nil)

type AnthropicChatRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []chat.ChatMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Stream      bool               `json:"stream"`
}

// anthropicStreamEvent covers the fields of the stream events we read:
// content_block_delta, message_stop and error.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewAnthropicNarrator(cfg AnthropicConfig, logger *slog.Logger) *AnthropicNarrator {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	maxTokens := DefaultAnthropicMaxTokens
	if cfg.MaxTokens > 0 {
		maxTokens = int(cfg.MaxTokens)
	}
	return &AnthropicNarrator{
		apiKey:    cfg.APIKey,
		baseURL:   baseURL,
		model:     cfg.Model,
		maxTokens: maxTokens,
		// No client timeout: streams are bounded by the caller's context.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

func (a *AnthropicNarrator) Name() string {
	return "anthropic"
}

// splitChatMessages extracts and combines all system messages into a single system prompt
// and returns the remaining non-system messages
func splitChatMessages(messages []chat.ChatMessage) (string, []chat.ChatMessage) {
	var systemParts []string
	var nonSystemMessages []chat.ChatMessage

	for _, msg := range messages {
		if msg.Role == chat.ChatRoleSystem {
			systemParts = append(systemParts, msg.Content)
		} else {
			nonSystemMessages = append(nonSystemMessages, msg)
		}
	}

	return strings.Join(systemParts, "\n\n"), nonSystemMessages
}

func (a *AnthropicNarrator) Stream(ctx context.Context, messages []chat.ChatMessage, model string) (<-chan chat.StreamChunk, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}
	if strings.TrimSpace(model) == "" {
		model = a.model
	}

	systemPrompt, conversation := splitChatMessages(messages)
	temperature := DefaultAnthropicTemperature
	reqBody, err := json.Marshal(AnthropicChatRequest{
		Model:       model,
		MaxTokens:   a.maxTokens,
		Temperature: &temperature,
		Messages:    conversation,
		System:      systemPrompt,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "text/event-stream")

	a.logger.Debug("Starting narrator stream", "model", model, "messages", len(messages))
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	chunks := make(chan chat.StreamChunk)
	go func() {
		defer close(chunks)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			payload, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var ev anthropicStreamEvent
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				sendChunk(ctx, chunks, chat.StreamChunk{Err: fmt.Errorf("narrator stream: decode event: %w", err), Done: true})
				return
			}

			switch ev.Type {
			case "content_block_delta":
				if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
					if !sendChunk(ctx, chunks, chat.StreamChunk{Content: ev.Delta.Text}) {
						return
					}
				}
			case "error":
				msg := "unknown error"
				if ev.Error != nil {
					msg = ev.Error.Message
				}
				a.logger.Warn("Narrator stream failed", "model", model, "error", msg)
				sendChunk(ctx, chunks, chat.StreamChunk{Err: fmt.Errorf("narrator stream: %s", msg), Done: true})
				return
			case "message_stop":
				sendChunk(ctx, chunks, chat.StreamChunk{Done: true})
				return
			}
		}

		err := scanner.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		sendChunk(ctx, chunks, chat.StreamChunk{Err: fmt.Errorf("narrator stream: %w", err), Done: true})
	}()

	return chunks, nil
}
