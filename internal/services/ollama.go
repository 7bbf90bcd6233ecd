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
	"time"

	"github.com/jwebster45206/turn-engine/pkg/chat"
)

const DefaultOllamaURL = "http://localhost:11434"

// OllamaNarrator streams narration from a local Ollama server.
type OllamaNarrator struct {
	baseURL    string
	modelName  string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Narrator = (*OllamaNarrator)(nil)

type ollamaChatRequest struct {
	Model    string             `json:"model"`
	Messages []chat.ChatMessage `json:"messages"`
	Stream   bool               `json:"stream"`
}

// ollamaChatChunk is one line of a streamed /api/chat response.
type ollamaChatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// NewOllamaNarrator creates a narrator for the Ollama server at baseURL
func NewOllamaNarrator(baseURL string, modelName string, logger *slog.Logger) *OllamaNarrator {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &OllamaNarrator{
		baseURL:    baseURL,
		modelName:  modelName,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

func (s *OllamaNarrator) Name() string {
	return "ollama"
}

// Ping checks that the server is up and has the configured model
func (s *OllamaNarrator) Ping(ctx context.Context) error {
	ready, err := s.isModelReady(ctx, s.modelName)
	if err != nil {
		return err
	}
	if !ready {
		return fmt.Errorf("model %s is not pulled", s.modelName)
	}
	return nil
}

// WaitForReady polls the server until it answers, up to maxRetries times
func (s *OllamaNarrator) WaitForReady(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := range maxRetries {
		_, err := s.isModelReady(ctx, s.modelName)
		if err == nil {
			s.logger.Info("Ollama service is ready")
			return nil
		}
		s.logger.Debug("Ollama not ready yet", "error", err, "attempt", i+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return fmt.Errorf("ollama service did not become ready after %d attempts", maxRetries)
}

func (s *OllamaNarrator) Stream(ctx context.Context, messages []chat.ChatMessage, model string) (<-chan chat.StreamChunk, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}
	if strings.TrimSpace(model) == "" {
		model = s.modelName
	}

	jsonBody, err := json.Marshal(ollamaChatRequest{Model: model, Messages: messages, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	s.logger.Debug("Starting narrator stream", "model", model, "messages", len(messages))
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.Error("Ollama API returned error",
			"status_code", resp.StatusCode,
			"response_body", string(body))
		return nil, fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	chunks := make(chan chat.StreamChunk)
	go func() {
		defer close(chunks)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var c ollamaChatChunk
			if err := json.Unmarshal(line, &c); err != nil {
				sendChunk(ctx, chunks, chat.StreamChunk{Err: fmt.Errorf("narrator stream: decode chunk: %w", err), Done: true})
				return
			}
			if c.Error != "" {
				s.logger.Warn("Narrator stream failed", "model", model, "error", c.Error)
				sendChunk(ctx, chunks, chat.StreamChunk{Err: fmt.Errorf("narrator stream: %s", c.Error), Done: true})
				return
			}
			if c.Message.Content != "" {
				if !sendChunk(ctx, chunks, chat.StreamChunk{Content: c.Message.Content}) {
					return
				}
			}
			if c.Done {
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

// isModelReady checks if the specified model is available
func (s *OllamaNarrator) isModelReady(ctx context.Context, modelName string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	var tagsResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	for _, model := range tagsResp.Models {
		if model.Name == modelName {
			return true, nil
		}
	}
	return false, nil
}
