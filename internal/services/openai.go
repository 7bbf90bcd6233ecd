package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/jwebster45206/turn-engine/pkg/chat"
)

// OpenAIConfig configures an OpenAI-compatible narrator. BaseURL may point
// at any compatible endpoint (OpenRouter, Venice, a local gateway).
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int64
	MaxRetries int
}

// OpenAINarrator streams chat completions through openai-go.
type OpenAINarrator struct {
	client    *openai.Client
	model     string
	maxTokens int64
	logger    *slog.Logger
}

var _ Narrator = (*OpenAINarrator)(nil)

func NewOpenAINarrator(cfg OpenAIConfig, logger *slog.Logger) *OpenAINarrator {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	client := openai.NewClient(opts...)
	return &OpenAINarrator{
		client:    &client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}
}

func (o *OpenAINarrator) Name() string {
	return "openai"
}

func (o *OpenAINarrator) Stream(ctx context.Context, messages []chat.ChatMessage, model string) (<-chan chat.StreamChunk, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}
	if strings.TrimSpace(model) == "" {
		model = o.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: toOpenAIMessages(messages),
	}
	if o.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(o.maxTokens)
	}

	o.logger.Debug("Starting narrator stream", "model", model, "messages", len(messages))
	stream := o.client.Chat.Completions.NewStreaming(ctx, params)

	chunks := make(chan chat.StreamChunk)
	go func() {
		defer close(chunks)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				if !sendChunk(ctx, chunks, chat.StreamChunk{Content: delta}) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			o.logger.Warn("Narrator stream failed", "model", model, "error", err)
			sendChunk(ctx, chunks, chat.StreamChunk{Err: fmt.Errorf("narrator stream: %w", err), Done: true})
			return
		}
		sendChunk(ctx, chunks, chat.StreamChunk{Done: true})
	}()

	return chunks, nil
}

func toOpenAIMessages(messages []chat.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case chat.ChatRoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case chat.ChatRoleAgent:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
