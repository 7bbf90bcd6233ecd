package services

import (
	"context"

	"github.com/jwebster45206/turn-engine/pkg/chat"
)

// Narrator streams narration for a prepared prompt.
type Narrator interface {
	// Stream starts a completion and returns its chunks. The channel is
	// closed after a chunk with Done set, or when ctx is cancelled.
	Stream(ctx context.Context, messages []chat.ChatMessage, model string) (<-chan chat.StreamChunk, error)

	// Name identifies the provider in logs and health output.
	Name() string
}

// sendChunk delivers c unless ctx is cancelled first.
func sendChunk(ctx context.Context, out chan<- chat.StreamChunk, c chat.StreamChunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
