package services

import (
	"context"
	"sync"
	"time"

	"github.com/jwebster45206/turn-engine/pkg/chat"
)

// DefaultMockNarration is streamed when no response is scripted.
const DefaultMockNarration = "Nothing stirs. The world waits for your next move.\n<effects>[]</effects>"

// MockResponse scripts one call to MockNarrator.Stream.
type MockResponse struct {
	Text      string
	ChunkSize int           // runes per chunk; 0 means 8
	Delay     time.Duration // wait before the first chunk
	StartErr  error         // returned from Stream itself
	StreamErr error         // sent after Text, on the final chunk
}

// NarratorCall records one Stream call.
type NarratorCall struct {
	Messages []chat.ChatMessage
	Model    string
}

// MockNarrator is a scripted Narrator for tests and LLM_PROVIDER=mock.
// Call n gets script[n]; calls past the end reuse the last entry.
type MockNarrator struct {
	mu     sync.Mutex
	script []MockResponse
	calls  []NarratorCall
}

var _ Narrator = (*MockNarrator)(nil)

// NewMockNarrator scripts plain text responses in call order.
func NewMockNarrator(responses ...string) *MockNarrator {
	m := &MockNarrator{}
	for _, r := range responses {
		m.script = append(m.script, MockResponse{Text: r})
	}
	return m
}

// Script replaces the scripted responses.
func (m *MockNarrator) Script(responses ...MockResponse) *MockNarrator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append([]MockResponse(nil), responses...)
	return m
}

func (m *MockNarrator) Name() string {
	return "mock"
}

// Calls returns a copy of the recorded calls.
func (m *MockNarrator) Calls() []NarratorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NarratorCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Stream was called.
func (m *MockNarrator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears all call tracking
func (m *MockNarrator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockNarrator) Stream(ctx context.Context, messages []chat.ChatMessage, model string) (<-chan chat.StreamChunk, error) {
	m.mu.Lock()
	n := len(m.calls)
	m.calls = append(m.calls, NarratorCall{
		Messages: append([]chat.ChatMessage(nil), messages...),
		Model:    model,
	})
	resp := MockResponse{Text: DefaultMockNarration}
	if len(m.script) > 0 {
		resp = m.script[min(n, len(m.script)-1)]
	}
	m.mu.Unlock()

	if resp.StartErr != nil {
		return nil, resp.StartErr
	}

	chunks := make(chan chat.StreamChunk)
	go func() {
		defer close(chunks)

		if resp.Delay > 0 {
			timer := time.NewTimer(resp.Delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				sendChunk(ctx, chunks, chat.StreamChunk{Err: ctx.Err(), Done: true})
				return
			}
		}

		for _, piece := range splitRunes(resp.Text, resp.ChunkSize) {
			if !sendChunk(ctx, chunks, chat.StreamChunk{Content: piece}) {
				return
			}
		}
		sendChunk(ctx, chunks, chat.StreamChunk{Err: resp.StreamErr, Done: true})
	}()
	return chunks, nil
}

func splitRunes(s string, size int) []string {
	if size <= 0 {
		size = 8
	}
	runes := []rune(s)
	var out []string
	for len(runes) > 0 {
		n := min(size, len(runes))
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}
