package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/turn-engine/pkg/chat"
)

func drain(t *testing.T, ch <-chan chat.StreamChunk) (string, error, bool) {
	t.Helper()
	var sb strings.Builder
	var err error
	done := false
	for c := range ch {
		sb.WriteString(c.Content)
		if c.Done {
			done = true
			err = c.Err
		}
	}
	return sb.String(), err, done
}

func TestMockNarrator_ScriptOrder(t *testing.T) {
	mock := NewMockNarrator("first reply", "second reply")
	msgs := []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "Hello"}}

	for _, want := range []string{"first reply", "second reply", "second reply"} {
		ch, err := mock.Stream(context.Background(), msgs, "m")
		if err != nil {
			t.Fatalf("Stream failed: %v", err)
		}
		got, streamErr, done := drain(t, ch)
		if got != want || streamErr != nil || !done {
			t.Errorf("got (%q, %v, %v), want (%q, nil, true)", got, streamErr, done, want)
		}
	}

	calls := mock.Calls()
	if len(calls) != 3 {
		t.Fatalf("Expected 3 calls, got %d", len(calls))
	}
	if calls[0].Model != "m" || calls[0].Messages[0].Content != "Hello" {
		t.Errorf("unexpected call record: %+v", calls[0])
	}

	mock.Reset()
	if mock.CallCount() != 0 {
		t.Errorf("Expected 0 calls after Reset, got %d", mock.CallCount())
	}
}

func TestMockNarrator_Default(t *testing.T) {
	ch, err := (&MockNarrator{}).Stream(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	got, _, _ := drain(t, ch)
	if got != DefaultMockNarration {
		t.Errorf("got %q", got)
	}
}

func TestMockNarrator_Errors(t *testing.T) {
	startErr := errors.New("connection refused")
	streamErr := errors.New("stream reset")
	mock := NewMockNarrator().Script(
		MockResponse{StartErr: startErr},
		MockResponse{Text: "partial", StreamErr: streamErr},
	)

	if _, err := mock.Stream(context.Background(), nil, ""); !errors.Is(err, startErr) {
		t.Errorf("Expected start error, got %v", err)
	}

	ch, err := mock.Stream(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	got, gotErr, done := drain(t, ch)
	if got != "partial" || !errors.Is(gotErr, streamErr) || !done {
		t.Errorf("got (%q, %v, %v)", got, gotErr, done)
	}
}

func TestMockNarrator_DelayHonorsContext(t *testing.T) {
	mock := NewMockNarrator().Script(MockResponse{Text: "late", Delay: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ch, err := mock.Stream(ctx, nil, "")
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	got, _, _ := drain(t, ch)
	if got != "" {
		t.Errorf("Expected no content after timeout, got %q", got)
	}
}

func TestSplitRunes(t *testing.T) {
	got := splitRunes("안녕하세요 world", 3)
	if strings.Join(got, "") != "안녕하세요 world" {
		t.Errorf("chunks do not rejoin: %q", got)
	}
	if got[0] != "안녕하" {
		t.Errorf("first chunk = %q, want whole runes", got[0])
	}
	if splitRunes("", 4) != nil {
		t.Error("empty text should produce no chunks")
	}
}
