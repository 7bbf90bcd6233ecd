package turn

import (
	"errors"

	"github.com/samber/oops"

	"github.com/jwebster45206/turn-engine/pkg/state"
	"github.com/jwebster45206/turn-engine/pkg/storage"
)

var (
	// ErrSessionEnded rejects a turn on a session that already reached an ending.
	ErrSessionEnded = errors.New("session has ended")
	// ErrNarratorFailure is a narrator that could not start or broke off
	// mid-stream. The attempt is retried like malformed output.
	ErrNarratorFailure = errors.New("narrator failure")

	errEmitterGone = errors.New("event receiver gone")
)

const (
	CodeSessionEnded    = "SESSION_ENDED"
	CodeNarratorFailure = "NARRATOR_FAILURE"
)

func sessionEnded(key, ending string) error {
	return oops.In("turn").Code(CodeSessionEnded).
		With("session_key", key).With("ending", ending).
		Wrapf(ErrSessionEnded, "session %q", key)
}

func narratorFailure(err error) error {
	return oops.In("narrator").Code(CodeNarratorFailure).
		With("cause", err.Error()).
		Wrapf(ErrNarratorFailure, "%v", err)
}

func unknownEnding(id string) error {
	return oops.In("turn").Code(state.CodeUnknownEntity).With("ending", id).
		Wrapf(state.ErrUnknownEntity, "ending %q", id)
}

// userMessage is the text shown to the player for a failed turn.
func userMessage(err error) string {
	switch {
	case errors.Is(err, storage.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, ErrSessionEnded):
		return "session has ended"
	case errors.Is(err, storage.ErrPersistenceFailure):
		return "failed to save session"
	default:
		return "turn failed"
	}
}
