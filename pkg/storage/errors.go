package storage

import (
	"errors"

	"github.com/samber/oops"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrPersistenceFailure = errors.New("persistence failure")
)

const (
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodePersistenceFailure = "PERSISTENCE_FAILURE"
)

// NotFound wraps ErrSessionNotFound for key.
func NotFound(key string) error {
	return oops.In("storage").Code(CodeSessionNotFound).With("session_key", key).
		Wrapf(ErrSessionNotFound, "session %q", key)
}

// Failure wraps a backend error as ErrPersistenceFailure. The backend error
// stays in the message; errors.Is matches ErrPersistenceFailure.
func Failure(op, key string, err error) error {
	return oops.In("storage").Code(CodePersistenceFailure).
		With("session_key", key).With("op", op).With("cause", err.Error()).
		Wrapf(ErrPersistenceFailure, "%s %q: %v", op, key, err)
}
